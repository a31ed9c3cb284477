package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slava9999-dev/arbarea-backend/internal/payment"
	"github.com/slava9999-dev/arbarea-backend/internal/resilience"
)

func newTinkoffClient(baseURL string) payment.TinkoffClient {
	return payment.TinkoffClient{
		Cfg: payment.TinkoffConfig{
			TerminalKey: testTerminal,
			Secret:      testPassword,
			BaseURL:     baseURL,
		},
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{},
			MaxAttempts: 2,
			BaseBackoff: time.Millisecond,
			Timeout:     time.Second,
		},
	}
}

func TestTinkoffInitSignsAndParsesSession(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Init", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Success":    true,
			"Status":     "NEW",
			"PaymentId":  700001,
			"PaymentURL": "https://securepay.example/rest/pay/1",
		})
	}))
	defer srv.Close()

	client := newTinkoffClient(srv.URL)
	session, err := client.Init(context.Background(), payment.InitRequest{
		Amount:      1250000,
		OrderID:     "ORDER-1",
		Description: "Оплата заказа ORDER-1",
		Receipt: &payment.Receipt{
			Email:    "buyer@example.com",
			Taxation: "osn",
			Items: []payment.ReceiptItem{
				{Name: "Рейлинг", Price: 350000, Quantity: 1, Amount: 350000, Tax: "none"},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "700001", session.PaymentID)
	require.Equal(t, "https://securepay.example/rest/pay/1", session.PaymentURL)

	require.Equal(t, testTerminal, got["TerminalKey"])
	require.Equal(t, float64(1250000), got["Amount"])
	require.Equal(t, "O", got["PayType"])
	require.Equal(t, "ru", got["Language"])
	require.NotNil(t, got["Receipt"])

	wantToken := payment.Sign(map[string]string{
		"TerminalKey": testTerminal,
		"Amount":      "1250000",
		"OrderId":     "ORDER-1",
		"Description": "Оплата заказа ORDER-1",
		"PayType":     "O",
		"Language":    "ru",
	}, testPassword)
	require.Equal(t, wantToken, got["Token"], "receipt must not influence the token")
}

func TestTinkoffInitProviderRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Success":   false,
			"ErrorCode": "9999",
			"Message":   "Неверные параметры",
		})
	}))
	defer srv.Close()

	client := newTinkoffClient(srv.URL)
	_, err := client.Init(context.Background(), payment.InitRequest{Amount: 100, OrderID: "ORDER-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Неверные параметры")
}

func TestTinkoffInitUnreachableProvider(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTinkoffClient(srv.URL)
	_, err := client.Init(context.Background(), payment.InitRequest{Amount: 100, OrderID: "ORDER-1"})
	require.Error(t, err)
}
