package shipping_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slava9999-dev/arbarea-backend/internal/shipping"
)

func TestResolveKnownMethods(t *testing.T) {
	t.Parallel()

	costs := map[string]int64{
		"cdek":        350,
		"wildberries": 0,
		"ozon":        0,
		"boxberry":    300,
		"pochta":      400,
		"courier":     600,
	}
	for id, want := range costs {
		m := shipping.Resolve(id)
		require.Equal(t, id, m.ID)
		require.Equal(t, want, m.Cost)
	}
}

func TestResolveUnknownFallsBackToDefault(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "dhl", "CDEK"} {
		m := shipping.Resolve(id)
		require.Equal(t, shipping.DefaultMethodID, m.ID)
		require.Equal(t, int64(350), m.Cost)
	}
}

func TestQuoteAuthenticatedShipsFree(t *testing.T) {
	t.Parallel()

	m, cost := shipping.Quote("courier", true)
	require.Equal(t, "courier", m.ID)
	require.Zero(t, cost)

	_, cost = shipping.Quote("courier", false)
	require.Equal(t, int64(600), cost)
}
