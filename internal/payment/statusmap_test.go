package payment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slava9999-dev/arbarea-backend/internal/order"
	"github.com/slava9999-dev/arbarea-backend/internal/payment"
)

func TestMapProviderStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]order.Status{
		"AUTHORIZED":       order.StatusPaid,
		"CONFIRMED":        order.StatusPaid,
		"REJECTED":         order.StatusPaymentFailed,
		"AUTH_FAIL":        order.StatusPaymentFailed,
		"CANCELED":         order.StatusCancelled,
		"REVERSED":         order.StatusCancelled,
		"REFUNDED":         order.StatusRefunded,
		"PARTIAL_REFUNDED": order.StatusRefunded,
		// Unknown or differently-cased statuses leave the order pending.
		"confirmed":        order.StatusPendingPayment,
		"NEW":              order.StatusPendingPayment,
		"FORM_SHOWED":      order.StatusPendingPayment,
		"DEADLINE_EXPIRED": order.StatusPendingPayment,
		"":                 order.StatusPendingPayment,
	}
	for providerStatus, want := range cases {
		require.Equal(t, want, payment.MapProviderStatus(providerStatus), "status %q", providerStatus)
	}
}
