package payment

import "github.com/slava9999-dev/arbarea-backend/internal/order"

// providerStatusMap translates the payment provider's status vocabulary to
// the order lifecycle. The match is exact and case-sensitive; anything not in
// the table leaves the order pending.
var providerStatusMap = map[string]order.Status{
	"AUTHORIZED":       order.StatusPaid,
	"CONFIRMED":        order.StatusPaid,
	"REJECTED":         order.StatusPaymentFailed,
	"AUTH_FAIL":        order.StatusPaymentFailed,
	"CANCELED":         order.StatusCancelled,
	"REVERSED":         order.StatusCancelled,
	"REFUNDED":         order.StatusRefunded,
	"PARTIAL_REFUNDED": order.StatusRefunded,
}

// MapProviderStatus returns the internal status for a provider status string.
func MapProviderStatus(providerStatus string) order.Status {
	if s, ok := providerStatusMap[providerStatus]; ok {
		return s
	}
	return order.StatusPendingPayment
}
