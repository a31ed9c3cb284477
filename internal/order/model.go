package order

import (
	"time"

	"github.com/slava9999-dev/arbarea-backend/internal/pricing"
)

// Status is the order lifecycle state persisted as the order_status enum.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusPaymentFailed  Status = "payment_failed"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusPaymentFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Order is a persisted checkout. Monetary fields are whole rubles; the
// provider's minor-unit conversion never leaks into storage.
type Order struct {
	ID               string         `json:"-"`
	OrderID          string         `json:"orderId"`
	UserID           string         `json:"userId,omitempty"`
	CustomerName     string         `json:"customerName,omitempty"`
	CustomerEmail    string         `json:"customerEmail,omitempty"`
	CustomerPhone    string         `json:"customerPhone,omitempty"`
	Items            []pricing.Line `json:"items"`
	Subtotal         int64          `json:"subtotal"`
	Shipping         int64          `json:"shipping"`
	Total            int64          `json:"total"`
	DeliveryMethod   string         `json:"deliveryMethod,omitempty"`
	DeliveryAddress  string         `json:"deliveryAddress,omitempty"`
	PaymentID        string         `json:"paymentId,omitempty"`
	PaymentURL       string         `json:"paymentUrl,omitempty"`
	PaymentStatus    string         `json:"paymentStatus,omitempty"`
	PaymentAmount    int64          `json:"paymentAmount,omitempty"`
	PaymentErrorCode string         `json:"paymentErrorCode,omitempty"`
	Status           Status         `json:"status"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// StatusUpdate carries the provider-reported fields applied alongside a
// lifecycle transition.
type StatusUpdate struct {
	OrderID        string
	Next           Status
	ProviderStatus string
	PaymentID      string
	ErrorCode      string
	Amount         int64
}

// StatusResult reports the outcome of ApplyStatus.
type StatusResult struct {
	Previous Status
	// Applied is false when the write was skipped because the order was
	// already paid and the incoming transition was also to paid.
	Applied bool
}
