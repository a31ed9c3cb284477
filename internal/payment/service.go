package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/slava9999-dev/arbarea-backend/internal/common"
	"github.com/slava9999-dev/arbarea-backend/internal/obs"
	"github.com/slava9999-dev/arbarea-backend/internal/order"
	"github.com/slava9999-dev/arbarea-backend/internal/pricing"
)

// CreateOrderRequest is the order intake body. Prices are never read from it.
type CreateOrderRequest struct {
	Items           []pricing.ItemInput `json:"items" validate:"required,min=1"`
	OrderID         string              `json:"orderId" validate:"omitempty,max=64"`
	Description     string              `json:"description" validate:"omitempty,max=250"`
	CustomerEmail   string              `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone   string              `json:"customerPhone" validate:"omitempty,max=32"`
	CustomerName    string              `json:"customerName" validate:"omitempty,max=128"`
	DeliveryID      string              `json:"deliveryId" validate:"omitempty,max=32"`
	DeliveryAddress string              `json:"deliveryAddress" validate:"omitempty,max=512"`
}

// CreateOrderResult is returned to the client after session initiation.
type CreateOrderResult struct {
	OrderID    string
	PaymentID  string
	PaymentURL string
	Total      int64
}

// IntakeStore is the order persistence needed by intake.
type IntakeStore interface {
	Create(ctx context.Context, o *order.Order) error
	SetPaymentSession(ctx context.Context, orderID, paymentID, paymentURL string) error
}

// SessionInitiator starts a payment session with the acquiring provider.
type SessionInitiator interface {
	Init(ctx context.Context, req InitRequest) (Session, error)
}

// Service implements order intake: recompute the price server-side, persist
// the order as pending_payment, then ask the provider for a redirect URL.
type Service struct {
	Pricing  pricing.Engine
	Orders   IntakeStore
	Provider SessionInitiator
	Now      func() time.Time
}

// CreateOrder runs the full intake flow. The order row is written before the
// provider call so a provider failure leaves a retryable pending_payment
// order behind.
func (s Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error) {
	userID, authenticated := common.UserID(ctx)

	quote, err := s.Pricing.Price(ctx, req.Items, req.DeliveryID, authenticated)
	if err != nil {
		s.count("validation_failed")
		return CreateOrderResult{}, err
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = fmt.Sprintf("ORDER-%d", s.now().UnixMilli())
	}

	o := order.Order{
		OrderID:         orderID,
		UserID:          userID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Items:           quote.Lines,
		Subtotal:        quote.Subtotal,
		Shipping:        quote.Shipping,
		Total:           quote.Total,
		DeliveryMethod:  quote.Delivery.ID,
		DeliveryAddress: req.DeliveryAddress,
	}
	if err := s.Orders.Create(ctx, &o); err != nil {
		s.count("persist_failed")
		return CreateOrderResult{}, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Оплата заказа %s", orderID)
	}

	session, err := s.Provider.Init(ctx, InitRequest{
		Amount:      quote.Total * 100,
		OrderID:     orderID,
		Description: description,
		Receipt:     buildReceipt(req, quote),
	})
	if err != nil {
		// The pending_payment row stays as written so the buyer can retry.
		s.count("provider_failed")
		return CreateOrderResult{}, err
	}

	if err := s.Orders.SetPaymentSession(ctx, orderID, session.PaymentID, session.PaymentURL); err != nil {
		s.count("persist_failed")
		return CreateOrderResult{}, fmt.Errorf("record payment session: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("payment_id", session.PaymentID).
		Int64("total", quote.Total).
		Bool("authenticated", authenticated).
		Msg("payment session created")
	s.count("ok")

	return CreateOrderResult{
		OrderID:    orderID,
		PaymentID:  session.PaymentID,
		PaymentURL: session.PaymentURL,
		Total:      quote.Total,
	}, nil
}

// buildReceipt assembles the fiscal receipt in minor units. Shipping, when
// charged, shows up as its own line so the receipt total matches the charge.
func buildReceipt(req CreateOrderRequest, quote pricing.Quote) *Receipt {
	if req.CustomerEmail == "" && req.CustomerPhone == "" {
		return nil
	}
	items := make([]ReceiptItem, 0, len(quote.Lines)+1)
	for _, line := range quote.Lines {
		items = append(items, ReceiptItem{
			Name:     line.Name,
			Price:    line.UnitPrice * 100,
			Quantity: line.Quantity,
			Amount:   line.Amount * 100,
			Tax:      "none",
		})
	}
	if quote.Shipping > 0 {
		items = append(items, ReceiptItem{
			Name:     fmt.Sprintf("Доставка (%s)", quote.Delivery.Title),
			Price:    quote.Shipping * 100,
			Quantity: 1,
			Amount:   quote.Shipping * 100,
			Tax:      "none",
		})
	}
	return &Receipt{
		Email:    req.CustomerEmail,
		Phone:    req.CustomerPhone,
		Taxation: "osn",
		Items:    items,
	}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) count(result string) {
	if obs.PaymentIntakeTotal != nil {
		obs.PaymentIntakeTotal.WithLabelValues(result).Inc()
	}
}
