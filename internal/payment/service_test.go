package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slava9999-dev/arbarea-backend/internal/catalog"
	"github.com/slava9999-dev/arbarea-backend/internal/common"
	"github.com/slava9999-dev/arbarea-backend/internal/order"
	"github.com/slava9999-dev/arbarea-backend/internal/payment"
	"github.com/slava9999-dev/arbarea-backend/internal/pricing"
)

type memCatalog map[string]catalog.Product

func (m memCatalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p, ok := m[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type memOrders struct {
	created   []order.Order
	sessions  map[string][2]string
	createErr error
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.created {
		if existing.OrderID == o.OrderID {
			return common.ConflictError("order already exists: "+o.OrderID, nil)
		}
	}
	o.Status = order.StatusPendingPayment
	m.created = append(m.created, *o)
	return nil
}

func (m *memOrders) SetPaymentSession(_ context.Context, orderID, paymentID, paymentURL string) error {
	if m.sessions == nil {
		m.sessions = map[string][2]string{}
	}
	m.sessions[orderID] = [2]string{paymentID, paymentURL}
	return nil
}

type fakeProvider struct {
	gotInit []payment.InitRequest
	session payment.Session
	err     error
}

func (f *fakeProvider) Init(_ context.Context, req payment.InitRequest) (payment.Session, error) {
	f.gotInit = append(f.gotInit, req)
	if f.err != nil {
		return payment.Session{}, f.err
	}
	return f.session, nil
}

func newIntake(orders *memOrders, provider *fakeProvider) payment.Service {
	return payment.Service{
		Pricing: pricing.Engine{Catalog: memCatalog{
			"101": {ID: "101", Title: "Рейлинг", Price: 3500},
		}},
		Orders:   orders,
		Provider: provider,
		Now:      func() time.Time { return time.UnixMilli(1700000000000) },
	}
}

func TestCreateOrderPersistsBeforeProviderCall(t *testing.T) {
	t.Parallel()

	orders := &memOrders{}
	provider := &fakeProvider{session: payment.Session{PaymentID: "pay-1", PaymentURL: "https://pay.example/1"}}
	svc := newIntake(orders, provider)

	result, err := svc.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Items:         []pricing.ItemInput{{ID: "101", Quantity: float64(2)}},
		DeliveryID:    "cdek",
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)

	require.Equal(t, "ORDER-1700000000000", result.OrderID)
	require.Equal(t, "https://pay.example/1", result.PaymentURL)
	require.Equal(t, "pay-1", result.PaymentID)
	require.Equal(t, int64(3500*2+350), result.Total)

	require.Len(t, orders.created, 1)
	require.Equal(t, order.StatusPendingPayment, orders.created[0].Status)
	require.Equal(t, [2]string{"pay-1", "https://pay.example/1"}, orders.sessions["ORDER-1700000000000"])

	require.Len(t, provider.gotInit, 1)
	require.Equal(t, result.Total*100, provider.gotInit[0].Amount, "provider amount is in minor units")
}

func TestCreateOrderProviderFailureKeepsOrderRow(t *testing.T) {
	t.Parallel()

	orders := &memOrders{}
	provider := &fakeProvider{err: common.ProviderError("payment initiation failed", nil)}
	svc := newIntake(orders, provider)

	_, err := svc.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Items: []pricing.ItemInput{{ID: "101", Quantity: float64(1)}},
	})

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PAYMENT_PROVIDER", appErr.Code)

	require.Len(t, orders.created, 1, "order row survives the provider failure")
	require.Equal(t, order.StatusPendingPayment, orders.created[0].Status)
	require.Empty(t, orders.sessions)
}

func TestCreateOrderValidationWritesNothing(t *testing.T) {
	t.Parallel()

	orders := &memOrders{}
	provider := &fakeProvider{}
	svc := newIntake(orders, provider)

	for _, items := range [][]pricing.ItemInput{
		nil,
		{{ID: "unknown", Quantity: float64(1)}},
		{{ID: "donate-5", Quantity: float64(1)}},
	} {
		_, err := svc.CreateOrder(context.Background(), payment.CreateOrderRequest{Items: items})
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, "VALIDATION", appErr.Code)
	}
	require.Empty(t, orders.created, "failed validation must not write an order")
	require.Empty(t, provider.gotInit)
}

func TestCreateOrderDuplicateIDConflicts(t *testing.T) {
	t.Parallel()

	orders := &memOrders{}
	provider := &fakeProvider{session: payment.Session{PaymentID: "pay-1", PaymentURL: "https://pay.example/1"}}
	svc := newIntake(orders, provider)

	req := payment.CreateOrderRequest{
		OrderID: "ORDER-CUSTOM",
		Items:   []pricing.ItemInput{{ID: "101", Quantity: float64(1)}},
	}
	_, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.CreateOrder(context.Background(), req)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CONFLICT", appErr.Code)
	require.Equal(t, 409, appErr.HTTPStatus)
}

func TestCreateOrderAuthenticatedShipsFree(t *testing.T) {
	t.Parallel()

	orders := &memOrders{}
	provider := &fakeProvider{session: payment.Session{PaymentID: "pay-1", PaymentURL: "https://pay.example/1"}}
	svc := newIntake(orders, provider)

	ctx := common.WithUserID(context.Background(), "user-7")
	result, err := svc.CreateOrder(ctx, payment.CreateOrderRequest{
		Items:      []pricing.ItemInput{{ID: "101", Quantity: float64(1)}},
		DeliveryID: "courier",
	})
	require.NoError(t, err)
	require.Equal(t, int64(3500), result.Total)
	require.Equal(t, "user-7", orders.created[0].UserID)
	require.Zero(t, orders.created[0].Shipping)
}

func TestCreateOrderReceiptIncludesDeliveryLine(t *testing.T) {
	t.Parallel()

	orders := &memOrders{}
	provider := &fakeProvider{session: payment.Session{PaymentID: "pay-1", PaymentURL: "https://pay.example/1"}}
	svc := newIntake(orders, provider)

	_, err := svc.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Items:         []pricing.ItemInput{{ID: "101", Quantity: float64(1)}},
		DeliveryID:    "boxberry",
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)

	receipt := provider.gotInit[0].Receipt
	require.NotNil(t, receipt)
	require.Len(t, receipt.Items, 2)
	require.Equal(t, int64(350000), receipt.Items[0].Amount)
	require.Equal(t, int64(30000), receipt.Items[1].Amount, "delivery line in minor units")

	var sum int64
	for _, item := range receipt.Items {
		sum += item.Amount
	}
	require.Equal(t, provider.gotInit[0].Amount, sum, "receipt total matches the charge")
}

func TestCreateOrderNoContactNoReceipt(t *testing.T) {
	t.Parallel()

	orders := &memOrders{}
	provider := &fakeProvider{session: payment.Session{PaymentID: "pay-1", PaymentURL: "https://pay.example/1"}}
	svc := newIntake(orders, provider)

	_, err := svc.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Items: []pricing.ItemInput{{ID: "101", Quantity: float64(1)}},
	})
	require.NoError(t, err)
	require.Nil(t, provider.gotInit[0].Receipt)
}

func TestCreateOrderStoreErrorPropagates(t *testing.T) {
	t.Parallel()

	orders := &memOrders{createErr: errors.New("connection refused")}
	svc := newIntake(orders, &fakeProvider{})

	_, err := svc.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Items: []pricing.ItemInput{{ID: "101", Quantity: float64(1)}},
	})
	require.Error(t, err)
}
