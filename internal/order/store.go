package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slava9999-dev/arbarea-backend/internal/common"
	"github.com/slava9999-dev/arbarea-backend/internal/pricing"
)

// ErrNotFound is returned when no order matches the public order id.
var ErrNotFound = errors.New("order: not found")

const pgUniqueViolation = "23505"

// Store persists orders in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// Create inserts a new order in pending_payment state. A duplicate public
// order id surfaces as a ConflictError via the unique constraint.
func (s Store) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	const q = `
		INSERT INTO orders (
			order_id, user_id, customer_name, customer_email, customer_phone,
			items, subtotal, shipping, total, delivery_method, delivery_address, status
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, status, created_at, updated_at`
	err = s.Pool.QueryRow(ctx, q,
		o.OrderID, o.UserID, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		items, o.Subtotal, o.Shipping, o.Total, o.DeliveryMethod, o.DeliveryAddress,
		string(StatusPendingPayment),
	).Scan(&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ConflictError(fmt.Sprintf("order already exists: %s", o.OrderID), err)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const orderColumns = `
	id, order_id, COALESCE(user_id, ''), COALESCE(customer_name, ''),
	COALESCE(customer_email, ''), COALESCE(customer_phone, ''), items,
	subtotal, shipping, total, COALESCE(delivery_method, ''),
	COALESCE(delivery_address, ''), COALESCE(payment_id, ''),
	COALESCE(payment_url, ''), COALESCE(payment_status, ''),
	COALESCE(payment_amount, 0), COALESCE(payment_error_code, ''),
	status, created_at, updated_at`

// GetByOrderID loads an order by its public id.
func (s Store) GetByOrderID(ctx context.Context, orderID string) (Order, error) {
	q := `SELECT` + orderColumns + ` FROM orders WHERE order_id = $1`
	row := s.Pool.QueryRow(ctx, q, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("select order: %w", err)
	}
	return o, nil
}

// SetPaymentSession records the provider session created for the order.
func (s Store) SetPaymentSession(ctx context.Context, orderID, paymentID, paymentURL string) error {
	const q = `
		UPDATE orders
		SET payment_id = $2, payment_url = $3, updated_at = now()
		WHERE order_id = $1`
	tag, err := s.Pool.Exec(ctx, q, orderID, paymentID, paymentURL)
	if err != nil {
		return fmt.Errorf("update payment session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyStatus transitions the order in a single conditional UPDATE that also
// returns the pre-transition status, so concurrent webhook deliveries cannot
// observe a stale state between a read and a write. A paid order receiving
// another paid transition keeps all of its fields untouched.
func (s Store) ApplyStatus(ctx context.Context, u StatusUpdate) (StatusResult, error) {
	if !u.Next.Valid() {
		return StatusResult{}, fmt.Errorf("invalid target status %q", u.Next)
	}
	const q = `
		UPDATE orders o SET
			status = CASE WHEN prev.skip THEN o.status ELSE $2::order_status END,
			payment_status = CASE WHEN prev.skip THEN o.payment_status ELSE $3 END,
			payment_id = CASE WHEN prev.skip THEN o.payment_id
				ELSE COALESCE(NULLIF($4, ''), o.payment_id) END,
			payment_error_code = CASE WHEN prev.skip THEN o.payment_error_code ELSE NULLIF($5, '') END,
			payment_amount = CASE WHEN prev.skip OR $6 <= 0 THEN o.payment_amount ELSE $6 END,
			updated_at = CASE WHEN prev.skip THEN o.updated_at ELSE now() END
		FROM (
			SELECT id, status,
				(status = 'paid'::order_status AND $2::order_status = 'paid'::order_status) AS skip
			FROM orders WHERE order_id = $1 FOR UPDATE
		) prev
		WHERE o.id = prev.id
		RETURNING prev.status, prev.skip`
	var prevStatus string
	var skipped bool
	err := s.Pool.QueryRow(ctx, q,
		u.OrderID, string(u.Next), u.ProviderStatus, u.PaymentID, u.ErrorCode, u.Amount,
	).Scan(&prevStatus, &skipped)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StatusResult{}, ErrNotFound
		}
		return StatusResult{}, fmt.Errorf("apply order status: %w", err)
	}
	return StatusResult{Previous: Status(prevStatus), Applied: !skipped}, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var items []byte
	err := row.Scan(
		&o.ID, &o.OrderID, &o.UserID, &o.CustomerName,
		&o.CustomerEmail, &o.CustomerPhone, &items,
		&o.Subtotal, &o.Shipping, &o.Total, &o.DeliveryMethod,
		&o.DeliveryAddress, &o.PaymentID,
		&o.PaymentURL, &o.PaymentStatus,
		&o.PaymentAmount, &o.PaymentErrorCode,
		&o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return Order{}, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	if o.Items == nil {
		o.Items = []pricing.Line{}
	}
	return o, nil
}
