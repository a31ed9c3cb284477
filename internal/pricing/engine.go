package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slava9999-dev/arbarea-backend/internal/catalog"
	"github.com/slava9999-dev/arbarea-backend/internal/common"
	"github.com/slava9999-dev/arbarea-backend/internal/shipping"
)

const (
	donationPrefix = "donate-"
	donationMin    = 10
	donationMax    = 100000
)

// ItemInput is a raw cart entry as sent by the client. Quantity is kept
// untyped because clients send it as a number or a string interchangeably.
type ItemInput struct {
	ID       string `json:"id"`
	Quantity any    `json:"quantity"`
}

// Line is a priced cart entry. All amounts are whole rubles sourced from the
// server-side catalog, never from the request.
type Line struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Amount    int64  `json:"amount"`
	Donation  bool   `json:"donation,omitempty"`
}

// Quote is the server-computed order total.
type Quote struct {
	Lines    []Line
	Delivery shipping.Method
	Subtotal int64
	Shipping int64
	Total    int64
}

type productSource interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

// Engine recomputes cart totals from the catalog.
type Engine struct {
	Catalog productSource
}

// Price resolves every cart line against the catalog or the donation rule,
// then applies delivery cost. It validates everything before reporting the
// first failure, so a bad cart never produces a partial order.
func (e Engine) Price(ctx context.Context, items []ItemInput, deliveryID string, authenticated bool) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, common.ValidationError("items must not be empty")
	}

	var q Quote
	for _, item := range items {
		line, err := e.priceLine(ctx, item)
		if err != nil {
			return Quote{}, err
		}
		q.Lines = append(q.Lines, line)
		q.Subtotal += line.Amount
	}

	method, cost := shipping.Quote(deliveryID, authenticated)
	q.Delivery = method
	q.Shipping = cost
	q.Total = q.Subtotal + q.Shipping
	return q, nil
}

func (e Engine) priceLine(ctx context.Context, item ItemInput) (Line, error) {
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return Line{}, common.ValidationError("item id must not be empty")
	}

	if strings.HasPrefix(id, donationPrefix) {
		amount, err := parseDonation(id)
		if err != nil {
			return Line{}, err
		}
		// Donations are single units regardless of the requested quantity.
		return Line{
			ID:        id,
			Name:      "Пожертвование",
			UnitPrice: amount,
			Quantity:  1,
			Amount:    amount,
			Donation:  true,
		}, nil
	}

	product, err := e.Catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Line{}, common.ValidationError(fmt.Sprintf("product not found: %s", id))
		}
		return Line{}, err
	}
	qty := coerceQuantity(item.Quantity)
	return Line{
		ID:        product.ID,
		Name:      product.Title,
		UnitPrice: product.Price,
		Quantity:  qty,
		Amount:    product.Price * qty,
	}, nil
}

func parseDonation(id string) (int64, error) {
	raw := strings.TrimPrefix(id, donationPrefix)
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount < donationMin || amount > donationMax {
		return 0, common.ValidationError("invalid donation amount")
	}
	return amount, nil
}

// coerceQuantity normalises client quantities to a positive integer. Anything
// unparseable or below one counts as a single unit.
func coerceQuantity(v any) int64 {
	switch q := v.(type) {
	case nil:
		return 1
	case float64:
		if n := int64(q); n >= 1 {
			return n
		}
	case int:
		if q >= 1 {
			return int64(q)
		}
	case int64:
		if q >= 1 {
			return q
		}
	case json.Number:
		if n, err := q.Int64(); err == nil && n >= 1 {
			return n
		}
		if f, err := q.Float64(); err == nil && int64(f) >= 1 {
			return int64(f)
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(q), 64); err == nil && int64(f) >= 1 {
			return int64(f)
		}
	}
	return 1
}
