package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a product id is not in the catalog.
var ErrNotFound = errors.New("catalog: product not found")

// Product is a sellable catalog entry. Price is in whole rubles.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Price    int64  `json:"price"`
}

// Store reads products from Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// GetProduct returns one product by id, or ErrNotFound.
func (s Store) GetProduct(ctx context.Context, id string) (Product, error) {
	const q = `SELECT id, title, category, price FROM products WHERE id = $1`
	var p Product
	err := s.Pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Title, &p.Category, &p.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns the full catalog ordered by id.
func (s Store) ListProducts(ctx context.Context) ([]Product, error) {
	const q = `SELECT id, title, category, price FROM products ORDER BY id`
	rows, err := s.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Category, &p.Price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
