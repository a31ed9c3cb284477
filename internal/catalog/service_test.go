package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/slava9999-dev/arbarea-backend/internal/catalog"
)

type fakeStore struct {
	products map[string]catalog.Product
	getCalls int
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	f.getCalls++
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListProducts(_ context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func newService(t *testing.T, store *fakeStore) catalog.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return catalog.Service{Store: store, Cache: catalog.NewCache(client, time.Minute)}
}

func TestGetProductCachesAfterFirstRead(t *testing.T) {
	t.Parallel()

	store := &fakeStore{products: map[string]catalog.Product{
		"101": {ID: "101", Title: "Рейлинг", Price: 3500},
	}}
	svc := newService(t, store)

	first, err := svc.GetProduct(context.Background(), "101")
	require.NoError(t, err)
	require.Equal(t, int64(3500), first.Price)

	second, err := svc.GetProduct(context.Background(), "101")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, store.getCalls, "second read should be served from cache")
}

func TestGetProductUnknownID(t *testing.T) {
	t.Parallel()

	svc := newService(t, &fakeStore{products: map[string]catalog.Product{}})
	_, err := svc.GetProduct(context.Background(), "no-such-id")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestGetProductWorksWithoutCache(t *testing.T) {
	t.Parallel()

	store := &fakeStore{products: map[string]catalog.Product{
		"1": {ID: "1", Title: "Стол", Price: 8900},
	}}
	svc := catalog.Service{Store: store, Cache: catalog.NewCache(nil, 0)}

	p, err := svc.GetProduct(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, int64(8900), p.Price)
}
