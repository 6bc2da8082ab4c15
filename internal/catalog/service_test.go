package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-loja/internal/repo"
)

type fakeReader struct {
	products map[uuid.UUID]repo.ProductSummary
	batches  int
}

func (f *fakeReader) SummariesByIDs(_ context.Context, ids []uuid.UUID) ([]repo.ProductSummary, error) {
	f.batches++
	var out []repo.ProductSummary
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeReader) GetSummary(_ context.Context, id uuid.UUID) (repo.ProductSummary, error) {
	p, ok := f.products[id]
	if !ok {
		return repo.ProductSummary{}, repo.ErrNoRows
	}
	return p, nil
}

func newCatalog(t *testing.T) (*Service, *fakeReader) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	reader := &fakeReader{products: map[uuid.UUID]repo.ProductSummary{}}
	return &Service{Reader: reader, Cache: NewCache(client, time.Minute)}, reader
}

func TestSummaryCachesAfterFirstRead(t *testing.T) {
	svc, reader := newCatalog(t)
	id := uuid.New()
	reader.products[id] = repo.ProductSummary{ID: id, Name: "Camiseta Azul", CurrentPrice: 5000}

	p, err := svc.Summary(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Camiseta Azul", p.Name)

	// Remove the backing row; the cached copy must still answer.
	delete(reader.products, id)
	p, err = svc.Summary(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(5000), p.CurrentPrice)
}

func TestSummaryMissing(t *testing.T) {
	svc, _ := newCatalog(t)
	_, err := svc.Summary(context.Background(), uuid.New())
	require.ErrorIs(t, err, repo.ErrNoRows)
}

func TestSummariesByIDsMixedHits(t *testing.T) {
	svc, reader := newCatalog(t)
	a, b, gone := uuid.New(), uuid.New(), uuid.New()
	reader.products[a] = repo.ProductSummary{ID: a, Name: "Tênis", CurrentPrice: 19900}
	reader.products[b] = repo.ProductSummary{ID: b, Name: "Meia", CurrentPrice: 1500}

	// Warm one entry.
	_, err := svc.Summary(context.Background(), a)
	require.NoError(t, err)
	reader.batches = 0

	got, err := svc.SummariesByIDs(context.Background(), []uuid.UUID{a, b, gone, a})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Tênis", got[a].Name)
	require.Equal(t, "Meia", got[b].Name)
	require.NotContains(t, got, gone)
	require.Equal(t, 1, reader.batches)
}

func TestNilCacheDegrades(t *testing.T) {
	reader := &fakeReader{products: map[uuid.UUID]repo.ProductSummary{}}
	id := uuid.New()
	reader.products[id] = repo.ProductSummary{ID: id, Name: "Boné", CurrentPrice: 3000}
	svc := &Service{Reader: reader, Cache: nil}

	p, err := svc.Summary(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Boné", p.Name)
}
