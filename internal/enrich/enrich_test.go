package enrich

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/upstream"
	"github.com/solyse/club-flow/pkg/logger"
)

type stubCatalog struct {
	products []upstream.Product
	err      error
	calls    int
}

func (s *stubCatalog) Products(context.Context) ([]upstream.Product, error) {
	s.calls++
	return s.products, s.err
}

var testProducts = []upstream.Product{
	{ID: "prod-1", Name: "Tour Bag", Tag: "tour", VariantID: "v1", Price: 40,
		Dimensions: upstream.Dimensions{Depth: "14", Height: "48", Weight: "48", Width: "14"}},
	{ID: "prod-2", Name: "Carry Bag", Tag: "carry", VariantID: "v2", Price: 30},
}

func newTestEngine(t *testing.T, catalog CatalogSource) (*Engine, *cache.Client) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "enrich-test", Level: zerolog.Disabled, Output: &bytes.Buffer{}})
	cacheClient, err := cache.NewClient(cache.NewMemoryStore(), "test", logg, nil)
	require.NoError(t, err)
	engine, err := NewEngine(catalog, cacheClient, logg)
	require.NoError(t, err)
	return engine, cacheClient
}

func TestEnrichJoinsProductAndMember(t *testing.T) {
	owner := upstream.Customer{
		ID: "cust-1", FirstName: "Jordan", LastName: "Lee",
		Email: "jordan@example.com", VIP: true,
		VIPMembershipStartDate: "2026-01-01",
	}
	item := upstream.Item{ItemID: "prod-1", ItemCode: "ABCD1234"}

	enriched, ok := Enrich(item, owner, testProducts)
	require.True(t, ok)
	assert.Equal(t, "Tour Bag", enriched.Name)
	assert.Equal(t, "tour", enriched.Type)
	assert.Equal(t, 1, enriched.Quantity)
	assert.Equal(t, 40.0, enriched.Price.Amount)
	assert.Equal(t, "USD", enriched.Price.Currency)
	assert.True(t, enriched.ProfileComplete)
	assert.True(t, enriched.Member.VIP)
	require.NotNil(t, enriched.Member.VIPMembershipStartDate)
	assert.Nil(t, enriched.Member.VIPMembershipEndDate)
}

func TestEnrichProfileIncomplete(t *testing.T) {
	owner := upstream.Customer{ID: "cust-1", FirstName: "Jordan"}
	enriched, ok := Enrich(upstream.Item{ItemID: "prod-1"}, owner, testProducts)
	require.True(t, ok)
	assert.False(t, enriched.ProfileComplete)
}

func TestEnrichUnknownProductDropped(t *testing.T) {
	_, ok := Enrich(upstream.Item{ItemID: "prod-404"}, upstream.Customer{}, testProducts)
	assert.False(t, ok)
}

func TestEnrichOwnerFiltersByCode(t *testing.T) {
	engine, cacheClient := newTestEngine(t, &stubCatalog{products: testProducts})
	ctx := context.Background()

	owner := upstream.Customer{
		ID: "cust-1", FirstName: "Jordan", Email: "jordan@example.com",
		Items: []upstream.Item{
			{ItemID: "prod-1", ItemCode: "ABCD1234"},
			{ItemID: "prod-2", ItemCode: "ZZZZ9999"},
		},
	}
	engine.EnrichOwner(ctx, "sess-1", owner, "ABCD1234")

	var stored []EnrichedItem
	require.True(t, cacheClient.Get(ctx, "sess-1", cache.KeyEnrichedItems, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "ABCD1234", stored[0].ItemCode)
}

func TestEnrichAllTakesEveryItem(t *testing.T) {
	engine, cacheClient := newTestEngine(t, &stubCatalog{products: testProducts})
	ctx := context.Background()

	owner := upstream.Customer{
		ID: "cust-1", FirstName: "Jordan", Email: "jordan@example.com",
		Items: []upstream.Item{
			{ItemID: "prod-1", ItemCode: "ABCD1234"},
			{ItemID: "prod-2", ItemCode: "ZZZZ9999"},
		},
	}
	engine.EnrichAll(ctx, "sess-1", owner)

	var stored []EnrichedItem
	require.True(t, cacheClient.Get(ctx, "sess-1", cache.KeyEnrichedItems, &stored))
	assert.Len(t, stored, 2)
}

func TestEmptyBatchDoesNotOverwrite(t *testing.T) {
	engine, cacheClient := newTestEngine(t, &stubCatalog{products: testProducts})
	ctx := context.Background()

	seeded := []EnrichedItem{{ItemID: "prod-1", ItemCode: "ABCD1234", Name: "Tour Bag"}}
	cacheClient.Set(ctx, "sess-1", cache.KeyEnrichedItems, seeded)

	// Every item misses the catalog, so the batch comes out empty.
	owner := upstream.Customer{
		ID:    "cust-1",
		Items: []upstream.Item{{ItemID: "prod-404", ItemCode: "QQQQ0000"}},
	}
	engine.EnrichAll(ctx, "sess-1", owner)

	var stored []EnrichedItem
	require.True(t, cacheClient.Get(ctx, "sess-1", cache.KeyEnrichedItems, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "Tour Bag", stored[0].Name)
}

func TestCatalogFetchedWhenCacheEmpty(t *testing.T) {
	catalog := &stubCatalog{products: testProducts}
	engine, cacheClient := newTestEngine(t, catalog)
	ctx := context.Background()

	owner := upstream.Customer{
		ID: "cust-1", FirstName: "Jordan", Email: "jordan@example.com",
		Items: []upstream.Item{{ItemID: "prod-1", ItemCode: "ABCD1234"}},
	}
	engine.EnrichOwner(ctx, "sess-1", owner, "ABCD1234")

	assert.Equal(t, 1, catalog.calls)
	var products []upstream.Product
	require.True(t, cacheClient.Get(ctx, "sess-1", cache.KeyProducts, &products))
	assert.Len(t, products, 2)

	// Second run hits the cached catalog.
	engine.EnrichOwner(ctx, "sess-1", owner, "ABCD1234")
	assert.Equal(t, 1, catalog.calls)
}

func TestCatalogFailureLeavesCacheUntouched(t *testing.T) {
	engine, cacheClient := newTestEngine(t, &stubCatalog{err: errors.New("upstream down")})
	ctx := context.Background()

	owner := upstream.Customer{
		ID:    "cust-1",
		Items: []upstream.Item{{ItemID: "prod-1", ItemCode: "ABCD1234"}},
	}
	engine.EnrichOwner(ctx, "sess-1", owner, "ABCD1234")

	var stored []EnrichedItem
	assert.False(t, cacheClient.Get(ctx, "sess-1", cache.KeyEnrichedItems, &stored))
}
