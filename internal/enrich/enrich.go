package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/upstream"
	"github.com/solyse/club-flow/pkg/logger"
)

// Member is the denormalized owner snapshot carried on each enriched item.
type Member struct {
	FirstName              string  `json:"firstName"`
	LastName               string  `json:"lastName"`
	Phone                  string  `json:"phone"`
	Email                  string  `json:"email"`
	ID                     string  `json:"id"`
	VIP                    bool    `json:"vip"`
	VIPMembershipStartDate *string `json:"vip_membership_start_date"`
	VIPMembershipEndDate   *string `json:"vip_membership_end_date"`
}

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// EnrichedItem is a display-ready bag: raw item joined with its catalog
// product and owner snapshot.
type EnrichedItem struct {
	ItemID          string              `json:"item_id"`
	ItemCode        string              `json:"item_code"`
	Name            string              `json:"name"`
	Type            string              `json:"type"`
	VariantID       string              `json:"variant_id"`
	Dimensions      upstream.Dimensions `json:"dimensions"`
	Price           Price               `json:"price"`
	Quantity        int                 `json:"quantity"`
	ProfileComplete bool                `json:"profileComplete"`
	Member          Member              `json:"member"`
}

// CatalogSource provides the product list when the cache is empty.
type CatalogSource interface {
	Products(ctx context.Context) ([]upstream.Product, error)
}

// Engine joins raw items against the catalog and maintains the cached
// enriched-item list for a session.
type Engine struct {
	catalog CatalogSource
	cache   *cache.Client
	logg    *logger.Logger
}

func NewEngine(catalog CatalogSource, cacheClient *cache.Client, logg *logger.Logger) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("catalog source is required")
	}
	if cacheClient == nil {
		return nil, errors.New("cache client is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Engine{catalog: catalog, cache: cacheClient, logg: logg}, nil
}

// Enrich joins one item against the catalog. ok is false when no product
// matches the item's ID; such items are dropped.
func Enrich(item upstream.Item, owner upstream.Customer, catalog []upstream.Product) (EnrichedItem, bool) {
	var product *upstream.Product
	for i := range catalog {
		if catalog[i].ID == item.ItemID {
			product = &catalog[i]
			break
		}
	}
	if product == nil {
		return EnrichedItem{}, false
	}

	return EnrichedItem{
		ItemID:          item.ItemID,
		ItemCode:        item.ItemCode,
		Name:            product.Name,
		Type:            product.Tag,
		VariantID:       product.VariantID,
		Dimensions:      product.Dimensions,
		Price:           Price{Amount: product.Price, Currency: "USD"},
		Quantity:        1,
		ProfileComplete: owner.FirstName != "" && (owner.Phone != "" || owner.Email != ""),
		Member: Member{
			FirstName:              owner.FirstName,
			LastName:               owner.LastName,
			Phone:                  owner.Phone,
			Email:                  owner.Email,
			ID:                     owner.ID,
			VIP:                    owner.VIP,
			VIPMembershipStartDate: optional(owner.VIPMembershipStartDate),
			VIPMembershipEndDate:   optional(owner.VIPMembershipEndDate),
		},
	}, true
}

// EnrichOwner rebuilds the cached list from the owner's items matching code.
// It implements the gateway's item sink.
func (e *Engine) EnrichOwner(ctx context.Context, session string, owner upstream.Customer, code string) {
	matching := make([]upstream.Item, 0, len(owner.Items))
	for _, item := range owner.Items {
		if item.ItemCode == code {
			matching = append(matching, item)
		}
	}
	if len(matching) == 0 {
		e.logg.Warn(e.logg.WithField(ctx, "code", code), "enrich: no items match scanned code")
		return
	}
	e.run(ctx, session, owner, matching)
}

// EnrichAll rebuilds the cached list from every item on the record, used on
// the partner entry path where no scanned code filters the set.
func (e *Engine) EnrichAll(ctx context.Context, session string, owner upstream.Customer) {
	if len(owner.Items) == 0 {
		e.logg.Info(ctx, "enrich: owner has no registered bags")
		return
	}
	e.run(ctx, session, owner, owner.Items)
}

func (e *Engine) run(ctx context.Context, session string, owner upstream.Customer, items []upstream.Item) {
	catalog := e.catalogFor(ctx, session)
	if len(catalog) == 0 {
		e.logg.Error(ctx, "enrich: no catalog available", nil)
		return
	}

	enriched := make([]EnrichedItem, 0, len(items))
	for _, item := range items {
		result, ok := Enrich(item, owner, catalog)
		if !ok {
			e.logg.Warn(e.logg.WithField(ctx, "item_id", item.ItemID), "enrich: product not found for item")
			continue
		}
		enriched = append(enriched, result)
	}

	// The list is replaced wholesale, but an empty batch never clobbers a
	// previously stored non-empty one.
	if len(enriched) == 0 {
		return
	}
	e.cache.Set(ctx, session, cache.KeyEnrichedItems, enriched)
	e.logg.Info(e.logg.WithField(ctx, "count", len(enriched)), "enrich: stored enriched items")
}

func (e *Engine) catalogFor(ctx context.Context, session string) []upstream.Product {
	var catalog []upstream.Product
	if e.cache.Get(ctx, session, cache.KeyProducts, &catalog) && len(catalog) > 0 {
		return catalog
	}
	fetched, err := e.catalog.Products(ctx)
	if err != nil {
		e.logg.Error(ctx, fmt.Sprintf("enrich: catalog fetch for session %s", session), err)
		return nil
	}
	if len(fetched) > 0 {
		e.cache.Set(ctx, session, cache.KeyProducts, fetched)
	}
	return fetched
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
