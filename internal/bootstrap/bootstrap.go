// Package bootstrap assembles everything a fresh session needs before the
// first screen renders: remote config, visitor location, the product catalog,
// and the shipping lane with its rate options.
package bootstrap

import (
	"context"
	"errors"

	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/quote"
	"github.com/solyse/club-flow/internal/rates"
	"github.com/solyse/club-flow/internal/upstream"
	perrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
	"github.com/solyse/club-flow/pkg/metrics"
)

// Upstream is the slice of the gateway the orchestrator needs.
type Upstream interface {
	ASConfig(ctx context.Context, session string) (*upstream.ASConfigData, error)
	Location(ctx context.Context, session string) (*upstream.LocationInfo, error)
	Products(ctx context.Context) ([]upstream.Product, error)
	CalculateRates(ctx context.Context, from, to upstream.RatesAddress) ([]upstream.Rate, error)
	PlaceDetails(ctx context.Context, query string) (*upstream.Place, error)
	Event(ctx context.Context, id string) (*upstream.EventMeta, error)
	PartnerByID(ctx context.Context, id string) (*upstream.Partner, error)
}

// Entry modes. An absent or unknown mode falls back to login.
const (
	ModeLogin = "login"
	ModeQuote = "quote"
	ModeEvent = "event"
)

// Source statuses. Config, location and products swallow their own fetch
// errors and still reach a terminal state; degraded means exactly that.
const (
	StatusLoaded   = "loaded"
	StatusDegraded = "degraded"
	StatusError    = "error"
	StatusSkipped  = "skipped"
)

// Params is the query-string contract of the entry URL.
type Params struct {
	Mode        string
	Pickup      string
	Destination string
	Event       string
	Partner     string
}

// NormalizedMode resolves the effective entry mode.
func (p Params) NormalizedMode() string {
	switch p.Mode {
	case ModeQuote, ModeEvent:
		return p.Mode
	default:
		return ModeLogin
	}
}

// SourceStatus is the terminal state one source reached during the load.
type SourceStatus struct {
	Status    string `json:"status"`
	FromCache bool   `json:"from_cache,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Sources reports the terminal state of each load step.
type Sources struct {
	ASConfig   SourceStatus `json:"as_config"`
	Location   SourceStatus `json:"location"`
	Products   SourceStatus `json:"products"`
	QuoteRates SourceStatus `json:"quote_rates"`
}

// Result is everything the first screen needs.
type Result struct {
	Mode                string                   `json:"mode"`
	CountryCodes        []upstream.CountryCode   `json:"country_codes,omitempty"`
	CallingCode         string                   `json:"calling_code"`
	Location            *upstream.LocationInfo   `json:"location,omitempty"`
	Products            []upstream.Product       `json:"products,omitempty"`
	Event               *quote.StoredEvent       `json:"event,omitempty"`
	Quote               *quote.Data              `json:"quote,omitempty"`
	Options             []rates.Option           `json:"shipping_options,omitempty"`
	RatesError          string                   `json:"rates_error,omitempty"`
	International       bool                     `json:"international"`
	InitialLoadComplete bool                     `json:"initial_load_complete"`
	Sources             Sources                  `json:"sources"`
}

// QuoteRecord is the persisted quote snapshot. It is written as soon as a
// lane resolves and updated once the rates step reaches a terminal state, so
// the options endpoint always serves the latest pass.
type QuoteRecord struct {
	Quote         quote.Data     `json:"quote"`
	Options       []rates.Option `json:"shipping_options,omitempty"`
	RatesError    string         `json:"rates_error,omitempty"`
	International bool           `json:"international,omitempty"`
}

// Orchestrator runs the initial data load for a session. The four sources
// run in a fixed sequence; quote+rates is gated behind the config step
// because tier classification needs the configured carrier.
type Orchestrator struct {
	api   Upstream
	cache *cache.Client
	logg  *logger.Logger
	flow  *metrics.FlowMetrics
}

func NewOrchestrator(api Upstream, cacheClient *cache.Client, logg *logger.Logger, flow *metrics.FlowMetrics) (*Orchestrator, error) {
	if api == nil {
		return nil, errors.New("upstream gateway is required")
	}
	if cacheClient == nil {
		return nil, errors.New("cache client is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Orchestrator{api: api, cache: cacheClient, logg: logg, flow: flow}, nil
}

// Load runs the full bootstrap for a session. Config, location and products
// never fail the call; quote+rates reports its own error in-band. The
// returned error is reserved for programmer mistakes, so callers may treat
// any non-nil error as a 500.
func (o *Orchestrator) Load(ctx context.Context, session string, params Params) (*Result, error) {
	result := &Result{Mode: params.NormalizedMode()}

	// One-time reset of per-flow state. The quote key survives so a lane
	// captured on a previous visit still drives the rates step.
	if !o.cache.Has(ctx, session, cache.KeyAppInitialized) {
		o.cache.ResetFirstLoad(ctx, session)
		o.cache.Set(ctx, session, cache.KeyAppInitialized, true)
	}

	asCfg := o.loadASConfig(ctx, session, result)
	o.loadLocation(ctx, session, result)
	o.loadProducts(ctx, session, result)
	o.loadQuoteAndRates(ctx, session, params, asCfg, result)

	result.CallingCode = result.Location.CallingCode()
	result.InitialLoadComplete = result.Sources.ASConfig.Status != "" &&
		result.Sources.Location.Status != "" &&
		result.Sources.Products.Status != ""
	return result, nil
}

func (o *Orchestrator) loadASConfig(ctx context.Context, session string, result *Result) *upstream.ASConfigData {
	var codes []upstream.CountryCode
	if o.cache.Get(ctx, session, cache.KeyCountryCodes, &codes) && len(codes) > 0 {
		result.CountryCodes = codes
		result.Sources.ASConfig = SourceStatus{Status: StatusLoaded, FromCache: true}
		return nil
	}

	data, err := o.api.ASConfig(ctx, session)
	if err != nil {
		o.logg.Error(ctx, "bootstrap: as-config fetch failed", err)
		result.Sources.ASConfig = SourceStatus{Status: StatusDegraded, Message: "configuration unavailable"}
		return nil
	}
	result.CountryCodes = data.CountryCodes
	result.Sources.ASConfig = SourceStatus{Status: StatusLoaded}
	return data
}

func (o *Orchestrator) loadLocation(ctx context.Context, session string, result *Result) {
	var cached upstream.LocationInfo
	if o.cache.Get(ctx, session, cache.KeyLocation, &cached) {
		result.Location = &cached
		result.Sources.Location = SourceStatus{Status: StatusLoaded, FromCache: true}
		return
	}

	info, err := o.api.Location(ctx, session)
	if err != nil {
		o.logg.Error(ctx, "bootstrap: location fetch failed", err)
		result.Sources.Location = SourceStatus{Status: StatusDegraded, Message: "location unavailable"}
		return
	}
	result.Location = info
	result.Sources.Location = SourceStatus{Status: StatusLoaded}
}

func (o *Orchestrator) loadProducts(ctx context.Context, session string, result *Result) {
	var cached []upstream.Product
	if o.cache.Get(ctx, session, cache.KeyProducts, &cached) && len(cached) > 0 {
		result.Products = cached
		result.Sources.Products = SourceStatus{Status: StatusLoaded, FromCache: true}
		return
	}

	products, err := o.api.Products(ctx)
	if err != nil {
		o.logg.Error(ctx, "bootstrap: products fetch failed", err)
		result.Sources.Products = SourceStatus{Status: StatusError, Message: "Failed to load products"}
		return
	}
	if len(products) == 0 {
		result.Sources.Products = SourceStatus{Status: StatusError, Message: "No products available"}
		return
	}
	o.cache.Set(ctx, session, cache.KeyProducts, products)
	result.Products = products
	result.Sources.Products = SourceStatus{Status: StatusLoaded}
}

// loadQuoteAndRates resolves the lane for the entry mode, persists it, and
// calculates the rate options. Any non-US country on either end short-circuits
// into the international handoff instead of computing a domestic rate.
func (o *Orchestrator) loadQuoteAndRates(ctx context.Context, session string, params Params, asCfg *upstream.ASConfigData, result *Result) {
	lane, ok := o.resolveLane(ctx, session, params, result)
	if !ok {
		return
	}
	if !hasEndpoint(lane.From) || !hasEndpoint(lane.To) {
		result.Sources.QuoteRates = SourceStatus{Status: StatusSkipped}
		return
	}

	result.Quote = lane
	o.cache.Set(ctx, session, cache.KeyQuotes, QuoteRecord{Quote: *lane})

	if !lane.IsDomestic() {
		result.International = true
		result.Sources.QuoteRates = SourceStatus{Status: StatusLoaded}
		o.cache.Set(ctx, session, cache.KeyQuotes, QuoteRecord{Quote: *lane, International: true})
		return
	}

	from, to := lane.RatesAddresses()
	rawRates, err := o.api.CalculateRates(ctx, from, to)
	if err != nil {
		o.logg.Error(ctx, "bootstrap: rate calculation failed", err)
		o.flow.IncRatesFailure()
		result.RatesError = "Unable to calculate shipping rates. Please try again."
		result.Sources.QuoteRates = SourceStatus{Status: StatusError, Message: result.RatesError}
		o.cache.Set(ctx, session, cache.KeyQuotes, QuoteRecord{Quote: *lane, RatesError: result.RatesError})
		return
	}

	options, err := rates.Normalize(rawRates, true, asCfg.Carrier())
	if err != nil {
		o.flow.IncRatesFailure()
		result.RatesError = ratesMessage(err)
		result.Sources.QuoteRates = SourceStatus{Status: StatusError, Message: result.RatesError}
		o.cache.Set(ctx, session, cache.KeyQuotes, QuoteRecord{Quote: *lane, RatesError: result.RatesError})
		return
	}

	result.Options = options
	result.Sources.QuoteRates = SourceStatus{Status: StatusLoaded}
	o.cache.Set(ctx, session, cache.KeyQuotes, QuoteRecord{Quote: *lane, Options: options})
}

// resolveLane produces the shipping lane for the entry mode. ok=false means
// the quote step already reached a terminal status and rates must not run.
func (o *Orchestrator) resolveLane(ctx context.Context, session string, params Params, result *Result) (*quote.Data, bool) {
	switch result.Mode {
	case ModeQuote:
		return o.laneFromPlaces(ctx, session, params, result)
	case ModeEvent:
		return o.laneFromEvent(ctx, session, params, result)
	default:
		var lane quote.Data
		if !o.cache.Get(ctx, session, cache.KeyQuote, &lane) {
			result.Sources.QuoteRates = SourceStatus{Status: StatusSkipped}
			return nil, false
		}
		return &lane, true
	}
}

// laneFromPlaces geocodes the pickup and destination queries. A failed
// lookup is the one source error the visitor must see, so it is never
// swallowed into a silent skip.
func (o *Orchestrator) laneFromPlaces(ctx context.Context, session string, params Params, result *Result) (*quote.Data, bool) {
	if params.Pickup == "" || params.Destination == "" {
		result.Sources.QuoteRates = SourceStatus{Status: StatusSkipped}
		return nil, false
	}

	pickup, err := o.api.PlaceDetails(ctx, params.Pickup)
	if err == nil {
		var destination *upstream.Place
		destination, err = o.api.PlaceDetails(ctx, params.Destination)
		if err == nil {
			lane := quote.BuildFromPlaces(pickup, destination)
			o.cache.Set(ctx, session, cache.KeyQuote, &lane)
			return &lane, true
		}
	}

	o.logg.Error(ctx, "bootstrap: place lookup failed", err)
	result.RatesError = "Unable to locate the pickup or destination address. Please try again."
	result.Sources.QuoteRates = SourceStatus{Status: StatusError, Message: result.RatesError}
	return nil, false
}

// laneFromEvent fetches the event, persists its display subset, and builds a
// lane from the member's default address to the event destination.
func (o *Orchestrator) laneFromEvent(ctx context.Context, session string, params Params, result *Result) (*quote.Data, bool) {
	if params.Event == "" {
		result.Sources.QuoteRates = SourceStatus{Status: StatusSkipped}
		return nil, false
	}
	if params.Partner != "" {
		o.cache.Set(ctx, session, cache.KeyPartnerReference, params.Partner)
	}

	meta, err := o.api.Event(ctx, params.Event)
	if err != nil {
		o.logg.Error(ctx, "bootstrap: event fetch failed", err)
		result.RatesError = "Unable to load event details. Please try again."
		result.Sources.QuoteRates = SourceStatus{Status: StatusError, Message: result.RatesError}
		return nil, false
	}

	stored := quote.ExtractEvent(meta, params.Event)
	o.cache.Set(ctx, session, cache.KeyEvent, &stored)
	result.Event = &stored

	owner, ok := o.eventOwner(ctx, session, params.Partner)
	if !ok {
		result.Sources.QuoteRates = SourceStatus{Status: StatusSkipped}
		return nil, false
	}

	lane, ok := quote.GenerateEventQuote(meta, owner)
	if !ok {
		result.Sources.QuoteRates = SourceStatus{Status: StatusSkipped}
		return nil, false
	}
	o.cache.Set(ctx, session, cache.KeyQuote, &lane)
	return &lane, true
}

// eventOwner finds the member whose address anchors the event lane: the
// cached partner or tag owner first, then a partner-reference lookup.
func (o *Orchestrator) eventOwner(ctx context.Context, session, partnerRef string) (upstream.Customer, bool) {
	var owner upstream.Customer
	if o.cache.Get(ctx, session, cache.KeyClubPartner, &owner) {
		return owner, true
	}
	if o.cache.Get(ctx, session, cache.KeyItemsOwner, &owner) {
		return owner, true
	}

	ref := partnerRef
	if ref == "" {
		o.cache.Get(ctx, session, cache.KeyPartnerReference, &ref)
	}
	if ref == "" {
		return upstream.Customer{}, false
	}

	partner, err := o.api.PartnerByID(ctx, ref)
	if err != nil {
		o.logg.Error(ctx, "bootstrap: partner lookup failed", err)
		return upstream.Customer{}, false
	}
	if partner == nil {
		return upstream.Customer{}, false
	}
	owner = partner.AsCustomer()
	o.cache.Set(ctx, session, cache.KeyClubPartner, owner)
	return owner, true
}

func hasEndpoint(loc quote.Location) bool {
	return loc.Name != "" || loc.City != "" || loc.Street1 != ""
}

func ratesMessage(err error) string {
	if typed := perrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return err.Error()
}
