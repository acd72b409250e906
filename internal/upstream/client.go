package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/pkg/config"
	perrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
	"github.com/solyse/club-flow/pkg/metrics"
)

// Endpoint labels used for metrics and logging.
const (
	epItem           = "item"
	epProducts       = "products"
	epPartner        = "partner"
	epSendOTP        = "send-otp"
	epVerifyAuth     = "verify-auth"
	epCustomer       = "customer"
	epLocation       = "location"
	epASConfig       = "fetch-as-config"
	epRates          = "calculate-rates"
	epPlaceDetails   = "place-details"
	epEvent          = "event"
	epMarketingEvent = "klaviyo-create-event"
)

// ItemSink receives an owner record after a successful tag validation or
// registration so enriched items can be rebuilt. Wired after construction to
// keep the dependency one-directional.
type ItemSink interface {
	EnrichOwner(ctx context.Context, session string, owner Customer, code string)
}

// Client is the typed gateway to the core API and the IP-location provider.
// Failures are never retried; callers branch on the error code.
type Client struct {
	http        *http.Client
	baseURL     string
	locationURL string
	parcel      RatesParcel
	cache       *cache.Client
	logg        *logger.Logger
	flow        *metrics.FlowMetrics
	group       singleflight.Group
	sink        ItemSink
}

func NewClient(cfg config.UpstreamConfig, parcel RatesParcel, cacheClient *cache.Client, logg *logger.Logger, flow *metrics.FlowMetrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, perrors.New(perrors.CodeValidation, "upstream base url is required")
	}
	if cacheClient == nil {
		return nil, perrors.New(perrors.CodeValidation, "cache client is required")
	}
	if logg == nil {
		return nil, perrors.New(perrors.CodeValidation, "logger is required")
	}
	if parcel.Quantity <= 0 {
		parcel.Quantity = 1
	}
	return &Client{
		http:        &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:     cfg.BaseURL,
		locationURL: cfg.LocationURL,
		parcel:      parcel,
		cache:       cacheClient,
		logg:        logg,
		flow:        flow,
	}, nil
}

// SetItemSink attaches the enrichment callback.
func (c *Client) SetItemSink(sink ItemSink) {
	c.sink = sink
}

type envelope struct {
	X        int             `json:"x"`
	Data     json.RawMessage `json:"data"`
	Duration float64         `json:"duration"`
	Memory   string          `json:"memory"`
	Epsid    string          `json:"epsid"`
}

// do performs one request and unwraps the outer metering envelope. Any
// network failure, non-2xx status or malformed body maps to a transport
// error.
func (c *Client) do(ctx context.Context, method, rawURL, endpoint string, body any) (json.RawMessage, error) {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, perrors.Wrap(perrors.CodeInternal, err, fmt.Sprintf("encoding %s request", endpoint))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeInternal, err, fmt.Sprintf("building %s request", endpoint))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.flow.ObserveUpstream(endpoint, "error", time.Since(start))
		return nil, perrors.Wrap(perrors.CodeTransport, err, fmt.Sprintf("%s request failed", endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.flow.ObserveUpstream(endpoint, "error", time.Since(start))
		return nil, perrors.New(perrors.CodeTransport, fmt.Sprintf("%s returned status %d", endpoint, resp.StatusCode))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.flow.ObserveUpstream(endpoint, "error", time.Since(start))
		return nil, perrors.Wrap(perrors.CodeTransport, err, fmt.Sprintf("decoding %s response", endpoint))
	}

	c.flow.ObserveUpstream(endpoint, "ok", time.Since(start))
	return env.Data, nil
}

// ValidateTag resolves an 8-character bag tag to its owner. On success the
// owner is cached and the item sink rebuilds enriched items for the code.
func (c *Client) ValidateTag(ctx context.Context, session, code string) (*Customer, error) {
	if len(code) != 8 {
		return nil, perrors.New(perrors.CodeValidation, "tag code must be exactly 8 characters")
	}

	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/item", epItem, map[string]string{"code": code})
	if err != nil {
		return nil, err
	}

	var inner struct {
		Success bool      `json:"success"`
		Status  int       `json:"status"`
		Message string    `json:"message"`
		Data    *Customer `json:"data"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding item payload")
	}
	if !inner.Success {
		return nil, perrors.New(perrors.CodeDomain, messageOr(inner.Message, "tag not recognized"))
	}
	if inner.Data == nil {
		return nil, perrors.New(perrors.CodeTransport, "item payload missing owner data")
	}

	c.cache.Set(ctx, session, cache.KeyItemsOwner, inner.Data)
	if c.sink != nil {
		c.sink.EnrichOwner(ctx, session, *inner.Data, code)
	}
	return inner.Data, nil
}

// Products fetches the catalog. Concurrent callers share one in-flight
// request.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	result, err, _ := c.group.Do(epProducts, func() (any, error) {
		raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/products", epProducts, nil)
		if err != nil {
			return nil, err
		}
		var products []Product
		if err := json.Unmarshal(raw, &products); err != nil {
			return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding products payload")
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Product), nil
}

// Location resolves the visitor's IP-derived location and caches it for the
// session as a side effect.
func (c *Client) Location(ctx context.Context, session string) (*LocationInfo, error) {
	result, err, _ := c.group.Do(epLocation+":"+session, func() (any, error) {
		raw, err := c.do(ctx, http.MethodGet, c.locationURL, epLocation, nil)
		if err != nil {
			return nil, err
		}
		var info LocationInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding location payload")
		}
		c.cache.Set(ctx, session, cache.KeyLocation, &info)
		return &info, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*LocationInfo), nil
}

// ASConfig fetches remote configuration. A non-empty country-code list is
// cached for the session as a side effect.
func (c *Client) ASConfig(ctx context.Context, session string) (*ASConfigData, error) {
	result, err, _ := c.group.Do(epASConfig+":"+session, func() (any, error) {
		raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/fetch-as-config", epASConfig, nil)
		if err != nil {
			return nil, err
		}
		var data ASConfigData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding as-config payload")
		}
		if len(data.CountryCodes) > 0 {
			c.cache.Set(ctx, session, cache.KeyCountryCodes, data.CountryCodes)
		}
		return &data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ASConfigData), nil
}

// GetPartner looks a partner up by email or phone. An unknown contact is a
// normal branch and returns (nil, nil).
func (c *Client) GetPartner(ctx context.Context, query PartnerQuery) (*Partner, error) {
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/partner", epPartner, query)
	if err != nil {
		return nil, err
	}
	return decodePartner(raw)
}

// PartnerByID fetches a partner record by its identifier, used by the
// event-driven entry path.
func (c *Client) PartnerByID(ctx context.Context, id string) (*Partner, error) {
	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/partner?id="+url.QueryEscape(id), epPartner, nil)
	if err != nil {
		return nil, err
	}
	return decodePartner(raw)
}

func decodePartner(raw json.RawMessage) (*Partner, error) {
	var inner struct {
		Success bool     `json:"success"`
		Status  int      `json:"status"`
		Message string   `json:"message"`
		Data    *Partner `json:"data"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding partner payload")
	}
	if !inner.Success {
		return nil, nil
	}
	return inner.Data, nil
}

// SendOTP asks the core API to deliver a one-time code.
func (c *Client) SendOTP(ctx context.Context, req OTPRequest) (*OTPInfo, error) {
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/send-otp", epSendOTP, req)
	if err != nil {
		return nil, err
	}

	var inner struct {
		Success bool     `json:"success"`
		Status  int      `json:"status"`
		Message string   `json:"message"`
		OTPInfo *OTPInfo `json:"otp_info"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding send-otp payload")
	}
	if !inner.Success {
		return nil, perrors.New(perrors.CodeDomain, messageOr(inner.Message, "could not send verification code"))
	}
	return inner.OTPInfo, nil
}

// VerifyAuth checks a one-time code. A wrong code is a normal branch: the
// call reports ok=false with the upstream message and no error. No token or
// credential is ever returned.
func (c *Client) VerifyAuth(ctx context.Context, req VerifyRequest) (bool, string, error) {
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/verify-auth", epVerifyAuth, req)
	if err != nil {
		return false, "", err
	}

	var inner struct {
		Success bool   `json:"success"`
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return false, "", perrors.Wrap(perrors.CodeTransport, err, "decoding verify-auth payload")
	}
	return inner.Success, inner.Message, nil
}

// CreateCustomer registers a customer against a scanned item. The outcome is
// three-way: created, already exists (still a usable owner), or failed. On
// created-or-exists the owner is cached and enrichment runs.
func (c *Client) CreateCustomer(ctx context.Context, session string, req CustomerRequest) (*RegisterResult, error) {
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/customer", epCustomer, req)
	if err != nil {
		return nil, err
	}

	var inner struct {
		Success bool            `json:"success"`
		Exists  bool            `json:"exists"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
		Items   *Item           `json:"items"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding customer payload")
	}

	switch {
	case inner.Success:
		var created struct {
			ID          string  `json:"id"`
			Email       string  `json:"email"`
			Phone       string  `json:"phone"`
			FirstName   string  `json:"firstName"`
			LastName    *string `json:"lastName"`
			DisplayName string  `json:"displayName"`
		}
		if err := json.Unmarshal(inner.Data, &created); err != nil {
			return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding created customer")
		}
		owner := Customer{
			ID:          created.ID,
			FirstName:   created.FirstName,
			Email:       created.Email,
			Phone:       created.Phone,
			DisplayName: created.DisplayName,
			Tags:        []string{},
		}
		if created.LastName != nil {
			owner.LastName = *created.LastName
		}
		if inner.Items != nil {
			owner.Items = []Item{*inner.Items}
		}
		c.cache.Set(ctx, session, cache.KeyItemsOwner, &owner)
		if c.sink != nil && inner.Items != nil && inner.Items.ItemCode != "" {
			c.sink.EnrichOwner(ctx, session, owner, inner.Items.ItemCode)
		}
		return &RegisterResult{Outcome: RegisterCreated, Owner: &owner, Message: inner.Message}, nil

	case inner.Exists:
		result := &RegisterResult{Outcome: RegisterExists, Message: inner.Message}
		if len(inner.Data) > 0 {
			var owner Customer
			if err := json.Unmarshal(inner.Data, &owner); err != nil {
				return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding existing customer")
			}
			result.Owner = &owner
			c.cache.Set(ctx, session, cache.KeyItemsOwner, &owner)
			if c.sink != nil && len(owner.Items) > 0 && owner.Items[0].ItemCode != "" {
				c.sink.EnrichOwner(ctx, session, owner, owner.Items[0].ItemCode)
			}
		}
		return result, nil

	default:
		return &RegisterResult{Outcome: RegisterFailed, Message: messageOr(inner.Message, "could not create customer")}, nil
	}
}

// CalculateRates requests carrier quotes for the lane. The fixed parcel
// profile is always shipped regardless of item dimensions.
func (c *Client) CalculateRates(ctx context.Context, from, to RatesAddress) ([]Rate, error) {
	payload := RatesRequest{ShipFrom: from, ShipTo: to, Parcels: c.parcel}
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/calculate-rates", epRates, payload)
	if err != nil {
		return nil, err
	}

	var inner struct {
		Success  bool   `json:"success"`
		Rates    []Rate `json:"rates"`
		IsCached bool   `json:"is_cached"`
		Status   int    `json:"status"`
		Message  string `json:"message"`
		Errors   string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding rates payload")
	}
	if !inner.Success {
		return nil, perrors.New(perrors.CodeDomain, messageOr(inner.Message, "rates unavailable"))
	}
	return inner.Rates, nil
}

// PlaceDetails geocodes a free-text place query.
func (c *Client) PlaceDetails(ctx context.Context, query string) (*Place, error) {
	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/place-details?query="+url.QueryEscape(query), epPlaceDetails, nil)
	if err != nil {
		return nil, err
	}

	var inner struct {
		Success bool   `json:"success"`
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    *Place `json:"data"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding place-details payload")
	}
	if !inner.Success || inner.Data == nil {
		return nil, perrors.New(perrors.CodeDomain, messageOr(inner.Message, "place not found"))
	}
	return inner.Data, nil
}

// Event fetches event metadata by identifier.
func (c *Client) Event(ctx context.Context, id string) (*EventMeta, error) {
	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/event?id="+url.QueryEscape(id), epEvent, nil)
	if err != nil {
		return nil, err
	}

	var inner struct {
		Success bool       `json:"success"`
		Status  int        `json:"status"`
		Message string     `json:"message"`
		Data    *EventMeta `json:"data"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, perrors.Wrap(perrors.CodeTransport, err, "decoding event payload")
	}
	if !inner.Success || inner.Data == nil {
		return nil, perrors.New(perrors.CodeDomain, messageOr(inner.Message, "event not found"))
	}
	return inner.Data, nil
}

// CreateMarketingEvent fires a marketing event. Callers race it against a
// timeout; the result is never allowed to block a redirect.
func (c *Client) CreateMarketingEvent(ctx context.Context, payload MarketingEvent) error {
	_, err := c.do(ctx, http.MethodPost, c.baseURL+"/klaviyo-create-event", epMarketingEvent, payload)
	return err
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
