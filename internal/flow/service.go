package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/quote"
	"github.com/solyse/club-flow/internal/track"
	"github.com/solyse/club-flow/internal/upstream"
	"github.com/solyse/club-flow/pkg/config"
	"github.com/solyse/club-flow/pkg/logger"
	"github.com/solyse/club-flow/pkg/race"
)

// Upstream is the slice of the gateway the flow needs.
type Upstream interface {
	GetPartner(ctx context.Context, query upstream.PartnerQuery) (*upstream.Partner, error)
	SendOTP(ctx context.Context, req upstream.OTPRequest) (*upstream.OTPInfo, error)
	VerifyAuth(ctx context.Context, req upstream.VerifyRequest) (bool, string, error)
	CreateCustomer(ctx context.Context, session string, req upstream.CustomerRequest) (*upstream.RegisterResult, error)
	CreateMarketingEvent(ctx context.Context, payload upstream.MarketingEvent) error
}

// Enricher rebuilds the enriched-item list for a member's full item set.
type Enricher interface {
	EnrichAll(ctx context.Context, session string, owner upstream.Customer)
}

const (
	ChannelEmail = "email"
	ChannelPhone = "phone"
)

// ContactInfo is the cached contact snapshot the redirect reads back.
type ContactInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type AccessRequest struct {
	Channel string
	Contact string
}

type AccessResult struct {
	PartnerKnown bool              `json:"partner_known"`
	OTP          *upstream.OTPInfo `json:"otp,omitempty"`
}

type VerifyRequest struct {
	Channel string
	Contact string
	Code    string
}

type VerifyResult struct {
	Verified     bool               `json:"verified"`
	Message      string             `json:"message,omitempty"`
	PartnerKnown bool               `json:"partner_known"`
	Owner        *upstream.Customer `json:"owner,omitempty"`
}

type RegisterRequest struct {
	ItemID    string
	FirstName string
	LastName  string
	PhoneCode string
	Phone     string
	Email     string
}

type RegisterResult struct {
	Outcome upstream.RegisterOutcome `json:"outcome"`
	Message string                   `json:"message,omitempty"`
	Owner   *upstream.Customer       `json:"owner,omitempty"`
}

type RedirectResult struct {
	URL string `json:"url"`
}

// Service drives the onboarding steps: access, code verification,
// registration, and the booking handoff.
type Service interface {
	Access(ctx context.Context, session string, req AccessRequest) (*AccessResult, error)
	Verify(ctx context.Context, session string, req VerifyRequest) (*VerifyResult, error)
	Register(ctx context.Context, session string, req RegisterRequest) (*RegisterResult, error)
	Redirect(ctx context.Context, session string) (*RedirectResult, error)
	Restart(ctx context.Context, session string)
}

type service struct {
	api              Upstream
	enricher         Enricher
	cache            *cache.Client
	logg             *logger.Logger
	crumbs           *track.Recorder
	websiteURL       string
	bookingCode      string
	marketingTimeout time.Duration
}

func NewService(api Upstream, enricher Enricher, cacheClient *cache.Client, logg *logger.Logger, crumbs *track.Recorder, flowCfg config.FlowConfig, marketingTimeout time.Duration) (Service, error) {
	if api == nil {
		return nil, errors.New("upstream gateway is required")
	}
	if enricher == nil {
		return nil, errors.New("enricher is required")
	}
	if cacheClient == nil {
		return nil, errors.New("cache client is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		api:              api,
		enricher:         enricher,
		cache:            cacheClient,
		logg:             logg,
		crumbs:           crumbs,
		websiteURL:       flowCfg.WebsiteURL,
		bookingCode:      flowCfg.BookingCode,
		marketingTimeout: marketingTimeout,
	}, nil
}

func (s *service) query(req AccessRequest) upstream.PartnerQuery {
	if req.Channel == ChannelEmail {
		return upstream.PartnerQuery{Email: req.Contact}
	}
	return upstream.PartnerQuery{Phone: req.Contact}
}

// Access looks the contact up and sends a one-time code. An unknown contact
// is a normal branch: the code still goes out so the visitor can register.
func (s *service) Access(ctx context.Context, session string, req AccessRequest) (*AccessResult, error) {
	partner, err := s.api.GetPartner(ctx, s.query(req))
	if err != nil {
		// A failed lookup is treated as no partner; the OTP path still works.
		s.logg.Error(ctx, "flow: partner lookup failed", err)
		partner = nil
	}

	firstName := "User"
	lastName := ""
	if partner != nil {
		if partner.FirstName != "" {
			firstName = partner.FirstName
		}
		lastName = partner.LastName
	}

	otpReq := upstream.OTPRequest{
		Type:      req.Channel,
		FirstName: firstName,
		LastName:  lastName,
	}
	if req.Channel == ChannelEmail {
		otpReq.Email = req.Contact
	} else {
		otpReq.Phone = req.Contact
	}

	s.crumbs.Record(ctx, "otp_start", session+":"+req.Contact, map[string]any{"channel": req.Channel})

	info, err := s.api.SendOTP(ctx, otpReq)
	if err != nil {
		return nil, err
	}

	contact := ContactInfo{FirstName: firstName, LastName: lastName}
	if req.Channel == ChannelEmail {
		contact.Email = req.Contact
	} else {
		contact.Phone = req.Contact
	}
	s.cache.Set(ctx, session, cache.KeyContactInfo, contact)

	if partner != nil {
		owner := partner.AsCustomer()
		s.cache.Set(ctx, session, cache.KeyClubPartner, owner)
		if len(owner.Items) > 0 {
			s.enricher.EnrichAll(ctx, session, owner)
		}
	}

	return &AccessResult{PartnerKnown: partner != nil, OTP: info}, nil
}

// Verify checks the one-time code. Success yields no token; the partner is
// re-queried rather than carried from the access step.
func (s *service) Verify(ctx context.Context, session string, req VerifyRequest) (*VerifyResult, error) {
	verifyReq := upstream.VerifyRequest{Code: req.Code}
	if req.Channel == ChannelEmail {
		verifyReq.Email = req.Contact
	} else {
		verifyReq.Phone = req.Contact
	}

	ok, message, err := s.api.VerifyAuth(ctx, verifyReq)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.crumbs.Record(ctx, "otp_failure", session+":"+req.Contact, nil)
		return &VerifyResult{Verified: false, Message: message}, nil
	}
	s.crumbs.Record(ctx, "otp_success", session+":"+req.Contact, nil)

	partner, err := s.api.GetPartner(ctx, s.query(AccessRequest{Channel: req.Channel, Contact: req.Contact}))
	if err != nil {
		s.logg.Error(ctx, "flow: partner re-query failed", err)
		partner = nil
	}

	result := &VerifyResult{Verified: true, Message: message}
	if partner != nil {
		owner := partner.AsCustomer()
		result.PartnerKnown = true
		result.Owner = &owner

		contact := ContactInfo{FirstName: owner.FirstName, LastName: owner.LastName, Email: owner.Email, Phone: owner.Phone}
		if contact.Email == "" && req.Channel == ChannelEmail {
			contact.Email = req.Contact
		}
		if contact.Phone == "" && req.Channel == ChannelPhone {
			contact.Phone = req.Contact
		}
		s.cache.Set(ctx, session, cache.KeyContactInfo, contact)
		s.cache.Set(ctx, session, cache.KeyClubPartner, owner)
		if len(owner.Items) > 0 {
			s.enricher.EnrichAll(ctx, session, owner)
		}
	}
	return result, nil
}

// Register creates the customer. The outcome is three-way and always
// in-band; the gateway already cached the owner and ran enrichment on
// created-or-exists.
func (s *service) Register(ctx context.Context, session string, req RegisterRequest) (*RegisterResult, error) {
	result, err := s.api.CreateCustomer(ctx, session, upstream.CustomerRequest{
		Items: upstream.CustomerRequestItem{ItemID: req.ItemID},
		Personal: upstream.CustomerRequestPersonal{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			PhoneCode: req.PhoneCode,
			Phone:     req.Phone,
			Email:     req.Email,
		},
	})
	if err != nil {
		return nil, err
	}

	if result.Owner != nil {
		contact := ContactInfo{
			FirstName: result.Owner.FirstName,
			LastName:  result.Owner.LastName,
			Email:     result.Owner.Email,
			Phone:     result.Owner.Phone,
		}
		s.cache.Set(ctx, session, cache.KeyContactInfo, contact)
	}

	return &RegisterResult{Outcome: result.Outcome, Message: result.Message, Owner: result.Owner}, nil
}

// Redirect fires the best-effort marketing event, clears the handoff state
// and returns the booking URL. The marketing call is raced against the
// configured timeout so it can never hold the redirect hostage.
func (s *service) Redirect(ctx context.Context, session string) (*RedirectResult, error) {
	var contact ContactInfo
	hasContact := s.cache.Get(ctx, session, cache.KeyContactInfo, &contact)

	var lane quote.Data
	hasQuote := s.cache.Get(ctx, session, cache.KeyQuote, &lane)

	var location upstream.LocationInfo
	hasLocation := s.cache.Get(ctx, session, cache.KeyLocation, &location)

	if hasQuote && hasLocation {
		payload := upstream.MarketingEvent{
			FromCity:        firstNonEmpty(lane.From.City, lane.From.Name),
			ToCity:          firstNonEmpty(lane.To.City, lane.To.Name),
			ShippingService: "Standard",
			Location: upstream.MarketingLocation{
				IP:        location.IP,
				Latitude:  parseCoord(location.Location.Latitude),
				Longitude: parseCoord(location.Location.Longitude),
				City:      location.Location.City,
				Country:   location.Location.CountryName,
				Zip:       location.Location.Zipcode,
			},
		}
		if hasContact {
			payload.Email = contact.Email
			payload.PhoneNumber = contact.Phone
		}

		if err := race.Run(ctx, s.marketingTimeout, func(raceCtx context.Context) error {
			return s.api.CreateMarketingEvent(raceCtx, payload)
		}); err != nil {
			s.logg.Error(ctx, "flow: marketing event failed", err)
		}
	}

	s.cache.Remove(ctx, session, cache.KeyQuote, cache.KeyAppInitialized)
	return &RedirectResult{URL: fmt.Sprintf("%s/club/?%s", s.websiteURL, s.bookingCode)}, nil
}

// Restart wipes the session's flow state so a fresh pass starts clean, used
// when the visitor starts over after an unsupported-country handoff.
func (s *service) Restart(ctx context.Context, session string) {
	s.cache.ResetFirstLoad(ctx, session)
	s.cache.Remove(ctx, session, cache.KeyQuote, cache.KeyEvent, cache.KeyAppInitialized)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseCoord(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
