package quote

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solyse/club-flow/internal/upstream"
)

// Location is one endpoint of a quote.
type Location struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Street1    string `json:"street1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Type       string `json:"type"`
	PlaceID    string `json:"placeId"`
	Source     string `json:"source"`
	Address    string `json:"address"`
}

// Data is a shipping lane: where the bags leave from and where they go.
type Data struct {
	From Location `json:"from"`
	To   Location `json:"to"`
}

// IsDomestic reports whether the lane stays inside the US. Any other
// country on either end makes the lane international.
func (d *Data) IsDomestic() bool {
	if d == nil {
		return false
	}
	return d.From.Country == d.To.Country && strings.ToUpper(d.From.Country) == "US"
}

// RatesAddresses converts the lane into the rates-API address pair. A
// missing country defaults to US.
func (d *Data) RatesAddresses() (upstream.RatesAddress, upstream.RatesAddress) {
	return ratesAddress(d.From), ratesAddress(d.To)
}

func ratesAddress(loc Location) upstream.RatesAddress {
	country := loc.Country
	if country == "" {
		country = "US"
	}
	return upstream.RatesAddress{
		Street1:    loc.Street1,
		City:       loc.City,
		State:      loc.State,
		PostalCode: loc.PostalCode,
		Country:    country,
	}
}

// FromPlace converts a geocoded place into a quote location.
func FromPlace(place *upstream.Place, source string) Location {
	return Location{
		Name:       place.Name,
		Street1:    place.Street1,
		City:       place.City,
		State:      place.State,
		PostalCode: place.PostalCode,
		Country:    place.Country,
		Type:       "location",
		PlaceID:    place.PlaceID,
		Source:     source,
		Address:    place.Address,
	}
}

// BuildFromPlaces assembles a lane from two geocoded place queries, used on
// the quote entry path where pickup and destination arrive in the URL.
func BuildFromPlaces(pickup, destination *upstream.Place) Data {
	return Data{
		From: FromPlace(pickup, "url"),
		To:   FromPlace(destination, "url"),
	}
}

// FromOwnerAddress builds the from-side of a lane out of a member's default
// address.
func FromOwnerAddress(owner upstream.Customer) Location {
	addr := owner.DefaultAddress
	name := addr.Company
	if name == "" {
		name = owner.DisplayName
	}
	state := addr.ProvinceCode
	if state == "" {
		state = addr.Province
	}
	country := addr.CountryCodeV2
	if country == "" {
		country = addr.Country
	}
	if country == "" {
		country = "US"
	}
	return Location{
		Name:       name,
		Street1:    addr.Address1,
		City:       addr.City,
		State:      state,
		PostalCode: addr.Zip,
		Country:    country,
		Type:       "location",
		Source:     "partner",
		Address:    fmt.Sprintf("%s, %s, %s %s", addr.Address1, addr.City, state, addr.Zip),
	}
}

// GenerateEventQuote builds a lane from the member's default address to the
// event's destination address. ok is false, and nothing should be stored,
// when the member has no usable address or the event destination carries
// neither an address1 nor a company field.
func GenerateEventQuote(event *upstream.EventMeta, owner upstream.Customer) (Data, bool) {
	if event == nil || owner.DefaultAddress.Address1 == "" {
		return Data{}, false
	}

	dest := event.Reference("destination_address")
	if dest == nil {
		return Data{}, false
	}
	if dest.FieldValue("address1") == "" && dest.FieldValue("company") == "" {
		return Data{}, false
	}

	name := dest.FieldValue("label")
	if name == "" {
		name = dest.FieldValue("company")
	}
	if name == "" {
		name = "Event Destination"
	}
	country := dest.FieldValue("country")
	if country == "" {
		country = "US"
	}

	to := Location{
		Name:       name,
		Street1:    dest.FieldValue("address1"),
		City:       dest.FieldValue("city"),
		State:      dest.FieldValue("state"),
		PostalCode: dest.FieldValue("postal_code"),
		Country:    country,
		Type:       "location",
		Source:     "event",
		Address: fmt.Sprintf("%s, %s, %s %s",
			dest.FieldValue("address1"), dest.FieldValue("city"),
			dest.FieldValue("state"), dest.FieldValue("postal_code")),
	}

	return Data{From: FromOwnerAddress(owner), To: to}, true
}

// StoredEvent is the subset of event metadata persisted for the session.
type StoredEvent struct {
	ID                 string                   `json:"id"`
	Name               string                   `json:"name"`
	EventSubtitle      string                   `json:"event_subtitle"`
	EventStatus        string                   `json:"event_status"`
	EventType          string                   `json:"event_type"`
	EventStartDate     string                   `json:"event_start_date"`
	EventEndDate       string                   `json:"event_end_date"`
	DisplayPartnerLogo bool                     `json:"display_partner_logo"`
	EventHeroImage     *upstream.EventReference `json:"event_hero_image"`
	EventDescription   string                   `json:"event_description"`
	BagArrivalRule     string                   `json:"bag_arrival_rule"`
	VenueName          string                   `json:"venue_name"`
	DestinationAddress *upstream.EventReference `json:"destination_address"`
	CourseName         string                   `json:"course_name"`
	HostName           string                   `json:"host_name"`
	ServiceLevels      json.RawMessage          `json:"service_levels"`
}

// ExtractEvent pulls the persisted fields out of the raw metaobject.
func ExtractEvent(event *upstream.EventMeta, eventID string) StoredEvent {
	return StoredEvent{
		ID:                 eventID,
		Name:               event.Field("name"),
		EventSubtitle:      event.Field("event_subtitle"),
		EventStatus:        event.Field("event_status"),
		EventType:          event.Field("event_type"),
		EventStartDate:     event.Field("event_start_date"),
		EventEndDate:       event.Field("event_end_date"),
		DisplayPartnerLogo: event.BoolField("display_partner_logo"),
		EventHeroImage:     event.Reference("event_hero_image"),
		EventDescription:   event.Field("event_description"),
		BagArrivalRule:     event.Field("bag_arrival_rule"),
		VenueName:          event.Field("venue_name"),
		DestinationAddress: event.Reference("destination_address"),
		CourseName:         event.Field("course_name"),
		HostName:           event.Field("host_name"),
		ServiceLevels:      event.JSONField("service_levels"),
	}
}
