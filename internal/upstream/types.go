package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount carries a monetary value that the core API emits either as a JSON
// number or as a quoted string. It is kept as text and parsed with decimal
// at the point of use.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(trimmed)
	return nil
}

// Decimal parses the amount. ok is false for empty or malformed values.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	if a == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Address mirrors the core API customer address shape.
type Address struct {
	ID            string  `json:"id"`
	Address1      string  `json:"address1"`
	Address2      *string `json:"address2"`
	City          string  `json:"city"`
	Province      string  `json:"province"`
	ProvinceCode  string  `json:"provinceCode"`
	Zip           string  `json:"zip"`
	Country       string  `json:"country"`
	CountryCodeV2 string  `json:"countryCodeV2"`
	Company       string  `json:"company"`
}

// AddressList tolerates the partner payload quirk of delivering addresses
// either as a single object or as an array.
type AddressList []Address

func (l *AddressList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if trimmed[0] == '[' {
		var many []Address
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one Address
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return fmt.Errorf("addresses: neither object nor array: %w", err)
	}
	*l = AddressList{one}
	return nil
}

// Item is a raw registered bag reference on a customer record.
type Item struct {
	ItemID   string `json:"item_id"`
	ItemCode string `json:"item_code"`
}

type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Dimensions are carried as strings end to end; the rates API expects them
// verbatim.
type Dimensions struct {
	Depth  string `json:"depth"`
	Height string `json:"height"`
	Weight string `json:"weight"`
	Width  string `json:"width"`
}

// Product is one catalog entry. The list is cached whole and replaced
// wholesale on refetch.
type Product struct {
	StoreID      string        `json:"store_id"`
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	VariantID    string        `json:"variant_id"`
	Price        float64       `json:"price"`
	SKU          string        `json:"sku"`
	Tag          string        `json:"tag"`
	Images       string        `json:"images"`
	CustomFields []CustomField `json:"custom_fields"`
	Dimensions   Dimensions    `json:"dimensions"`
}

// Customer is the items-owner record cached after tag validation or
// registration.
type Customer struct {
	ID                      string      `json:"id"`
	FirstName               string      `json:"firstName"`
	LastName                string      `json:"lastName"`
	Email                   string      `json:"email"`
	Phone                   string      `json:"phone"`
	DisplayName             string      `json:"displayName"`
	Tags                    []string    `json:"tags"`
	Addresses               AddressList `json:"addresses"`
	DefaultAddress          Address     `json:"defaultAddress"`
	VIP                     bool        `json:"vip"`
	VIPMembershipStartDate  string      `json:"vip_membership_start_date"`
	VIPMembershipEndDate    string      `json:"vip_membership_end_date"`
	Items                   []Item      `json:"items"`
}

// Partner is a club member looked up by email or phone. Address fields vary
// in shape across records.
type Partner struct {
	ID             string      `json:"id"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	DisplayName    string      `json:"displayName"`
	Tags           []string    `json:"tags"`
	Items          []Item      `json:"items"`
	Addresses      AddressList `json:"addresses"`
	DefaultAddress *Address    `json:"defaultAddress"`
}

// AsCustomer flattens a partner into the customer shape used by the
// enrichment engine and the cache, resolving the default-address fallback
// chain.
func (p *Partner) AsCustomer() Customer {
	display := p.DisplayName
	if display == "" {
		display = p.FirstName + " " + p.LastName
	}
	var def Address
	if p.DefaultAddress != nil {
		def = *p.DefaultAddress
	} else if len(p.Addresses) > 0 {
		def = p.Addresses[0]
	}
	return Customer{
		ID:             p.ID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Phone:          p.Phone,
		DisplayName:    display,
		Tags:           p.Tags,
		Addresses:      p.Addresses,
		DefaultAddress: def,
		Items:          p.Items,
	}
}

// PartnerQuery identifies a partner by one of the two contact channels.
type PartnerQuery struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// OTPRequest asks the core API to deliver a one-time code.
type OTPRequest struct {
	Type      string `json:"type"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// OTPInfo describes a delivered code. No credential is ever returned.
type OTPInfo struct {
	AuthID    string `json:"auth_id"`
	ExpiresIn int    `json:"expires_in"`
	SentAt    string `json:"sent_at"`
	EmailSent bool   `json:"email_sent"`
	PhoneSent bool   `json:"phone_sent"`
}

// VerifyRequest checks a one-time code against the contact it was sent to.
type VerifyRequest struct {
	Code  string `json:"code"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// CustomerRequest registers a new customer against a scanned item.
type CustomerRequest struct {
	Items    CustomerRequestItem     `json:"items"`
	Personal CustomerRequestPersonal `json:"personal"`
}

type CustomerRequestItem struct {
	ItemID string `json:"item_id"`
}

type CustomerRequestPersonal struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	PhoneCode string `json:"phoneCode"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// RegisterOutcome is the three-way result of customer creation.
type RegisterOutcome string

const (
	RegisterCreated RegisterOutcome = "created"
	RegisterExists  RegisterOutcome = "exists"
	RegisterFailed  RegisterOutcome = "failed"
)

// RegisterResult pairs the outcome with the resulting owner record when the
// core API returned one.
type RegisterResult struct {
	Outcome RegisterOutcome
	Owner   *Customer
	Message string
}

// LocationGeo is the IP-derived location block.
type LocationGeo struct {
	ContinentCode string `json:"continent_code"`
	ContinentName string `json:"continent_name"`
	CountryCode2  string `json:"country_code2"`
	CountryCode3  string `json:"country_code3"`
	CountryName   string `json:"country_name"`
	StateProv     string `json:"state_prov"`
	StateCode     string `json:"state_code"`
	City          string `json:"city"`
	Zipcode       string `json:"zipcode"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
}

type CountryMetadata struct {
	CallingCode string   `json:"calling_code"`
	TLD         string   `json:"tld"`
	Languages   []string `json:"languages"`
}

// LocationInfo is the full location-provider payload cached per session.
type LocationInfo struct {
	IP              string           `json:"ip"`
	Location        LocationGeo      `json:"location"`
	CountryMetadata *CountryMetadata `json:"country_metadata"`
}

// CallingCode returns the dialing prefix for the visitor's country, falling
// back to +1.
func (l *LocationInfo) CallingCode() string {
	if l == nil || l.CountryMetadata == nil || l.CountryMetadata.CallingCode == "" {
		return "+1"
	}
	return l.CountryMetadata.CallingCode
}

// CountryCode is one entry of the phone-prefix picker list.
type CountryCode struct {
	ShortNameWithCode string `json:"short_name_with_code"`
	ShortName         string `json:"short_name"`
	Code              string `json:"code"`
}

type ASConfigRates struct {
	ShippingService string `json:"shipping_service"`
}

// ASConfigData carries remote configuration, most importantly the carrier
// selection and the country-code list.
type ASConfigData struct {
	Rates        *ASConfigRates `json:"rates"`
	CountryCodes []CountryCode  `json:"country_codes"`
	VIPPrice     float64        `json:"vip_price"`
}

// Carrier returns the configured shipping service, defaulting to fedex.
func (a *ASConfigData) Carrier() string {
	if a == nil || a.Rates == nil || a.Rates.ShippingService == "" {
		return "fedex"
	}
	return a.Rates.ShippingService
}

// RatesAddress is one endpoint of a rate request.
type RatesAddress struct {
	Street1    string `json:"street1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// RatesParcel describes the shipment contents. Every request ships the fixed
// bag profile regardless of the scanned item's real dimensions.
type RatesParcel struct {
	ItemID     string     `json:"item_id"`
	ItemName   string     `json:"item_name"`
	Quantity   int        `json:"quantity"`
	Dimensions Dimensions `json:"dimensions"`
}

// RatesRequest is the calculate-rates payload.
type RatesRequest struct {
	ShipFrom RatesAddress `json:"ship_from"`
	ShipTo   RatesAddress `json:"ship_to"`
	Parcels  RatesParcel  `json:"parcels"`
}

type ShipperAccount struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type Weight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type DetailedCharge struct {
	Type   string `json:"type"`
	Charge Money  `json:"charge"`
}

// ActualCosts is the customer-facing cost block. Amount is the only field
// prices are read from.
type ActualCosts struct {
	Amount      Amount `json:"amount"`
	Currency    string `json:"currency"`
	MarginType  string `json:"margin_type"`
	VIPDiscount Amount `json:"vip_discount"`
}

// Rate is one carrier quote from the rates API.
type Rate struct {
	ShipperAccount  ShipperAccount   `json:"shipper_account"`
	ServiceType     string           `json:"service_type"`
	ServiceName     string           `json:"service_name"`
	PickupDeadline  *string          `json:"pickup_deadline"`
	BookingCutOff   *string          `json:"booking_cut_off"`
	DeliveryDate    string           `json:"delivery_date"`
	TransitTime     int              `json:"transit_time"`
	ErrorMessage    *string          `json:"error_message"`
	InfoMessage     *string          `json:"info_message"`
	ChargeWeight    Weight           `json:"charge_weight"`
	TotalCharge     Money            `json:"total_charge"`
	DetailedCharges []DetailedCharge `json:"detailed_charges"`
	ActualCosts     ActualCosts      `json:"bc_actual_costs"`
}

// Place is a geocoding result for a free-text place query.
type Place struct {
	Name       string `json:"name"`
	Street1    string `json:"street1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	PlaceID    string `json:"placeId"`
	Address    string `json:"address"`
}

// EventField is one metaobject field. References nest one level for
// addresses and images.
type EventField struct {
	Key       string          `json:"key"`
	Value     string          `json:"value"`
	JSONValue json.RawMessage `json:"jsonValue"`
	Reference *EventReference `json:"reference"`
}

type EventReference struct {
	Fields []EventField `json:"fields"`
}

// EventMeta is the raw event metaobject.
type EventMeta struct {
	ID     string       `json:"id"`
	Fields []EventField `json:"fields"`
}

// Field returns the plain value stored under key, or "".
func (e *EventMeta) Field(key string) string {
	return fieldValue(e.Fields, key)
}

// Reference returns the nested reference stored under key, or nil.
func (e *EventMeta) Reference(key string) *EventReference {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Reference
		}
	}
	return nil
}

// JSONField returns the raw JSON value stored under key, or nil.
func (e *EventMeta) JSONField(key string) json.RawMessage {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.JSONValue
		}
	}
	return nil
}

// BoolField interprets the field as a boolean, accepting either a JSON bool
// or the string "true".
func (e *EventMeta) BoolField(key string) bool {
	for _, f := range e.Fields {
		if f.Key != key {
			continue
		}
		var b bool
		if len(f.JSONValue) > 0 && json.Unmarshal(f.JSONValue, &b) == nil {
			return b
		}
		return f.Value == "true" || string(f.JSONValue) == `"true"`
	}
	return false
}

// FieldValue reads a plain value out of a reference's field list.
func (r *EventReference) FieldValue(key string) string {
	if r == nil {
		return ""
	}
	return fieldValue(r.Fields, key)
}

func fieldValue(fields []EventField, key string) string {
	for _, f := range fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// MarketingLocation is the location block of a marketing event.
type MarketingLocation struct {
	IP        string  `json:"ip"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Zip       string  `json:"zip"`
}

// MarketingEvent is the best-effort payload fired on redirect.
type MarketingEvent struct {
	Email           string            `json:"email,omitempty"`
	PhoneNumber     string            `json:"phone_number,omitempty"`
	FromCity        string            `json:"from_city"`
	ToCity          string            `json:"to_city"`
	ShippingService string            `json:"shipping_service"`
	Location        MarketingLocation `json:"location"`
}
