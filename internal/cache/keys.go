package cache

// Key names one logical slot in the per-session cache.
type Key string

const (
	KeyProducts         Key = "products"
	KeyItemsOwner       Key = "items-owner"
	KeyEnrichedItems    Key = "enriched-items"
	KeyLocation         Key = "location"
	KeyCountryCodes     Key = "country-codes"
	KeyQuotes           Key = "quotes"
	KeyQuote            Key = "quote"
	KeyContactInfo      Key = "contact-info"
	KeyEvent            Key = "event"
	KeyAppInitialized   Key = "app-initialized"
	KeyClubPartner      Key = "club-partner"
	KeyScannerPage      Key = "scanner-page"
	KeyPartnerReference Key = "partner-reference"
)

// FirstLoadReset lists the slots cleared when a session starts a fresh flow.
// Catalog and location data survive the reset.
var FirstLoadReset = []Key{
	KeyItemsOwner,
	KeyEnrichedItems,
	KeyQuotes,
	KeyContactInfo,
	KeyClubPartner,
	KeyScannerPage,
}
