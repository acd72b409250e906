package rates

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/solyse/club-flow/internal/upstream"
	perrors "github.com/solyse/club-flow/pkg/errors"
)

// Tier identifiers, in presentation order.
const (
	TierOvernight = "overnight"
	TierExpedited = "expedited"
	TierStandard  = "standard"
)

// ShipperInfo is the carrier detail carried on a normalized option for the
// booking handoff.
type ShipperInfo struct {
	ShipperID       string                    `json:"shipper_id"`
	ServiceName     string                    `json:"service_name"`
	ServiceType     string                    `json:"service_type"`
	ChargeWeight    upstream.Weight           `json:"charge_weight"`
	DetailedCharges []upstream.DetailedCharge `json:"detailed_charges"`
	TotalCharge     upstream.Money            `json:"total_charge"`
	DeliveryDate    string                    `json:"delivery_date"`
	TransitTime     int                       `json:"transit_time"`
}

// Option is one selectable shipping tier.
type Option struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Price       string      `json:"price"`
	Subtitle    string      `json:"subtitle"`
	Duration    string      `json:"duration"`
	VIPDiscount *string     `json:"vip_discount,omitempty"`
	ShipperInfo ShipperInfo `json:"shipperInfo"`
}

type tierTable struct {
	standard  []string
	expedited []string
	overnight []string
}

var carrierTiers = map[string]tierTable{
	"ups": {
		standard:  []string{"ups_ground"},
		expedited: []string{"ups_3_day_select"},
		overnight: []string{"ups_next_day_air_saver", "ups_next_day_air"},
	},
	"fedex": {
		standard:  []string{"fedex_ground"},
		expedited: []string{"fedex_2_day"},
		overnight: []string{"fedex_standard_overnight", "fedex_priority_overnight"},
	},
}

type tierResult struct {
	price    decimal.Decimal
	discount *string
	info     ShipperInfo
	found    bool
}

// Normalize turns raw carrier quotes into the three presentation tiers.
// All-or-nothing: if any tier cannot produce a valid positive price, no
// options are returned and the error names every missing tier.
func Normalize(rawRates []upstream.Rate, domestic bool, carrier string) ([]Option, error) {
	if len(rawRates) == 0 {
		return nil, perrors.New(perrors.CodeRates, "No shipping rates available")
	}

	var standard, expedited, overnight tierResult
	if domestic {
		table, ok := carrierTiers[strings.ToLower(carrier)]
		if !ok {
			table = carrierTiers["fedex"]
		}
		standard = matchTier(rawRates, table.standard)
		expedited = matchTier(rawRates, table.expedited)
		overnight = matchTier(rawRates, table.overnight)
	} else {
		// International lanes come back as a single quote applied to every tier.
		first := extract(&rawRates[0])
		standard, expedited, overnight = first, first, first
	}

	var missing []string
	for _, tier := range []struct {
		name   string
		result tierResult
	}{
		{TierStandard, standard},
		{TierExpedited, expedited},
		{TierOvernight, overnight},
	} {
		if !tier.result.found {
			missing = append(missing, capitalize(tier.name))
		}
	}
	if len(missing) > 0 {
		plural := ""
		if len(missing) > 1 {
			plural = "s"
		}
		msg := fmt.Sprintf("Unable to calculate rates for %s service%s. Please try again.",
			strings.Join(missing, ", "), plural)
		return nil, perrors.New(perrors.CodeRates, msg)
	}

	return []Option{
		{
			ID:          TierOvernight,
			Title:       "Overnight",
			Price:       formatPrice(overnight.price),
			Subtitle:    "Fastest Delivery",
			Duration:    formatDuration(transitOr(overnight.info.TransitTime, 1)),
			VIPDiscount: overnight.discount,
			ShipperInfo: overnight.info,
		},
		{
			ID:          TierExpedited,
			Title:       "Expedited",
			Price:       formatPrice(expedited.price),
			Subtitle:    "Best Value",
			Duration:    formatDuration(transitOr(expedited.info.TransitTime, 2)),
			VIPDiscount: expedited.discount,
			ShipperInfo: expedited.info,
		},
		{
			ID:          TierStandard,
			Title:       "Standard",
			Price:       formatPrice(standard.price),
			Subtitle:    "Most Economical",
			Duration:    "3–6 Business Days",
			VIPDiscount: standard.discount,
			ShipperInfo: standard.info,
		},
	}, nil
}

func matchTier(rawRates []upstream.Rate, serviceTypes []string) tierResult {
	for i := range rawRates {
		for _, serviceType := range serviceTypes {
			if rawRates[i].ServiceType == serviceType {
				return extract(&rawRates[i])
			}
		}
	}
	return tierResult{}
}

// extract validates the customer-facing price: it must parse and be
// strictly positive, otherwise the tier counts as missing.
func extract(rate *upstream.Rate) tierResult {
	price, ok := rate.ActualCosts.Amount.Decimal()
	if !ok || !price.IsPositive() {
		return tierResult{}
	}
	var discount *string
	if rate.ActualCosts.VIPDiscount != "" {
		if d, ok := rate.ActualCosts.VIPDiscount.Decimal(); ok && d.IsPositive() {
			s := d.String()
			discount = &s
		}
	}
	return tierResult{
		price:    price,
		discount: discount,
		found:    true,
		info: ShipperInfo{
			ShipperID:       rate.ShipperAccount.ID,
			ServiceName:     rate.ServiceName,
			ServiceType:     rate.ServiceType,
			ChargeWeight:    rate.ChargeWeight,
			DetailedCharges: rate.DetailedCharges,
			TotalCharge:     rate.TotalCharge,
			DeliveryDate:    rate.DeliveryDate,
			TransitTime:     rate.TransitTime,
		},
	}
}

func transitOr(transit, fallback int) int {
	if transit > 0 {
		return transit
	}
	return fallback
}

func formatDuration(transit int) string {
	if transit == 1 {
		return "1 Business Day"
	}
	return fmt.Sprintf("%d Business Days", transit)
}

// formatPrice renders a USD amount with zero decimals and thousands
// grouping, e.g. 1250 -> "$1,250".
func formatPrice(price decimal.Decimal) string {
	rounded := price.Round(0).StringFixed(0)
	negative := strings.HasPrefix(rounded, "-")
	digits := strings.TrimPrefix(rounded, "-")

	var grouped strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		grouped.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if grouped.Len() > 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteString(digits[i : i+3])
	}

	if negative {
		return "-$" + grouped.String()
	}
	return "$" + grouped.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
