package plan

import "strings"

// Descriptor describes one subscription plan. Resolved deterministically from
// a Stripe price id; never persisted.
type Descriptor struct {
	Key             string
	Name            string
	CreditsPerMonth int
	// MaxRollover caps the subscription credit balance a renewal grant may
	// bring a user to; excess credits are forfeited, not accumulated.
	MaxRollover int
}

// defaultTable maps the product's live Stripe price ids to plans. Config may
// override or extend it at startup; the resolver itself does no I/O.
var defaultTable = map[string]Descriptor{
	"price_upscale_basic_monthly": {Key: "basic", Name: "Basic", CreditsPerMonth: 300, MaxRollover: 900},
	"price_upscale_pro_monthly":   {Key: "pro", Name: "Pro", CreditsPerMonth: 1000, MaxRollover: 6000},
	"price_upscale_max_monthly":   {Key: "max", Name: "Max", CreditsPerMonth: 5000, MaxRollover: 30000},
}

// Resolver is a pure price-id → plan lookup. Unknown price ids resolve to an
// explicit miss; callers must treat a miss as an error condition, never
// default to a plan.
type Resolver struct {
	byPrice map[string]Descriptor
}

// NewResolver builds a resolver from the default table plus overrides.
// Overrides with an existing price id replace the default entry.
func NewResolver(overrides map[string]Descriptor) *Resolver {
	table := make(map[string]Descriptor, len(defaultTable)+len(overrides))
	for priceID, d := range defaultTable {
		table[priceID] = d
	}
	for priceID, d := range overrides {
		id := strings.TrimSpace(priceID)
		if id == "" {
			continue
		}
		table[id] = d
	}
	return &Resolver{byPrice: table}
}

// Resolve returns the plan for a price id, or ok=false for unknown ids.
func (r *Resolver) Resolve(priceID string) (Descriptor, bool) {
	d, ok := r.byPrice[strings.TrimSpace(priceID)]
	return d, ok
}

// PriceIDs returns the configured price ids, for diagnostics.
func (r *Resolver) PriceIDs() []string {
	ids := make([]string, 0, len(r.byPrice))
	for id := range r.byPrice {
		ids = append(ids, id)
	}
	return ids
}
