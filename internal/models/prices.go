package models

import "strings"

// Category is a commodity class with its own identity-key shape.
type Category string

const (
	CategoryCurrency       Category = "Currency"
	CategoryFragment       Category = "Fragment"
	CategoryDivinationCard Category = "DivinationCard"
	CategoryMap            Category = "Map"
	CategoryEssence        Category = "Essence"
	CategoryOil            Category = "Oil"
	CategoryIncubator      Category = "Incubator"
	CategoryFossil         Category = "Fossil"
	CategoryResonator      Category = "Resonator"
	CategoryDeliriumOrb    Category = "DeliriumOrb"
	CategoryVial           Category = "Vial"
	CategorySkillGem       Category = "SkillGem"
)

// AllCategories lists every priced category in table order.
var AllCategories = []Category{
	CategoryCurrency,
	CategoryFragment,
	CategoryDivinationCard,
	CategoryMap,
	CategoryEssence,
	CategoryOil,
	CategoryIncubator,
	CategoryFossil,
	CategoryResonator,
	CategoryDeliriumOrb,
	CategoryVial,
	CategorySkillGem,
}

// ParseCategory accepts the canonical name case-insensitively, plus a few
// route-friendly aliases ("divination_card", "delirium_orb", "gem").
func ParseCategory(s string) (Category, bool) {
	norm := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(s, "_", ""), "-", ""))
	switch norm {
	case "gem", "gems":
		return CategorySkillGem, true
	case "card", "cards":
		return CategoryDivinationCard, true
	}
	for _, c := range AllCategories {
		if strings.ToLower(string(c)) == norm {
			return c, true
		}
	}
	return "", false
}

// NamedPrice is keyed by name alone.
type NamedPrice struct {
	Name       string   `json:"name"`
	ChaosValue *float32 `json:"chaos_value"`
}

// MapPrice is keyed by (name, tier). Tier 0 acts as the wildcard row.
type MapPrice struct {
	Name       string   `json:"name"`
	Tier       uint8    `json:"tier"`
	ChaosValue *float32 `json:"chaos_value"`
}

// EssencePrice is keyed by (name, variant).
type EssencePrice struct {
	Name       string   `json:"name"`
	Variant    *string  `json:"variant"`
	Tier       *uint8   `json:"tier,omitempty"`
	ChaosValue *float32 `json:"chaos_value"`
}

// FullName is the stash type line an essence shows up under.
func (p EssencePrice) FullName() string {
	if p.Variant != nil && *p.Variant != "" && !strings.HasPrefix(p.Name, *p.Variant+" ") {
		return *p.Variant + " " + p.Name
	}
	return p.Name
}

// GemPrice is keyed by (name, level, quality, corrupted).
type GemPrice struct {
	Name       string   `json:"name"`
	Level      uint8    `json:"level"`
	Quality    uint8    `json:"quality"`
	Corrupt    bool     `json:"corrupt"`
	ChaosValue *float32 `json:"chaos_value"`
}

// Prices holds one reconciled table per category for a single league.
type Prices struct {
	Currency       []NamedPrice   `json:"currency"`
	Fragment       []NamedPrice   `json:"fragment"`
	DivinationCard []NamedPrice   `json:"divination_card"`
	Map            []MapPrice     `json:"map"`
	Essence        []EssencePrice `json:"essence"`
	Oil            []NamedPrice   `json:"oil"`
	Incubator      []NamedPrice   `json:"incubator"`
	Fossil         []NamedPrice   `json:"fossil"`
	Resonator      []NamedPrice   `json:"resonator"`
	DeliriumOrb    []NamedPrice   `json:"delirium_orb"`
	Vial           []NamedPrice   `json:"vial"`
	SkillGem       []GemPrice     `json:"skill_gem"`
}

// Named returns the name-keyed table for c, or nil for categories with a
// composite key.
func (p *Prices) Named(c Category) []NamedPrice {
	switch c {
	case CategoryCurrency:
		return p.Currency
	case CategoryFragment:
		return p.Fragment
	case CategoryDivinationCard:
		return p.DivinationCard
	case CategoryOil:
		return p.Oil
	case CategoryIncubator:
		return p.Incubator
	case CategoryFossil:
		return p.Fossil
	case CategoryResonator:
		return p.Resonator
	case CategoryDeliriumOrb:
		return p.DeliriumOrb
	case CategoryVial:
		return p.Vial
	}
	return nil
}

// SetNamed stores a name-keyed table. Composite-key categories are ignored.
func (p *Prices) SetNamed(c Category, rows []NamedPrice) {
	switch c {
	case CategoryCurrency:
		p.Currency = rows
	case CategoryFragment:
		p.Fragment = rows
	case CategoryDivinationCard:
		p.DivinationCard = rows
	case CategoryOil:
		p.Oil = rows
	case CategoryIncubator:
		p.Incubator = rows
	case CategoryFossil:
		p.Fossil = rows
	case CategoryResonator:
		p.Resonator = rows
	case CategoryDeliriumOrb:
		p.DeliriumOrb = rows
	case CategoryVial:
		p.Vial = rows
	}
}

// Empty reports whether no category holds a single row.
func (p *Prices) Empty() bool {
	for _, c := range AllCategories {
		if p.Len(c) > 0 {
			return false
		}
	}
	return true
}

// Len is the row count of category c.
func (p *Prices) Len(c Category) int {
	switch c {
	case CategoryMap:
		return len(p.Map)
	case CategoryEssence:
		return len(p.Essence)
	case CategorySkillGem:
		return len(p.SkillGem)
	}
	return len(p.Named(c))
}

// Clone deep-copies every table so callers never share backing arrays or
// value pointers with the cache.
func (p Prices) Clone() Prices {
	var out Prices
	if p.Map != nil {
		out.Map = make([]MapPrice, len(p.Map))
	}
	if p.Essence != nil {
		out.Essence = make([]EssencePrice, len(p.Essence))
	}
	if p.SkillGem != nil {
		out.SkillGem = make([]GemPrice, len(p.SkillGem))
	}
	for _, c := range AllCategories {
		if rows := p.Named(c); rows != nil {
			cp := make([]NamedPrice, len(rows))
			for i, r := range rows {
				cp[i] = NamedPrice{Name: r.Name, ChaosValue: copyF32(r.ChaosValue)}
			}
			out.SetNamed(c, cp)
		}
	}
	for i, r := range p.Map {
		out.Map[i] = MapPrice{Name: r.Name, Tier: r.Tier, ChaosValue: copyF32(r.ChaosValue)}
	}
	for i, r := range p.Essence {
		e := EssencePrice{Name: r.Name, ChaosValue: copyF32(r.ChaosValue)}
		if r.Variant != nil {
			v := *r.Variant
			e.Variant = &v
		}
		if r.Tier != nil {
			t := *r.Tier
			e.Tier = &t
		}
		out.Essence[i] = e
	}
	for i, r := range p.SkillGem {
		out.SkillGem[i] = GemPrice{Name: r.Name, Level: r.Level, Quality: r.Quality, Corrupt: r.Corrupt, ChaosValue: copyF32(r.ChaosValue)}
	}
	return out
}

func copyF32(v *float32) *float32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// PriceSourceRow is one diagnostic row of the per-source price matrix.
type PriceSourceRow struct {
	Category         Category  `json:"category"`
	Name             string    `json:"name"`
	Variant          *string   `json:"variant"`
	Tier             *uint8    `json:"tier"`
	Dense            *float32  `json:"dense"`
	DenseGraph       []float64 `json:"dense_graph"`
	CurrencyOverview *float32  `json:"currency_overview"`
	ItemOverview     *float32  `json:"item_overview"`
	Poewatch         *float32  `json:"poewatch"`
}

// F32 is a small helper for building optional chaos values.
func F32(v float32) *float32 { return &v }
