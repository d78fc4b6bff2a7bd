package wealth

import (
	"fmt"
	"strconv"
	"strings"

	"poe-wealth/internal/models"
)

// Snapshot category labels.
const (
	CatCurrency  = "currency"
	CatFragments = "fragments"
	CatCards     = "cards"
	CatMaps      = "maps"
	CatEssences  = "essences"
	CatGems      = "gems"
	CatOther     = "other"
)

const divineOrb = "Divine Orb"

type mapKey struct {
	name string
	tier uint8
}

type gemKey struct {
	name    string
	level   uint8
	quality uint8
	corrupt bool
}

// otherTabTables is the lookup order for tabs without a typed layout.
var otherTabTables = []models.Category{
	models.CategoryOil,
	models.CategoryIncubator,
	models.CategoryFossil,
	models.CategoryResonator,
	models.CategoryDeliriumOrb,
	models.CategoryVial,
	models.CategoryCurrency,
	models.CategoryFragment,
	models.CategoryDivinationCard,
}

// priceIndex holds only priced rows; rows without a chaos value are absent.
type priceIndex struct {
	named    map[models.Category]map[string]float32
	maps     map[mapKey]float32
	essences map[string]float32
	gems     map[gemKey]float32
}

func newPriceIndex(p models.Prices) *priceIndex {
	ix := &priceIndex{
		named:    make(map[models.Category]map[string]float32),
		maps:     make(map[mapKey]float32),
		essences: make(map[string]float32),
		gems:     make(map[gemKey]float32),
	}
	for _, c := range models.AllCategories {
		rows := p.Named(c)
		if rows == nil {
			continue
		}
		table := make(map[string]float32, len(rows))
		for _, r := range rows {
			if r.ChaosValue != nil {
				table[r.Name] = *r.ChaosValue
			}
		}
		ix.named[c] = table
	}
	for _, r := range p.Map {
		if r.ChaosValue != nil {
			ix.maps[mapKey{r.Name, r.Tier}] = *r.ChaosValue
		}
	}
	for _, r := range p.Essence {
		if r.ChaosValue != nil {
			ix.essences[r.FullName()] = *r.ChaosValue
		}
	}
	for _, r := range p.SkillGem {
		if r.ChaosValue != nil {
			ix.gems[gemKey{r.Name, r.Level, r.Quality, r.Corrupt}] = *r.ChaosValue
		}
	}
	return ix
}

func (ix *priceIndex) namedPrice(c models.Category, name string) (float32, bool) {
	v, ok := ix.named[c][name]
	return v, ok
}

// mapPrice falls back to the tier-0 row when the exact tier is unknown.
func (ix *priceIndex) mapPrice(name string, tier uint8) (float32, bool) {
	if v, ok := ix.maps[mapKey{name, tier}]; ok {
		return v, true
	}
	v, ok := ix.maps[mapKey{name, 0}]
	return v, ok
}

func (ix *priceIndex) essencePrice(typeLine, base string) (float32, bool) {
	if v, ok := ix.essences[typeLine]; ok {
		return v, true
	}
	v, ok := ix.essences[base]
	return v, ok
}

// gemPrice tries the exact 20/20 state then the uncorrupted 20/20 row for
// maxed gems, and the canonical 1/0 row then (level, quality) otherwise.
func (ix *priceIndex) gemPrice(name string, level, quality uint8, corrupt bool) (float32, bool) {
	var candidates []gemKey
	if level == 20 && quality == 20 {
		candidates = []gemKey{{name, 20, 20, corrupt}, {name, 20, 20, false}}
	} else {
		candidates = []gemKey{{name, level, quality, corrupt}, {name, 1, 0, false}, {name, level, quality, false}}
	}
	for _, k := range candidates {
		if v, ok := ix.gems[k]; ok {
			return v, true
		}
	}
	return 0, false
}

func (ix *priceIndex) divine() *float32 {
	v, ok := ix.namedPrice(models.CategoryCurrency, divineOrb)
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

// holding is one stash item as the aggregator sees it.
type holding struct {
	name     string
	typeLine string
	qty      uint32
	level    uint8
	quality  uint8
	corrupt  bool
	tier     uint8
	kind     models.StashType
}

func newHolding(it models.Item, kind models.StashType) holding {
	return holding{
		name:     it.BaseType,
		typeLine: it.TypeLine,
		qty:      it.Quantity(),
		level:    it.GemLevel(),
		quality:  it.GemQuality(),
		corrupt:  it.Corrupted,
		tier:     it.MapTier(),
		kind:     kind,
	}
}

func (h holding) isGem() bool {
	return h.level > 0 || h.quality > 0 || h.name == ""
}

// key identifies the holding in the inventory map.
func (h holding) key() string {
	if !h.isGem() {
		return h.name
	}
	return GemKey(h.name, h.level, h.quality, h.corrupt)
}

// GemKey is the inventory and item-price key of a gem state.
func GemKey(name string, level, quality uint8, corrupt bool) string {
	c := "u"
	if corrupt {
		c = "c"
	}
	return fmt.Sprintf("%s__%d__%d__%s", name, level, quality, c)
}

// parseKey reverses key() for items that only exist in a baseline.
func parseKey(key string) holding {
	parts := strings.Split(key, "__")
	h := holding{name: parts[0], qty: 0, kind: models.StashOther}
	if len(parts) == 4 {
		if n, err := strconv.ParseUint(parts[1], 10, 8); err == nil {
			h.level = uint8(n)
		}
		if n, err := strconv.ParseUint(parts[2], 10, 8); err == nil {
			h.quality = uint8(n)
		}
		h.corrupt = parts[3] == "c"
	}
	return h
}

// price resolves the unit price and snapshot category of h. Typed tabs look
// in their own table; other tabs walk every name-keyed table, then maps and
// essences. The gem fallback applies whenever that lookup fails.
func (ix *priceIndex) price(h holding) (float32, string, bool) {
	var (
		v        float32
		ok       bool
		category string
	)
	switch h.kind {
	case models.StashCurrency:
		category = CatCurrency
		v, ok = ix.namedPrice(models.CategoryCurrency, h.name)
	case models.StashFragment:
		category = CatFragments
		v, ok = ix.namedPrice(models.CategoryFragment, h.name)
	case models.StashDivinationCard:
		category = CatCards
		v, ok = ix.namedPrice(models.CategoryDivinationCard, h.name)
	case models.StashMap:
		category = CatMaps
		v, ok = ix.mapPrice(h.name, h.tier)
	case models.StashEssence:
		category = CatEssences
		v, ok = ix.essencePrice(h.typeLine, h.name)
	default:
		category = CatOther
		for _, c := range otherTabTables {
			if v, ok = ix.namedPrice(c, h.name); ok {
				break
			}
		}
		if !ok {
			v, ok = ix.mapPrice(h.name, h.tier)
		}
		if !ok {
			v, ok = ix.essencePrice(h.typeLine, h.name)
		}
	}
	if ok {
		return v, category, true
	}
	if v, ok = ix.gemPrice(h.name, h.level, h.quality, h.corrupt); ok {
		return v, CatGems, true
	}
	return 0, category, false
}

// flatten is the item_prices map of a snapshot: every priced row by name,
// plus gems under their composite key.
func (ix *priceIndex) flatten(p models.Prices) map[string]float32 {
	out := make(map[string]float32)
	for _, c := range []models.Category{
		models.CategoryCurrency, models.CategoryFragment, models.CategoryOil,
		models.CategoryIncubator, models.CategoryFossil,
	} {
		for name, v := range ix.named[c] {
			out[name] = v
		}
	}
	for name, v := range ix.essences {
		out[name] = v
	}
	for _, c := range []models.Category{
		models.CategoryDivinationCard, models.CategoryResonator,
		models.CategoryDeliriumOrb, models.CategoryVial,
	} {
		for name, v := range ix.named[c] {
			out[name] = v
		}
	}
	for _, r := range p.Map {
		if r.ChaosValue != nil {
			out[r.Name] = *r.ChaosValue
		}
	}
	for _, r := range p.SkillGem {
		if r.ChaosValue != nil {
			out[GemKey(r.Name, r.Level, r.Quality, r.Corrupt)] = *r.ChaosValue
			out[r.Name] = *r.ChaosValue
		}
	}
	return out
}
