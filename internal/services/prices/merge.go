package prices

import (
	"strings"

	"poe-wealth/internal/models"
	"poe-wealth/internal/services/feed"
)

// namedMerge accumulates a name-keyed table. Later contributions resolve to
// an existing key by exact name first, then by normalized name; unmatched
// names become new rows. A value only fills a missing price, unless
// preferHigher is set, in which case the larger of two prices wins.
type namedMerge struct {
	preferHigher bool
	order        []string
	values       map[string]*float32
	byNorm       map[string]string
}

func newNamedMerge(preferHigher bool) *namedMerge {
	return &namedMerge{
		preferHigher: preferHigher,
		values:       make(map[string]*float32),
		byNorm:       make(map[string]string),
	}
}

func (m *namedMerge) resolve(name string) (string, bool) {
	if _, ok := m.values[name]; ok {
		return name, true
	}
	key, ok := m.byNorm[feed.Norm(name)]
	return key, ok
}

func (m *namedMerge) add(name string, price *float32) {
	if name == "" {
		return
	}
	key, ok := m.resolve(name)
	if !ok {
		m.order = append(m.order, name)
		m.values[name] = price
		if _, taken := m.byNorm[feed.Norm(name)]; !taken {
			m.byNorm[feed.Norm(name)] = name
		}
		return
	}
	m.values[key] = pick(m.values[key], price, m.preferHigher)
}

func (m *namedMerge) rows() []models.NamedPrice {
	out := make([]models.NamedPrice, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, models.NamedPrice{Name: name, ChaosValue: m.values[name]})
	}
	return out
}

func pick(existing, candidate *float32, preferHigher bool) *float32 {
	switch {
	case candidate == nil:
		return existing
	case existing == nil:
		return candidate
	case preferHigher && *candidate > *existing:
		return candidate
	}
	return existing
}

type mapKey struct {
	name string
	tier uint8
}

type mapMerge struct {
	order  []mapKey
	values map[mapKey]*float32
	byNorm map[mapKey]mapKey
}

func newMapMerge() *mapMerge {
	return &mapMerge{values: make(map[mapKey]*float32), byNorm: make(map[mapKey]mapKey)}
}

func (m *mapMerge) add(name string, tier uint8, price *float32) {
	if name == "" {
		return
	}
	k := mapKey{name, tier}
	if _, ok := m.values[k]; !ok {
		nk := mapKey{feed.Norm(name), tier}
		if existing, ok := m.byNorm[nk]; ok {
			k = existing
		} else {
			m.order = append(m.order, k)
			m.values[k] = price
			m.byNorm[nk] = k
			return
		}
	}
	m.values[k] = pick(m.values[k], price, false)
}

func (m *mapMerge) rows() []models.MapPrice {
	out := make([]models.MapPrice, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, models.MapPrice{Name: k.name, Tier: k.tier, ChaosValue: m.values[k]})
	}
	return out
}

type essenceKey struct {
	name    string
	variant string
	hasVar  bool
}

func newEssenceKey(name string, variant *string) essenceKey {
	if variant == nil {
		return essenceKey{name: name}
	}
	return essenceKey{name: name, variant: *variant, hasVar: true}
}

func (k essenceKey) variantPtr() *string {
	if !k.hasVar {
		return nil
	}
	v := k.variant
	return &v
}

type essenceMerge struct {
	order  []essenceKey
	values map[essenceKey]*float32
}

func newEssenceMerge() *essenceMerge {
	return &essenceMerge{values: make(map[essenceKey]*float32)}
}

// match finds the row a third-feed line belongs to. That feed has no
// variant column of its own on most listings, so "{variant} {name}" is also
// tried against its flat name.
func (m *essenceMerge) match(name string, variant *string) (essenceKey, bool) {
	want := newEssenceKey(name, variant)
	if _, ok := m.values[want]; ok {
		return want, true
	}
	for _, k := range m.order {
		if k.hasVar == want.hasVar && k.variant == want.variant && feed.Norm(k.name) == feed.Norm(name) {
			return k, true
		}
	}
	for _, k := range m.order {
		if !k.hasVar {
			continue
		}
		combo := k.variant + " " + k.name
		if combo == name || feed.Norm(combo) == feed.Norm(name) {
			return k, true
		}
	}
	return essenceKey{}, false
}

func (m *essenceMerge) add(name string, variant *string, price *float32, fuzzy bool) {
	if name == "" {
		return
	}
	k := newEssenceKey(name, variant)
	if fuzzy {
		if found, ok := m.match(name, variant); ok {
			k = found
		}
	}
	if _, ok := m.values[k]; !ok {
		m.order = append(m.order, k)
		m.values[k] = price
		return
	}
	m.values[k] = pick(m.values[k], price, false)
}

func (m *essenceMerge) rows() []models.EssencePrice {
	out := make([]models.EssencePrice, 0, len(m.order))
	for _, k := range m.order {
		row := models.EssencePrice{Name: k.name, Variant: k.variantPtr(), ChaosValue: m.values[k]}
		if tier, variant, ok := EssenceTier(k.name); ok {
			row.Tier = &tier
			if row.Variant == nil {
				row.Variant = &variant
			}
		}
		out = append(out, row)
	}
	return out
}

var essencePrefixes = []struct {
	prefix string
	tier   uint8
}{
	{"Deafening", 1},
	{"Shrieking", 2},
	{"Screaming", 3},
	{"Wailing", 4},
	{"Weeping", 5},
	{"Muttering", 6},
	{"Whispering", 7},
}

// EssenceTier derives the tier and variant of an essence from its name prefix.
func EssenceTier(name string) (uint8, string, bool) {
	for _, p := range essencePrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.tier, p.prefix, true
		}
	}
	return 0, "", false
}

type gemKey struct {
	name    string
	level   uint8
	quality uint8
	corrupt bool
}

type gemMerge struct {
	order  []gemKey
	values map[gemKey]*float32
	byNorm map[gemKey]gemKey
}

func newGemMerge() *gemMerge {
	return &gemMerge{values: make(map[gemKey]*float32), byNorm: make(map[gemKey]gemKey)}
}

func (m *gemMerge) add(name string, level, quality uint8, corrupt bool, price *float32) {
	if name == "" {
		return
	}
	k := gemKey{name, level, quality, corrupt}
	if _, ok := m.values[k]; !ok {
		nk := gemKey{feed.Norm(name), level, quality, corrupt}
		if existing, ok := m.byNorm[nk]; ok {
			k = existing
		} else {
			m.order = append(m.order, k)
			m.values[k] = price
			m.byNorm[nk] = k
			return
		}
	}
	m.values[k] = pick(m.values[k], price, false)
}

func (m *gemMerge) rows() []models.GemPrice {
	out := make([]models.GemPrice, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, models.GemPrice{Name: k.name, Level: k.level, Quality: k.quality, Corrupt: k.corrupt, ChaosValue: m.values[k]})
	}
	return out
}
