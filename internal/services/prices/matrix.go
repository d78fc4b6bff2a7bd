package prices

import (
	"context"
	"sort"

	"poe-wealth/internal/models"
	"poe-wealth/internal/services/feed"
	"poe-wealth/internal/services/poewatch"
)

// simpleMatrixCategories share the {dense, item overview, third feed} layout.
var simpleMatrixCategories = []models.Category{
	models.CategoryOil,
	models.CategoryIncubator,
	models.CategoryFossil,
	models.CategoryDivinationCard,
	models.CategoryResonator,
	models.CategoryDeliriumOrb,
	models.CategoryVial,
}

type matrixSources struct {
	dense        map[string][]feed.Line
	currency     []feed.Line
	fragment     []feed.Line
	scarab       []feed.Line
	items        map[models.Category][]feed.Line
	essenceItems []feed.Line
	mapItems     []feed.Line
	watch        map[models.Category][]feed.Line
}

// Matrix reports, per item, the raw price each source gives, without
// merging. Nothing here is written to the freshness store.
func (r *Reconciler) Matrix(ctx context.Context, league string, includeLowConfidence bool) ([]models.PriceSourceRow, error) {
	src := r.fetchMatrixSources(ctx, league, includeLowConfidence)

	var rows []models.PriceSourceRow
	rows = append(rows, namedMatrixRows(models.CategoryCurrency, src.dense["Currency"],
		[]sourceColumn{{lines: src.currency, currency: true, col: colCurrency}}, src.watch[models.CategoryCurrency])...)
	rows = append(rows, namedMatrixRows(models.CategoryFragment, src.dense["Fragment"],
		[]sourceColumn{{lines: src.fragment, currency: true, col: colCurrency}, {lines: src.scarab, col: colItem}},
		src.watch[models.CategoryFragment])...)
	for _, c := range simpleMatrixCategories {
		rows = append(rows, namedMatrixRows(c, src.dense[string(c)],
			[]sourceColumn{{lines: src.items[c], col: colItem}}, src.watch[c])...)
	}
	rows = append(rows, essenceMatrixRows(src.dense["Essence"], src.essenceItems, src.watch[models.CategoryEssence])...)
	rows = append(rows, mapMatrixRows(src.mapItems, src.watch[models.CategoryMap])...)

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return tierOf(a) < tierOf(b)
	})
	return rows, nil
}

func tierOf(r models.PriceSourceRow) int {
	if r.Tier == nil {
		return -1
	}
	return int(*r.Tier)
}

func (r *Reconciler) fetchMatrixSources(ctx context.Context, league string, lowConf bool) matrixSources {
	src := matrixSources{
		items: make(map[models.Category][]feed.Line),
		watch: make(map[models.Category][]feed.Line),
	}

	var blob interface{}
	fetches := []fetchFunc{
		func(ctx context.Context) ([]feed.Line, error) {
			b, err := r.ninja.DenseOverviews(ctx, league)
			blob = b
			return nil, err
		},
		r.legacySource(league, legacyFeed{currency: true, typ: "Currency"}),
		r.legacySource(league, legacyFeed{currency: true, typ: "Fragment"}),
	}
	for _, c := range simpleMatrixCategories {
		fetches = append(fetches, r.legacySource(league, legacyFeed{typ: string(c)}))
	}
	fetches = append(fetches,
		r.legacySource(league, legacyFeed{typ: "Essence"}),
		r.legacySource(league, legacyFeed{typ: "Scarab"}),
		r.legacySource(league, legacyFeed{typ: "Map"}),
	)

	watchCats := append([]models.Category{models.CategoryCurrency, models.CategoryFragment, models.CategoryEssence, models.CategoryMap}, simpleMatrixCategories...)
	upstream := len(fetches)
	for _, c := range watchCats {
		c := c
		fetches = append(fetches, func(ctx context.Context) ([]feed.Line, error) {
			if r.watch == nil {
				return nil, nil
			}
			return r.watch.Items(ctx, league, poewatch.Categories[c], lowConf)
		})
	}

	res := fanOut(ctx, league+" matrix", fetches)

	src.dense = r.dense(blob)
	src.currency = res[1]
	src.fragment = res[2]
	for i, c := range simpleMatrixCategories {
		src.items[c] = res[3+i]
	}
	n := 3 + len(simpleMatrixCategories)
	src.essenceItems, src.scarab, src.mapItems = res[n], res[n+1], res[n+2]
	for i, c := range watchCats {
		src.watch[c] = res[upstream+i]
	}
	return src
}

type column int

const (
	colCurrency column = iota
	colItem
)

type sourceColumn struct {
	lines    []feed.Line
	currency bool
	col      column
}

func (s sourceColumn) name(l feed.Line) string {
	if s.currency {
		return l.CurrencyName()
	}
	return l.ItemName()
}

func (s sourceColumn) price(l feed.Line) *float32 {
	if s.currency {
		return l.CurrencyChaos()
	}
	return l.ItemChaos()
}

func watchPrice(lines []feed.Line, name string) *float32 {
	for _, l := range lines {
		wn := l.WatchName()
		if wn == name || feed.Norm(wn) == feed.Norm(name) {
			return l.WatchChaos()
		}
	}
	return nil
}

func namedMatrixRows(c models.Category, dense []feed.Line, columns []sourceColumn, watch []feed.Line) []models.PriceSourceRow {
	names := make(map[string]struct{})
	for _, l := range dense {
		if n := l.DenseName(); n != "" {
			names[n] = struct{}{}
		}
	}
	for _, s := range columns {
		for _, l := range s.lines {
			if n := s.name(l); n != "" {
				names[n] = struct{}{}
			}
		}
	}

	rows := make([]models.PriceSourceRow, 0, len(names))
	for name := range names {
		row := models.PriceSourceRow{Category: c, Name: name}
		for _, l := range dense {
			if l.DenseName() == name {
				row.Dense = l.DenseChaos()
				row.DenseGraph = l.Graph()
				break
			}
		}
		for _, s := range columns {
			for _, l := range s.lines {
				if s.name(l) != name {
					continue
				}
				if s.col == colCurrency {
					row.CurrencyOverview = s.price(l)
				} else {
					row.ItemOverview = s.price(l)
				}
				break
			}
		}
		row.Poewatch = watchPrice(watch, name)
		rows = append(rows, row)
	}
	return rows
}

func sameVariant(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func essenceMatrixRows(dense, items, watch []feed.Line) []models.PriceSourceRow {
	keys := make(map[essenceKey]struct{})
	for _, l := range dense {
		if n := l.DenseName(); n != "" {
			keys[newEssenceKey(n, l.Variant())] = struct{}{}
		}
	}
	for _, l := range items {
		if n := l.ItemName(); n != "" {
			keys[newEssenceKey(n, l.Variant())] = struct{}{}
		}
	}

	rows := make([]models.PriceSourceRow, 0, len(keys))
	for k := range keys {
		variant := k.variantPtr()
		row := models.PriceSourceRow{Category: models.CategoryEssence, Name: k.name, Variant: variant}
		for _, l := range dense {
			if l.DenseName() == k.name && sameVariant(l.Variant(), variant) {
				row.Dense = l.DenseChaos()
				row.DenseGraph = l.Graph()
				break
			}
		}
		for _, l := range items {
			if l.ItemName() == k.name && sameVariant(l.Variant(), variant) {
				row.ItemOverview = l.ItemChaos()
				break
			}
		}
		for _, l := range watch {
			wn := l.WatchName()
			if (wn == k.name || feed.Norm(wn) == feed.Norm(k.name)) && sameVariant(l.Variant(), variant) {
				row.Poewatch = l.WatchChaos()
				break
			}
			if variant != nil {
				combo := *variant + " " + k.name
				if wn == combo || feed.Norm(wn) == feed.Norm(combo) {
					row.Poewatch = l.WatchChaos()
					break
				}
			}
		}
		if tier, derived, ok := EssenceTier(k.name); ok {
			row.Tier = &tier
			if row.Variant == nil {
				row.Variant = &derived
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func mapMatrixRows(items, watch []feed.Line) []models.PriceSourceRow {
	keys := make(map[mapKey]struct{})
	for _, l := range items {
		if n := l.ItemName(); n != "" {
			keys[mapKey{n, l.MapTier()}] = struct{}{}
		}
	}

	rows := make([]models.PriceSourceRow, 0, len(keys))
	for k := range keys {
		tier := k.tier
		row := models.PriceSourceRow{Category: models.CategoryMap, Name: k.name, Tier: &tier}
		for _, l := range items {
			if l.ItemName() == k.name && l.MapTier() == k.tier {
				row.ItemOverview = l.ItemChaos()
				break
			}
		}
		for _, l := range watch {
			wn := l.WatchName()
			if (wn == k.name || feed.Norm(wn) == feed.Norm(k.name)) && l.MapTier() == k.tier {
				row.Poewatch = l.WatchChaos()
				break
			}
		}
		rows = append(rows, row)
	}
	return rows
}
