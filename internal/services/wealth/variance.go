package wealth

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"poe-wealth/internal/models"

	"github.com/shopspring/decimal"
)

const (
	ModeInventory = "inventory"
	ModeItem      = "item"
	ModeCategory  = "category"

	topItemsPerCategory = 3
)

var hundred = decimal.NewFromInt(100)

// Baseline selects the variance mode. When several are set the inventory
// baseline wins, then item prices, then category totals.
type Baseline struct {
	ItemPrices map[string]float32               `json:"baseline_item_prices,omitempty"`
	ByCategory map[string]models.CategoryTotals `json:"baseline_by_category,omitempty"`
	Inventory  map[string]uint32                `json:"baseline_inventory,omitempty"`
}

type InventoryChange struct {
	Name        string  `json:"name"`
	Key         string  `json:"key"`
	Category    string  `json:"category"`
	SnapshotQty uint32  `json:"snapshotQty"`
	CurrentQty  uint32  `json:"currentQty"`
	Diff        int64   `json:"diff"`
	Price       float32 `json:"price"`
	TotalValue  float32 `json:"totalValue"`
	IsNew       bool    `json:"isNew"`
	IsRemoved   bool    `json:"isRemoved"`
}

type ItemChange struct {
	Name          string  `json:"name"`
	Key           string  `json:"key"`
	Category      string  `json:"category"`
	Qty           uint32  `json:"qty"`
	SnapshotPrice float32 `json:"snapshotPrice"`
	CurrentPrice  float32 `json:"currentPrice"`
	Change        float32 `json:"change"`
	ChangePercent float32 `json:"changePercent"`
	TotalChange   float32 `json:"totalChange"`
}

type TopItem struct {
	Name  string  `json:"name"`
	Qty   uint32  `json:"qty"`
	Value float32 `json:"value"`
}

type CategoryChange struct {
	Category      string    `json:"category"`
	SnapshotTotal float32   `json:"snapshotTotal"`
	CurrentTotal  float32   `json:"currentTotal"`
	Diff          float32   `json:"diff"`
	DiffPercent   float32   `json:"diffPercent"`
	TopItems      []TopItem `json:"topItems"`
}

// Variance is the diff of current tabs against one baseline. Only the slice
// matching Mode is populated.
type Variance struct {
	Mode          string
	Inventory     []InventoryChange
	Items         []ItemChange
	Categories    []CategoryChange
	TotalVariance float32
}

func (v Variance) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{"mode": v.Mode}
	switch v.Mode {
	case ModeInventory:
		out["changes"] = nonNil(v.Inventory)
	case ModeItem:
		out["changes"] = nonNil(v.Items)
		out["totalVariance"] = v.TotalVariance
	default:
		out["changes"] = nonNil(v.Categories)
	}
	return json.Marshal(out)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// position aggregates every stack of one inventory key.
type position struct {
	holding
	key string
}

func aggregate(tabs []models.TabWithItems) ([]position, map[string]int) {
	var out []position
	index := make(map[string]int)
	for _, tab := range tabs {
		kind := tab.Kind()
		for _, it := range tab.AllItems() {
			h := newHolding(it, kind)
			k := h.key()
			if i, ok := index[k]; ok {
				out[i].qty += h.qty
				continue
			}
			index[k] = len(out)
			out = append(out, position{holding: h, key: k})
		}
	}
	return out, index
}

// PriceVariance diffs tabs, priced at the current table of league, against
// the baseline.
func (a *Aggregator) PriceVariance(ctx context.Context, league string, tabs []models.TabWithItems, b Baseline) Variance {
	return Diff(tabs, a.prices.Get(ctx, league), b)
}

// Diff is PriceVariance against an explicit price table.
func Diff(tabs []models.TabWithItems, p models.Prices, b Baseline) Variance {
	ix := newPriceIndex(p)
	positions, index := aggregate(tabs)

	switch {
	case b.Inventory != nil:
		return inventoryVariance(ix, positions, index, b.Inventory)
	case b.ItemPrices != nil:
		return itemVariance(ix, positions, b.ItemPrices)
	}
	return categoryVariance(ix, positions, b.ByCategory)
}

func inventoryVariance(ix *priceIndex, positions []position, index map[string]int, baseline map[string]uint32) Variance {
	var changes []InventoryChange
	for _, pos := range positions {
		before := baseline[pos.key]
		if before == pos.qty {
			continue
		}
		changes = append(changes, inventoryChange(ix, pos.holding, pos.key, before, pos.qty))
	}
	for key, before := range baseline {
		if _, ok := index[key]; ok {
			continue
		}
		c := inventoryChange(ix, parseKey(key), key, before, 0)
		c.IsRemoved = true
		changes = append(changes, c)
	}

	sort.Slice(changes, func(i, j int) bool {
		ai, aj := abs32(changes[i].TotalValue), abs32(changes[j].TotalValue)
		if ai != aj {
			return ai > aj
		}
		return changes[i].Key < changes[j].Key
	})
	return Variance{Mode: ModeInventory, Inventory: changes}
}

func inventoryChange(ix *priceIndex, h holding, key string, before, now uint32) InventoryChange {
	unit, category, _ := ix.price(h)
	diff := int64(now) - int64(before)
	return InventoryChange{
		Name:        h.name,
		Key:         key,
		Category:    category,
		SnapshotQty: before,
		CurrentQty:  now,
		Diff:        diff,
		Price:       unit,
		TotalValue:  toF32(decimal.NewFromFloat32(unit).Mul(decimal.NewFromInt(diff))),
		IsNew:       before == 0,
	}
}

// itemVariance holds quantity fixed and isolates price movement.
func itemVariance(ix *priceIndex, positions []position, baseline map[string]float32) Variance {
	changes := make([]ItemChange, 0, len(positions))
	total := decimal.Zero
	for _, pos := range positions {
		current, category, _ := ix.price(pos.holding)
		before, ok := baseline[pos.key]
		if !ok {
			before = baseline[pos.name]
		}
		change := decimal.NewFromFloat32(current).Sub(decimal.NewFromFloat32(before))
		var pct float32
		switch {
		case before > 0:
			pct = toF32(change.Div(decimal.NewFromFloat32(before)).Mul(hundred))
		case current > 0:
			pct = 100
		}
		impact := change.Mul(decimal.NewFromInt(int64(pos.qty)))
		total = total.Add(impact)
		changes = append(changes, ItemChange{
			Name:          pos.name,
			Key:           pos.key,
			Category:      category,
			Qty:           pos.qty,
			SnapshotPrice: before,
			CurrentPrice:  current,
			Change:        toF32(change),
			ChangePercent: pct,
			TotalChange:   toF32(impact),
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		pi, pj := abs32(changes[i].ChangePercent), abs32(changes[j].ChangePercent)
		if pi != pj {
			return pi > pj
		}
		ti, tj := abs32(changes[i].TotalChange), abs32(changes[j].TotalChange)
		if ti != tj {
			return ti > tj
		}
		return changes[i].Key < changes[j].Key
	})
	return Variance{Mode: ModeItem, Items: changes, TotalVariance: toF32(total)}
}

// categoryVariance compares current per-category totals with a snapshot's.
func categoryVariance(ix *priceIndex, positions []position, baseline map[string]models.CategoryTotals) Variance {
	current := make(map[string]decimal.Decimal)
	tops := make(map[string][]TopItem)
	for _, pos := range positions {
		unit, category, ok := ix.price(pos.holding)
		if !ok {
			continue
		}
		value := decimal.NewFromFloat32(unit).Mul(decimal.NewFromInt(int64(pos.qty)))
		if !value.IsPositive() {
			continue
		}
		current[category] = current[category].Add(value)
		tops[category] = append(tops[category], TopItem{Name: pos.key, Qty: pos.qty, Value: toF32(value)})
	}

	cats := make(map[string]struct{})
	for c := range current {
		cats[c] = struct{}{}
	}
	for c := range baseline {
		cats[c] = struct{}{}
	}

	changes := make([]CategoryChange, 0, len(cats))
	for c := range cats {
		// totals are rounded to float32 the way Value stores them, so a
		// snapshot compared with its own tabs diffs to exactly zero
		now := toF32(current[c])
		before := baseline[c].Chaos
		diff := decimal.NewFromFloat32(now).Sub(decimal.NewFromFloat32(before))
		var pct float32
		if before > 0 {
			pct = toF32(diff.Div(decimal.NewFromFloat32(before)).Mul(hundred))
		}
		items := tops[c]
		sort.Slice(items, func(i, j int) bool {
			if items[i].Value != items[j].Value {
				return items[i].Value > items[j].Value
			}
			return items[i].Name < items[j].Name
		})
		if len(items) > topItemsPerCategory {
			items = items[:topItemsPerCategory]
		}
		changes = append(changes, CategoryChange{
			Category:      c,
			SnapshotTotal: before,
			CurrentTotal:  now,
			Diff:          toF32(diff),
			DiffPercent:   pct,
			TopItems:      nonNil(items),
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		di, dj := abs32(changes[i].Diff), abs32(changes[j].Diff)
		if di != dj {
			return di > dj
		}
		return changes[i].Category < changes[j].Category
	})
	return Variance{Mode: ModeCategory, Categories: changes}
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
