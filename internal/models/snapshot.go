package models

// CategoryTotals is the priced value of one snapshot category.
type CategoryTotals struct {
	Chaos float32 `json:"chaos"`
}

// WealthSnapshot is a point-in-time valuation of a player's tabs in one league.
type WealthSnapshot struct {
	Timestamp    int64                     `json:"timestamp"`
	League       string                    `json:"league"`
	TotalChaos   float32                   `json:"total_chaos"`
	TotalDivines *float32                  `json:"total_divines"`
	ByCategory   map[string]CategoryTotals `json:"by_category"`
	ItemPrices   map[string]float32        `json:"item_prices,omitempty"`
	Inventory    map[string]uint32         `json:"inventory,omitempty"`
}

// Clone copies the maps and the divine total so callers may edit the result
// without touching memoized snapshots. Nil maps stay nil.
func (s WealthSnapshot) Clone() WealthSnapshot {
	out := s
	if s.TotalDivines != nil {
		d := *s.TotalDivines
		out.TotalDivines = &d
	}
	out.ByCategory = copyMap(s.ByCategory)
	out.ItemPrices = copyMap(s.ItemPrices)
	out.Inventory = copyMap(s.Inventory)
	return out
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// SnapshotRecord is the persisted row of a snapshot. JSON holds the full
// serialized WealthSnapshot; the other columns exist for range scans.
type SnapshotRecord struct {
	ID           uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp    int64    `gorm:"not null;index:idx_league_timestamp,priority:2,sort:desc" json:"timestamp"`
	League       string   `gorm:"type:varchar(191);not null;index:idx_league_timestamp,priority:1" json:"league"`
	TotalChaos   float32  `gorm:"not null" json:"total_chaos"`
	TotalDivines *float32 `json:"total_divines"`
	JSON         string   `gorm:"column:json;type:text;not null" json:"-"`
}

func (SnapshotRecord) TableName() string {
	return "snapshots"
}

// SnapshotQuery selects snapshots of a league, optionally within [Start, End].
type SnapshotQuery struct {
	League string
	Start  *int64
	End    *int64
	Limit  int
	Offset int
}
