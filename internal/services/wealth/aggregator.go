// Package wealth prices stash tabs into point-in-time snapshots and diffs
// them against stored baselines.
package wealth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"poe-wealth/internal/models"

	"github.com/shopspring/decimal"
)

const DefaultTabDelay = 1100 * time.Millisecond

type PriceSource interface {
	Get(ctx context.Context, league string) models.Prices
}

type TabFetcher interface {
	Tab(ctx context.Context, league, stashID string, substashID *string) (*models.TabWithItems, error)
}

type SnapshotSink interface {
	Append(ctx context.Context, s *models.WealthSnapshot) (uint, error)
}

type Options struct {
	// TabDelay is the pause after every successful tab fetch.
	TabDelay time.Duration
	// MaxRetries bounds rate-limit retries per tab; 0 retries forever.
	MaxRetries int
}

type Aggregator struct {
	prices     PriceSource
	tabs       TabFetcher
	sink       SnapshotSink
	tabDelay   time.Duration
	maxRetries int

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewAggregator(prices PriceSource, tabs TabFetcher, sink SnapshotSink, opts Options) *Aggregator {
	if opts.TabDelay < 0 {
		opts.TabDelay = 0
	}
	return &Aggregator{
		prices:     prices,
		tabs:       tabs,
		sink:       sink,
		tabDelay:   opts.TabDelay,
		maxRetries: opts.MaxRetries,
		sleep:      sleepContext,
		now:        time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Snapshot fetches every referenced tab, prices it and persists the result.
func (a *Aggregator) Snapshot(ctx context.Context, league string, refs []models.TabRef) (*models.WealthSnapshot, error) {
	tabs, err := a.FetchTabs(ctx, league, refs)
	if err != nil {
		return nil, err
	}
	return a.SnapshotFromTabs(ctx, league, tabs)
}

// FetchTabs loads tabs sequentially. A rate-limit answer sleeps for the
// advertised time plus one second and retries the same tab; any other
// error aborts.
func (a *Aggregator) FetchTabs(ctx context.Context, league string, refs []models.TabRef) ([]models.TabWithItems, error) {
	out := make([]models.TabWithItems, 0, len(refs))
	for _, ref := range refs {
		tab, err := a.fetchTab(ctx, league, ref)
		if err != nil {
			return nil, &models.StashTabError{League: league, StashID: ref.StashID, Err: err}
		}
		out = append(out, *tab)
		if err := a.sleep(ctx, a.tabDelay); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a *Aggregator) fetchTab(ctx context.Context, league string, ref models.TabRef) (*models.TabWithItems, error) {
	for attempt := 0; ; attempt++ {
		tab, err := a.tabs.Tab(ctx, league, ref.StashID, ref.SubstashID)
		if err == nil {
			return tab, nil
		}
		var rl *models.RateLimitedError
		if !errors.As(err, &rl) {
			return nil, err
		}
		if a.maxRetries > 0 && attempt >= a.maxRetries {
			return nil, fmt.Errorf("gave up after %d retries: %w", attempt, err)
		}
		wait := time.Duration(rl.RetryAfter+1) * time.Second
		log.Printf("stash %s rate limited, retrying in %s", ref.StashID, wait)
		if err := a.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// SnapshotFromTabs prices already-fetched tab contents and persists the result.
func (a *Aggregator) SnapshotFromTabs(ctx context.Context, league string, tabs []models.TabWithItems) (*models.WealthSnapshot, error) {
	p := a.prices.Get(ctx, league)
	s := Value(league, tabs, p)
	s.Timestamp = a.now().Unix()

	if a.sink != nil {
		id, err := a.sink.Append(ctx, s)
		if err != nil {
			return nil, err
		}
		log.Printf("snapshot %d for %s: %.1f chaos over %d tabs", id, league, s.TotalChaos, len(tabs))
	}
	return s, nil
}

// Value prices tabs against p. It is pure: the same tabs and prices always
// give the same totals.
func Value(league string, tabs []models.TabWithItems, p models.Prices) *models.WealthSnapshot {
	ix := newPriceIndex(p)

	total := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)
	inventory := make(map[string]uint32)

	for _, tab := range tabs {
		kind := tab.Kind()
		for _, it := range tab.AllItems() {
			h := newHolding(it, kind)
			inventory[h.key()] += h.qty

			unit, category, ok := ix.price(h)
			if !ok {
				continue
			}
			value := decimal.NewFromFloat32(unit).Mul(decimal.NewFromInt(int64(h.qty)))
			if !value.IsPositive() {
				continue
			}
			total = total.Add(value)
			byCategory[category] = byCategory[category].Add(value)
		}
	}

	s := &models.WealthSnapshot{
		League:     league,
		TotalChaos: toF32(total),
		ByCategory: make(map[string]models.CategoryTotals, len(byCategory)),
		ItemPrices: ix.flatten(p),
		Inventory:  inventory,
	}
	for c, v := range byCategory {
		s.ByCategory[c] = models.CategoryTotals{Chaos: toF32(v)}
	}
	if d := ix.divine(); d != nil {
		divines := toF32(total.Div(decimal.NewFromFloat32(*d)))
		s.TotalDivines = &divines
	}
	return s
}

func toF32(d decimal.Decimal) float32 {
	return float32(d.InexactFloat64())
}
