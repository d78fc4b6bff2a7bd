package prices

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"poe-wealth/internal/cache"
	"poe-wealth/internal/models"
	"poe-wealth/internal/services/feed"
	"poe-wealth/internal/services/ninja"
	"poe-wealth/internal/services/poewatch"
)

const DefaultGemTTL = 15 * time.Minute

// Ninja is the dense feed plus the legacy per-category overviews.
type Ninja interface {
	DenseOverviews(ctx context.Context, league string) (interface{}, error)
	CurrencyOverview(ctx context.Context, league, typ string) ([]feed.Line, error)
	ItemOverview(ctx context.Context, league, typ string) ([]feed.Line, error)
}

// Watch is the third, per-category feed.
type Watch interface {
	Items(ctx context.Context, league, category string, lowConfidence bool) ([]feed.Line, error)
}

// DenseParser turns the raw dense blob into type -> lines.
type DenseParser func(blob interface{}) map[string][]feed.Line

// Reconciler merges the three feeds into one table per category. A failing
// source counts as empty.
type Reconciler struct {
	ninja Ninja
	watch Watch
	dense DenseParser
	gems  *cache.TTL[string, []models.GemPrice]
}

func NewReconciler(legacy Ninja, watch Watch, dense DenseParser, gemTTL time.Duration) *Reconciler {
	if gemTTL <= 0 {
		gemTTL = DefaultGemTTL
	}
	if dense == nil {
		dense = ninja.DenseCategories
	}
	return &Reconciler{
		ninja: legacy,
		watch: watch,
		dense: dense,
		gems:  cache.NewTTL[string, []models.GemPrice](gemTTL),
	}
}

// SetGemTTL changes the gem-price cache window at runtime.
func (r *Reconciler) SetGemTTL(d time.Duration) {
	r.gems.SetTTL(d)
	log.Printf("gem prices cache ttl set to %s", d)
}

func (r *Reconciler) GemTTL() time.Duration { return r.gems.TTL() }

type legacyFeed struct {
	currency bool
	typ      string
}

// namedSource lists where a name-keyed category comes from.
type namedSource struct {
	dense        []string
	legacy       []legacyFeed
	preferHigher bool
	requireData  bool
}

var namedSources = map[models.Category]namedSource{
	models.CategoryCurrency: {
		dense:  []string{"Currency"},
		legacy: []legacyFeed{{currency: true, typ: "Currency"}},
	},
	models.CategoryFragment: {
		dense:        []string{"Fragment"},
		legacy:       []legacyFeed{{currency: true, typ: "Fragment"}, {typ: "Scarab"}},
		preferHigher: true,
		requireData:  true,
	},
	models.CategoryDivinationCard: {dense: []string{"DivinationCard"}, legacy: []legacyFeed{{typ: "DivinationCard"}}},
	models.CategoryOil:            {dense: []string{"Oil"}, legacy: []legacyFeed{{typ: "Oil"}}},
	models.CategoryIncubator:      {dense: []string{"Incubator"}, legacy: []legacyFeed{{typ: "Incubator"}}},
	models.CategoryFossil:         {dense: []string{"Fossil"}, legacy: []legacyFeed{{typ: "Fossil"}}},
	models.CategoryResonator:      {dense: []string{"Resonator"}, legacy: []legacyFeed{{typ: "Resonator"}}},
	models.CategoryDeliriumOrb:    {dense: []string{"DeliriumOrb"}, legacy: []legacyFeed{{typ: "DeliriumOrb"}}},
	models.CategoryVial:           {dense: []string{"Vial"}, legacy: []legacyFeed{{typ: "Vial"}}},
}

type fetchFunc func(ctx context.Context) ([]feed.Line, error)

// fanOut runs every fetch concurrently. A failed fetch leaves a nil slot.
func fanOut(ctx context.Context, label string, fetches []fetchFunc) [][]feed.Line {
	out := make([][]feed.Line, len(fetches))
	var wg sync.WaitGroup
	for i, f := range fetches {
		wg.Add(1)
		go func(i int, f fetchFunc) {
			defer wg.Done()
			lines, err := f(ctx)
			if err != nil {
				log.Printf("%s: source %d unavailable: %v", label, i, err)
				return
			}
			out[i] = lines
		}(i, f)
	}
	wg.Wait()
	return out
}

// denseFetch fetches and parses the dense blob once.
func (r *Reconciler) denseFetch(ctx context.Context, league string) (map[string][]feed.Line, error) {
	blob, err := r.ninja.DenseOverviews(ctx, league)
	if err != nil {
		return nil, err
	}
	return r.dense(blob), nil
}

// denseSource returns a fetch for the given dense types. When dense is
// already known it is reused instead of hitting the network again.
func (r *Reconciler) denseSource(league string, dense map[string][]feed.Line, types []string) fetchFunc {
	return func(ctx context.Context) ([]feed.Line, error) {
		cats := dense
		if cats == nil {
			var err error
			if cats, err = r.denseFetch(ctx, league); err != nil {
				return nil, err
			}
		}
		var lines []feed.Line
		for _, t := range types {
			lines = append(lines, cats[t]...)
		}
		return lines, nil
	}
}

func (r *Reconciler) legacySource(league string, l legacyFeed) fetchFunc {
	return func(ctx context.Context) ([]feed.Line, error) {
		if l.currency {
			return r.ninja.CurrencyOverview(ctx, league, l.typ)
		}
		return r.ninja.ItemOverview(ctx, league, l.typ)
	}
}

func (r *Reconciler) watchSource(league string, c models.Category) fetchFunc {
	return func(ctx context.Context) ([]feed.Line, error) {
		if r.watch == nil {
			return nil, nil
		}
		return r.watch.Items(ctx, league, poewatch.Categories[c], false)
	}
}

func (r *Reconciler) named(ctx context.Context, league string, c models.Category, dense map[string][]feed.Line) ([]models.NamedPrice, error) {
	src, ok := namedSources[c]
	if !ok {
		return nil, fmt.Errorf("category %s is not name-keyed", c)
	}
	fetches := []fetchFunc{r.denseSource(league, dense, src.dense)}
	for _, l := range src.legacy {
		fetches = append(fetches, r.legacySource(league, l))
	}
	fetches = append(fetches, r.watchSource(league, c))
	results := fanOut(ctx, fmt.Sprintf("%s %s", league, c), fetches)

	m := newNamedMerge(src.preferHigher)
	for _, l := range results[0] {
		m.add(l.DenseName(), l.DenseChaos())
	}
	for i, lf := range src.legacy {
		for _, l := range results[1+i] {
			if lf.currency {
				m.add(l.CurrencyName(), l.CurrencyChaos())
			} else {
				m.add(l.ItemName(), l.ItemChaos())
			}
		}
	}
	for _, l := range results[len(results)-1] {
		m.add(l.WatchName(), l.WatchChaos())
	}

	rows := m.rows()
	if src.requireData && len(rows) == 0 {
		return nil, models.NoDataError(league)
	}
	log.Printf("%s prices for %s: %d rows", c, league, len(rows))
	return rows, nil
}

func (r *Reconciler) Currency(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryCurrency, nil)
}

// Fragment prefers the higher of two reported prices and fails with
// ErrNoDataForMarket when no source has a single row.
func (r *Reconciler) Fragment(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryFragment, nil)
}

func (r *Reconciler) DivinationCard(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryDivinationCard, nil)
}

func (r *Reconciler) Oil(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryOil, nil)
}

func (r *Reconciler) Incubator(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryIncubator, nil)
}

func (r *Reconciler) Fossil(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryFossil, nil)
}

func (r *Reconciler) Resonator(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryResonator, nil)
}

func (r *Reconciler) DeliriumOrb(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryDeliriumOrb, nil)
}

func (r *Reconciler) Vial(ctx context.Context, league string) ([]models.NamedPrice, error) {
	return r.named(ctx, league, models.CategoryVial, nil)
}

// Map is keyed by (name, tier); there is no dense source for maps.
func (r *Reconciler) Map(ctx context.Context, league string) ([]models.MapPrice, error) {
	results := fanOut(ctx, league+" Map", []fetchFunc{
		r.legacySource(league, legacyFeed{typ: "Map"}),
		r.watchSource(league, models.CategoryMap),
	})
	m := newMapMerge()
	for _, l := range results[0] {
		m.add(l.ItemName(), l.MapTier(), l.ItemChaos())
	}
	for _, l := range results[1] {
		m.add(l.WatchName(), l.MapTier(), l.WatchChaos())
	}
	rows := m.rows()
	log.Printf("Map prices for %s: %d rows", league, len(rows))
	return rows, nil
}

func (r *Reconciler) Essence(ctx context.Context, league string) ([]models.EssencePrice, error) {
	return r.essence(ctx, league, nil)
}

func (r *Reconciler) essence(ctx context.Context, league string, dense map[string][]feed.Line) ([]models.EssencePrice, error) {
	results := fanOut(ctx, league+" Essence", []fetchFunc{
		r.denseSource(league, dense, []string{"Essence"}),
		r.legacySource(league, legacyFeed{typ: "Essence"}),
		r.watchSource(league, models.CategoryEssence),
	})
	m := newEssenceMerge()
	for _, l := range results[0] {
		m.add(l.DenseName(), l.Variant(), l.DenseChaos(), false)
	}
	for _, l := range results[1] {
		m.add(l.ItemName(), l.Variant(), l.ItemChaos(), true)
	}
	for _, l := range results[2] {
		m.add(l.WatchName(), l.Variant(), l.WatchChaos(), true)
	}
	rows := m.rows()
	log.Printf("Essence prices for %s: %d rows", league, len(rows))
	return rows, nil
}

// SkillGem is keyed by (name, level, quality, corrupted) and memoized per
// league for the gem TTL.
func (r *Reconciler) SkillGem(ctx context.Context, league string) ([]models.GemPrice, error) {
	if rows, ok := r.gems.Get(league); ok {
		log.Printf("SkillGem prices for %s: %d rows (cached)", league, len(rows))
		return cloneGems(rows), nil
	}

	results := fanOut(ctx, league+" SkillGem", []fetchFunc{
		r.legacySource(league, legacyFeed{typ: "SkillGem"}),
		r.watchSource(league, models.CategorySkillGem),
	})
	if results[0] == nil && results[1] == nil {
		return nil, fmt.Errorf("%w: no gem source answered for %s", models.ErrUpstreamUnavailable, league)
	}
	m := newGemMerge()
	for _, l := range results[0] {
		m.add(l.ItemName(), l.GemLevel(), l.GemQuality(), l.Corrupted(), l.ItemChaos())
	}
	for _, l := range results[1] {
		m.add(l.WatchName(), l.GemLevel(), l.GemQuality(), l.Corrupted(), l.WatchChaos())
	}
	rows := m.rows()
	r.gems.Set(league, rows)
	log.Printf("SkillGem prices for %s: %d rows", league, len(rows))
	return cloneGems(rows), nil
}

func cloneGems(rows []models.GemPrice) []models.GemPrice {
	p := models.Prices{SkillGem: rows}
	return p.Clone().SkillGem
}

// Category reconciles a single category into an otherwise empty table.
func (r *Reconciler) Category(ctx context.Context, league string, c models.Category) (models.Prices, error) {
	var p models.Prices
	var err error
	switch c {
	case models.CategoryMap:
		p.Map, err = r.Map(ctx, league)
	case models.CategoryEssence:
		p.Essence, err = r.Essence(ctx, league)
	case models.CategorySkillGem:
		p.SkillGem, err = r.SkillGem(ctx, league)
	default:
		var rows []models.NamedPrice
		rows, err = r.named(ctx, league, c, nil)
		p.SetNamed(c, rows)
	}
	return p, err
}

// All reconciles every category concurrently, fetching the dense blob once.
// A fragment no-data error is absorbed into an empty table; the call only
// fails when every category came back empty.
func (r *Reconciler) All(ctx context.Context, league string) (models.Prices, error) {
	dense, err := r.denseFetch(ctx, league)
	if err != nil {
		log.Printf("dense overviews for %s unavailable: %v", league, err)
		dense = map[string][]feed.Line{}
	}

	var (
		p  models.Prices
		mu sync.Mutex
		wg sync.WaitGroup
	)
	run := func(c models.Category, f func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(); err != nil {
				log.Printf("%s prices for %s skipped: %v", c, league, err)
			}
		}()
	}

	for c := range namedSources {
		c := c
		run(c, func() error {
			rows, err := r.named(ctx, league, c, dense)
			mu.Lock()
			p.SetNamed(c, rows)
			mu.Unlock()
			return err
		})
	}
	run(models.CategoryMap, func() error {
		rows, err := r.Map(ctx, league)
		mu.Lock()
		p.Map = rows
		mu.Unlock()
		return err
	})
	run(models.CategoryEssence, func() error {
		rows, err := r.essence(ctx, league, dense)
		mu.Lock()
		p.Essence = rows
		mu.Unlock()
		return err
	})
	run(models.CategorySkillGem, func() error {
		rows, err := r.SkillGem(ctx, league)
		mu.Lock()
		p.SkillGem = rows
		mu.Unlock()
		return err
	})
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return models.Prices{}, err
	}
	if p.Empty() {
		return models.Prices{}, models.NoDataError(league)
	}
	return p, nil
}
