package prices

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"poe-wealth/internal/models"
	"poe-wealth/internal/services/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(n *fakeNinja, w *fakeWatch) *Reconciler {
	return NewReconciler(n, w, nil, time.Minute)
}

func TestAllSourcesEmpty(t *testing.T) {
	r := newTestReconciler(&fakeNinja{}, &fakeWatch{})
	ctx := context.Background()

	for _, c := range models.AllCategories {
		if c == models.CategorySkillGem {
			continue
		}
		p, err := r.Category(ctx, "Standard", c)
		if c == models.CategoryFragment {
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrNoDataForMarket), c)
			continue
		}
		require.NoError(t, err, c)
		assert.Equal(t, 0, p.Len(c), c)
	}

	_, err := r.All(ctx, "Standard")
	assert.True(t, errors.Is(err, models.ErrNoDataForMarket))
}

func TestCurrencyDenseWins(t *testing.T) {
	n := &fakeNinja{
		dense: `{"overviews": [{"type": "Currency", "lines": [{"name": "Divine Orb", "chaos": 200}, {"name": "Chaos Shard"}]}]}`,
		lines: map[string]string{
			"currency/Currency": `[{"currencyTypeName": "Divine Orb", "chaosEquivalent": 180}, {"currencyTypeName": "chaos shard ", "chaosEquivalent": 0.05}, {"currencyTypeName": "Exalted Orb", "chaosEquivalent": 15}]`,
		},
	}
	w := &fakeWatch{lines: map[string]string{
		"currency": `[{"name": "Divine Orb", "mean": 150}, {"name": "Mirror of Kalandra", "mean": 90000}]`,
	}}
	rows, err := newTestReconciler(n, w).Currency(context.Background(), "Standard")
	require.NoError(t, err)

	v, ok := namedValue(rows, "Divine Orb")
	require.True(t, ok)
	assert.Equal(t, float32(200), *v)

	v, ok = namedValue(rows, "Chaos Shard")
	require.True(t, ok, "normalized name resolves to the dense row")
	assert.Equal(t, float32(0.05), *v)
	_, dup := namedValue(rows, "chaos shard ")
	assert.False(t, dup)

	v, _ = namedValue(rows, "Exalted Orb")
	assert.Equal(t, float32(15), *v)
	v, _ = namedValue(rows, "Mirror of Kalandra")
	assert.Equal(t, float32(90000), *v)
	assert.Len(t, rows, 4)
}

func TestFragmentPrefersHigher(t *testing.T) {
	n := &fakeNinja{
		dense: `{"overviews": [{"type": "Fragment", "lines": [{"name": "Mortal Grief", "chaos": 10}, {"name": "Sacrifice at Dusk", "chaos": 2}]}]}`,
		lines: map[string]string{
			"currency/Fragment": `[{"currencyTypeName": "Mortal Grief", "chaosEquivalent": 14}, {"currencyTypeName": "Sacrifice at Dusk", "chaosEquivalent": 1}]`,
			"item/Scarab":       `[{"name": "Gilded Ambush Scarab", "chaosValue": 5}]`,
		},
	}
	w := &fakeWatch{lines: map[string]string{"fragment": `[{"name": "Gilded Ambush Scarab", "mean": 7}]`}}
	rows, err := newTestReconciler(n, w).Fragment(context.Background(), "Standard")
	require.NoError(t, err)

	for name, want := range map[string]float32{"Mortal Grief": 14, "Sacrifice at Dusk": 2, "Gilded Ambush Scarab": 7} {
		v, ok := namedValue(rows, name)
		require.True(t, ok, name)
		assert.Equal(t, want, *v, name)
	}
}

func TestLegacyFillsMissingDenseValue(t *testing.T) {
	n := &fakeNinja{
		dense: `[{"type": "Oil", "lines": [{"name": "Golden Oil"}]}]`,
		lines: map[string]string{"item/Oil": `[{"name": "Golden Oil", "chaosValue": 21}]`},
	}
	rows, err := newTestReconciler(n, &fakeWatch{}).Oil(context.Background(), "Standard")
	require.NoError(t, err)
	v, ok := namedValue(rows, "Golden Oil")
	require.True(t, ok)
	assert.Equal(t, float32(21), *v)
}

func TestMapKeyedByTier(t *testing.T) {
	n := &fakeNinja{lines: map[string]string{
		"item/Map": `[{"name": "Strand Map", "mapTier": 16, "chaosValue": 4}, {"name": "Strand Map", "mapTier": 11, "chaosValue": 1}]`,
	}}
	w := &fakeWatch{lines: map[string]string{"map": `[{"name": "strand map", "tier": 11, "mean": 3}, {"name": "Strand Map", "tier": 0, "mean": 0.5}]`}}
	rows, err := newTestReconciler(n, w).Map(context.Background(), "Standard")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byTier := map[uint8]float32{}
	for _, r := range rows {
		byTier[r.Tier] = *r.ChaosValue
	}
	assert.Equal(t, map[uint8]float32{16: 4, 11: 1, 0: 0.5}, byTier)
}

func TestEssenceVariantAndTier(t *testing.T) {
	n := &fakeNinja{
		dense: `{"overviews": [{"type": "Essence", "lines": [{"name": "Essence of Greed", "variant": "Shrieking", "chaos": 3}]}]}`,
		lines: map[string]string{"item/Essence": `[{"name": "Deafening Essence of Wrath", "chaosValue": 9}, {"name": "Essence of Hysteria", "chaosValue": 6}]`},
	}
	w := &fakeWatch{lines: map[string]string{"essence": `[{"name": "Shrieking Essence of Greed", "mean": 4}, {"name": "Essence of Greed", "mean": 100}]`}}
	rows, err := newTestReconciler(n, w).Essence(context.Background(), "Standard")
	require.NoError(t, err)

	find := func(name string, variant *string) *models.EssencePrice {
		for i := range rows {
			if rows[i].Name == name && sameVariant(rows[i].Variant, variant) {
				return &rows[i]
			}
		}
		return nil
	}
	shrieking := "Shrieking"
	got := find("Essence of Greed", &shrieking)
	require.NotNil(t, got)
	assert.Equal(t, float32(3), *got.ChaosValue, "dense value is kept over the combo match")
	assert.Equal(t, "Shrieking Essence of Greed", got.FullName())

	deafening := "Deafening"
	got = find("Deafening Essence of Wrath", &deafening)
	require.NotNil(t, got, "variant derived from name prefix")
	require.NotNil(t, got.Tier)
	assert.Equal(t, uint8(1), *got.Tier)
	assert.Equal(t, "Deafening Essence of Wrath", got.FullName())

	got = find("Essence of Hysteria", nil)
	require.NotNil(t, got)
	assert.Nil(t, got.Tier)

	got = find("Essence of Greed", nil)
	require.NotNil(t, got, "unmatched third-feed key becomes its own row")
	assert.Equal(t, float32(100), *got.ChaosValue)
}

func TestEssenceTierTable(t *testing.T) {
	for name, want := range map[string]uint8{
		"Deafening Essence of Anger":  1,
		"Shrieking Essence of Anger":  2,
		"Screaming Essence of Anger":  3,
		"Wailing Essence of Anger":    4,
		"Weeping Essence of Anger":    5,
		"Muttering Essence of Anger":  6,
		"Whispering Essence of Anger": 7,
	} {
		tier, _, ok := EssenceTier(name)
		require.True(t, ok, name)
		assert.Equal(t, want, tier, name)
	}
	_, _, ok := EssenceTier("Essence of Insanity")
	assert.False(t, ok)
}

func TestSkillGemCachedUntilTTL(t *testing.T) {
	n := &fakeNinja{lines: map[string]string{
		"item/SkillGem": `[{"name": "Vaal Grace", "gemLevel": 20, "gemQuality": 20, "chaosValue": 30},
			{"name": "Vaal Grace", "gemLevel": 20, "gemQuality": 20, "corrupted": true, "chaosValue": 45}]`,
	}}
	now := time.Unix(1_700_000_000, 0)
	r := newTestReconciler(n, &fakeWatch{})
	r.gems.WithClock(func() time.Time { return now })
	ctx := context.Background()

	rows, err := r.SkillGem(ctx, "Standard")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[1].Corrupt)

	rows[0].Name = "mutated"
	again, err := r.SkillGem(ctx, "Standard")
	require.NoError(t, err)
	assert.Equal(t, "Vaal Grace", again[0].Name, "callers get copies")
	assert.Equal(t, 1, n.Calls("item/SkillGem"))

	r.SetGemTTL(30 * time.Second)
	now = now.Add(time.Minute)
	_, err = r.SkillGem(ctx, "Standard")
	require.NoError(t, err)
	assert.Equal(t, 2, n.Calls("item/SkillGem"))
	assert.Equal(t, 30*time.Second, r.GemTTL())
}

func TestAllFetchesDenseOnceAndAbsorbsFragmentError(t *testing.T) {
	n := &fakeNinja{
		dense: `{"currencyOverviews": [{"type": "Currency", "lines": [{"name": "Divine Orb", "chaos": 200}]}],
			"itemOverviews": [{"type": "Oil", "lines": [{"name": "Golden Oil", "chaos": 20}]}]}`,
	}
	p, err := newTestReconciler(n, &fakeWatch{}).All(context.Background(), "Standard")
	require.NoError(t, err)
	assert.Equal(t, 1, n.Calls("dense"))
	assert.Empty(t, p.Fragment)
	require.Len(t, p.Currency, 1)
	require.Len(t, p.Oil, 1)
	assert.Equal(t, float32(20), *p.Oil[0].ChaosValue)
}

func TestMatrixRows(t *testing.T) {
	n := &fakeNinja{
		dense: `{"overviews": [
			{"type": "Currency", "lines": [{"name": "Divine Orb", "chaos": 200, "graph": [1, 2]}]},
			{"type": "Essence", "lines": [{"name": "Shrieking Essence of Greed", "chaos": 3}]}
		]}`,
		lines: map[string]string{
			"currency/Currency": `[{"currencyTypeName": "Divine Orb", "chaosEquivalent": 180}]`,
			"item/Map":          `[{"name": "Strand Map", "mapTier": 16, "chaosValue": 4}]`,
		},
	}
	w := &fakeWatch{lines: map[string]string{
		"currency": `[{"name": "divine orb", "mean": 190}]`,
		"map":      `[{"name": "Strand Map", "mapTier": 16, "mean": 5}]`,
	}}
	rows, err := newTestReconciler(n, w).Matrix(context.Background(), "Standard", false)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, models.CategoryCurrency, rows[0].Category)
	assert.Equal(t, float32(200), *rows[0].Dense)
	assert.Equal(t, []float64{1, 2}, rows[0].DenseGraph)
	assert.Equal(t, float32(180), *rows[0].CurrencyOverview)
	assert.Equal(t, float32(190), *rows[0].Poewatch)

	assert.Equal(t, models.CategoryEssence, rows[1].Category)
	require.NotNil(t, rows[1].Tier)
	assert.Equal(t, uint8(2), *rows[1].Tier)
	assert.Equal(t, "Shrieking", *rows[1].Variant)

	assert.Equal(t, models.CategoryMap, rows[2].Category)
	assert.Equal(t, uint8(16), *rows[2].Tier)
	assert.Equal(t, float32(4), *rows[2].ItemOverview)
	assert.Equal(t, float32(5), *rows[2].Poewatch)
	assert.Nil(t, rows[2].Dense)
}

// gatedNinja holds the dense fetch open until the sibling sources of the
// same reconciliation have been called, then fails it.
type gatedNinja struct {
	*fakeNinja
	siblings chan string
	reached  atomic.Bool
}

func (g *gatedNinja) CurrencyOverview(ctx context.Context, league, typ string) ([]feed.Line, error) {
	g.siblings <- "legacy"
	return g.fakeNinja.CurrencyOverview(ctx, league, typ)
}

func (g *gatedNinja) DenseOverviews(ctx context.Context, league string) (interface{}, error) {
	seen := make(map[string]bool)
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case s := <-g.siblings:
			seen[s] = true
		case <-timeout:
			return nil, errors.New("dense gave up waiting for the other sources")
		}
	}
	g.reached.Store(true)
	return nil, fmt.Errorf("%w: dense down", models.ErrUpstreamUnavailable)
}

type gatedWatch struct {
	*fakeWatch
	siblings chan string
}

func (g *gatedWatch) Items(ctx context.Context, league, category string, lowConfidence bool) ([]feed.Line, error) {
	g.siblings <- "watch"
	return g.fakeWatch.Items(ctx, league, category, lowConfidence)
}

func TestSlowSourceDoesNotBlockOthers(t *testing.T) {
	siblings := make(chan string, 4)
	n := &gatedNinja{
		fakeNinja: &fakeNinja{lines: map[string]string{
			"currency/Currency": `[{"currencyTypeName": "Divine Orb", "chaosEquivalent": 180}]`,
		}},
		siblings: siblings,
	}
	w := &gatedWatch{
		fakeWatch: &fakeWatch{lines: map[string]string{
			"currency": `[{"name": "Mirror of Kalandra", "mean": 90000}]`,
		}},
		siblings: siblings,
	}

	rows, err := NewReconciler(n, w, nil, time.Minute).Currency(context.Background(), "Standard")
	require.NoError(t, err)
	assert.True(t, n.reached.Load(), "legacy and third feeds run while the dense fetch is pending")

	v, ok := namedValue(rows, "Divine Orb")
	require.True(t, ok)
	assert.Equal(t, float32(180), *v)
	v, ok = namedValue(rows, "Mirror of Kalandra")
	require.True(t, ok)
	assert.Equal(t, float32(90000), *v)
}
