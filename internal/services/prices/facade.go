package prices

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"poe-wealth/internal/models"
	"poe-wealth/internal/services/notify"
)

// Fetcher reconciles the full table of a league.
type Fetcher interface {
	All(ctx context.Context, league string) (models.Prices, error)
	Category(ctx context.Context, league string, c models.Category) (models.Prices, error)
}

// PriceCache is the single owner of the in-memory price tables and the
// on-disk price files. Callers always receive copies.
type PriceCache struct {
	mu       sync.Mutex
	store    *Store
	fetcher  Fetcher
	notifier notify.Notifier
	byLeague map[string]models.Prices
}

func NewPriceCache(store *Store, fetcher Fetcher, notifier notify.Notifier) *PriceCache {
	if notifier == nil {
		notifier = notify.NoOp{}
	}
	return &PriceCache{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		byLeague: make(map[string]models.Prices),
	}
}

// Get always returns a table for league, possibly empty. Once a league is
// loaded into memory it is served from there for the life of the process.
func (c *PriceCache) Get(ctx context.Context, league string) models.Prices {
	if err := models.CheckLeague(league); err != nil {
		log.Printf("prices: %v", err)
		return models.Prices{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.byLeague[league]; ok {
		return p.Clone()
	}

	var cached models.Prices
	state, age := c.store.Read(league, BucketAll, &cached)
	switch state {
	case UpToDate:
		return cached
	case StillUsable:
		p, err := c.fetchAndUpdate(ctx, league)
		if err != nil {
			minutes := math.Round(age.Minutes())
			c.notifier.Notify(notify.Toast(notify.VariantWarning, fmt.Sprintf(
				"Prices are not up-to-date, but still usable (%.0f minutes old). Unable to load new prices.", minutes)))
			return cached
		}
		return p
	}

	p, err := c.fetchAndUpdate(ctx, league)
	if err != nil {
		log.Printf("prices for %s unavailable (%s): %v", league, state, err)
		c.notifier.Notify(notify.Toast(notify.VariantWarning, fmt.Sprintf(
			"%v Unable to load prices for league %s. Skip price-dependant calculations.", err, league)))
		return models.Prices{}
	}
	return p
}

// fetchAndUpdate must be called with mu held. A table that reconciled but
// could not be written to disk is kept in memory and reported.
func (c *PriceCache) fetchAndUpdate(ctx context.Context, league string) (models.Prices, error) {
	p, err := c.fetcher.All(ctx, league)
	if err != nil {
		return models.Prices{}, err
	}
	if err := c.store.Persist(league, BucketAll, p); err != nil {
		log.Printf("failed to persist prices for %s: %v", league, err)
		c.notifier.Notify(notify.Toast(notify.VariantDanger, fmt.Sprintf("Failed to save prices for league %s: %v", league, err)))
	}
	c.byLeague[league] = p
	return p.Clone(), nil
}

// Category serves one category through its own freshness bucket. A fresh
// file is returned as-is; otherwise the category is reconciled and written
// back. A still-usable file covers a failed reconciliation.
func (c *PriceCache) Category(ctx context.Context, league string, category models.Category) (models.Prices, error) {
	if err := models.CheckLeague(league); err != nil {
		return models.Prices{}, err
	}
	bucket := string(category)

	c.mu.Lock()
	defer c.mu.Unlock()

	var cached models.Prices
	state, age := c.store.Read(league, bucket, &cached)
	if state == UpToDate {
		return cached, nil
	}

	p, err := c.fetcher.Category(ctx, league, category)
	if err != nil {
		if state == StillUsable {
			c.notifier.Notify(notify.Toast(notify.VariantWarning, fmt.Sprintf(
				"%s prices are not up-to-date, but still usable (%.0f minutes old).", category, math.Round(age.Minutes()))))
			return cached, nil
		}
		return models.Prices{}, err
	}
	if err := c.store.Persist(league, bucket, p); err != nil {
		return p, err
	}
	return p, nil
}

// Forget drops the in-memory table of league so the next Get consults the
// freshness store again.
func (c *PriceCache) Forget(league string) {
	c.mu.Lock()
	delete(c.byLeague, league)
	c.mu.Unlock()
}
