// Package app assembles the price, stash and snapshot services from config.
package app

import (
	"fmt"

	"poe-wealth/internal/api"
	"poe-wealth/internal/config"
	"poe-wealth/internal/database"
	"poe-wealth/internal/services/ninja"
	"poe-wealth/internal/services/notify"
	"poe-wealth/internal/services/poewatch"
	"poe-wealth/internal/services/prices"
	"poe-wealth/internal/services/stash"
	"poe-wealth/internal/services/wealth"

	"gorm.io/gorm"
)

type App struct {
	DB         *gorm.DB
	Reconciler *prices.Reconciler
	Prices     *prices.PriceCache
	Stash      *stash.Client
	Snapshots  *database.SnapshotStore
	Wealth     *wealth.Aggregator
}

func New(cfg *config.Config, notifier notify.Notifier) (*App, error) {
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store, err := prices.NewStore(cfg.PricesDir, cfg.PricesUpToDate, cfg.PricesStillUsable)
	if err != nil {
		return nil, fmt.Errorf("failed to open price cache: %w", err)
	}

	reconciler := prices.NewReconciler(
		ninja.NewClient(cfg.NinjaAPIURL, cfg.HTTPTimeout),
		poewatch.NewClient(cfg.PoewatchAPIURL, cfg.HTTPTimeout, cfg.PoewatchTTL),
		nil,
		cfg.GemPricesTTL,
	)
	cache := prices.NewPriceCache(store, reconciler, notifier)
	stashes := stash.NewClient(cfg.PoeAPIURL, cfg.PoeAccessToken, cfg.PoeUserAgent, cfg.HTTPTimeout)
	snapshots := database.NewSnapshotStore(db, cfg.SnapshotCacheTTL)

	return &App{
		DB:         db,
		Reconciler: reconciler,
		Prices:     cache,
		Stash:      stashes,
		Snapshots:  snapshots,
		Wealth: wealth.NewAggregator(cache, stashes, snapshots, wealth.Options{
			TabDelay:   cfg.StashTabDelay,
			MaxRetries: cfg.StashMaxRetries,
		}),
	}, nil
}

func (a *App) Services() api.Services {
	return api.Services{
		Prices:    a.Prices,
		Matrix:    a.Reconciler,
		Stashes:   a.Stash,
		Wealth:    a.Wealth,
		Snapshots: a.Snapshots,
	}
}
