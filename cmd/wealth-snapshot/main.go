package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"poe-wealth/internal/app"
	"poe-wealth/internal/config"
	"poe-wealth/internal/models"
	"poe-wealth/internal/services/notify"

	"github.com/joho/godotenv"
)

var (
	league   = flag.String("league", "Standard", "league to snapshot")
	tabs     = flag.String("tabs", "", "comma separated stash ids, id:substash for sub-tabs")
	interval = flag.Duration("interval", 0, "snapshot period, 0 takes a single snapshot")
)

func main() {
	flag.Parse()
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	refs := parseTabs(*tabs)
	if len(refs) == 0 {
		log.Fatal("-tabs is required")
	}

	a, err := app.New(config.Load(), notify.Log{})
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *interval <= 0 {
		if err := takeSnapshot(ctx, a, refs); err != nil {
			log.Fatalf("Snapshot failed: %v", err)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	iteration := 0
	for {
		iteration++
		log.Printf("[run #%d] %s", iteration, time.Now().Format("2006-01-02 15:04:05"))
		if err := takeSnapshot(ctx, a, refs); err != nil {
			log.Printf("Snapshot failed (%s): %v", models.ErrorKind(err), err)
		}
		select {
		case <-ctx.Done():
			log.Println("Shutting down")
			return
		case <-ticker.C:
		}
	}
}

func parseTabs(s string) []models.TabRef {
	var refs []models.TabRef
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, sub, found := strings.Cut(part, ":")
		ref := models.TabRef{StashID: id}
		if found && sub != "" {
			ref.SubstashID = &sub
		}
		refs = append(refs, ref)
	}
	return refs
}

func takeSnapshot(ctx context.Context, a *app.App, refs []models.TabRef) error {
	s, err := a.Wealth.Snapshot(ctx, *league, refs)
	if err != nil {
		return err
	}

	categories := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	if s.TotalDivines != nil {
		log.Printf("%s: %.1f chaos (%.2f divines)", s.League, s.TotalChaos, *s.TotalDivines)
	} else {
		log.Printf("%s: %.1f chaos", s.League, s.TotalChaos)
	}
	for _, c := range categories {
		log.Printf("  %-10s %10.1f", c, s.ByCategory[c].Chaos)
	}
	return nil
}
