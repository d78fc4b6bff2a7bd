package poewatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"poe-wealth/internal/cache"
	"poe-wealth/internal/models"
	"poe-wealth/internal/services/feed"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.poe.watch"
	DefaultTTL     = 10 * time.Minute
)

// Category names used by the third feed, per priced category.
var Categories = map[models.Category]string{
	models.CategoryCurrency:       "currency",
	models.CategoryFragment:       "fragment",
	models.CategoryDivinationCard: "card",
	models.CategoryMap:            "map",
	models.CategoryEssence:        "essence",
	models.CategoryOil:            "oil",
	models.CategoryIncubator:      "incubator",
	models.CategoryFossil:         "fossil",
	models.CategoryResonator:      "resonator",
	models.CategoryDeliriumOrb:    "deliriumorb",
	models.CategoryVial:           "vial",
	models.CategorySkillGem:       "gem",
}

type cacheKey struct {
	league        string
	category      string
	lowConfidence bool
}

// Client queries api.poe.watch and memoizes responses per
// (league, category, lowConfidence).
type Client struct {
	baseURL string
	client  *resty.Client
	cache   *cache.TTL[cacheKey, []feed.Line]
}

func NewClient(baseURL string, timeout, ttl time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := resty.New()
	client.SetTimeout(timeout)

	return &Client{
		baseURL: baseURL,
		client:  client,
		cache:   cache.NewTTL[cacheKey, []feed.Line](ttl),
	}
}

// Items returns every listing of category in league. The lowConfidence flag
// is forwarded to the API and is part of the cache key.
func (c *Client) Items(ctx context.Context, league, category string, lowConfidence bool) ([]feed.Line, error) {
	key := cacheKey{league: league, category: category, lowConfidence: lowConfidence}
	if lines, ok := c.cache.Get(key); ok {
		return lines, nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"league":        league,
			"category":      category,
			"lowConfidence": strconv.FormatBool(lowConfidence),
		}).
		Get(c.baseURL + "/get")
	if err != nil {
		return nil, fmt.Errorf("%w: poe.watch %s: %v", models.ErrUpstreamUnavailable, category, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: poe.watch %s returned HTTP %d", models.ErrUpstreamUnavailable, category, resp.StatusCode())
	}

	var raw []interface{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("%w: poe.watch %s: expected array: %v", models.ErrUpstreamUnavailable, category, err)
	}
	lines := feed.Lines(raw)
	c.cache.Set(key, lines)
	return lines, nil
}

// ClearCache drops all memoized responses.
func (c *Client) ClearCache() { c.cache.Clear() }
