// Package ninja fetches the dense multi-category blob and the legacy
// per-category overviews.
package ninja

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"poe-wealth/internal/models"
	"poe-wealth/internal/services/feed"

	"github.com/PaesslerAG/jsonpath"
	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://poe.ninja/api/data"

type Client struct {
	baseURL string
	client  *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &Client{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrUpstreamUnavailable, path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: %s returned HTTP %d", models.ErrUpstreamUnavailable, path, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrUpstreamUnavailable, path, err)
	}
	return nil
}

// DenseOverviews returns the raw dense blob for league. Its shape varies;
// use DenseCategories to read it.
func (c *Client) DenseOverviews(ctx context.Context, league string) (interface{}, error) {
	var blob interface{}
	if err := c.get(ctx, "/denseoverviews", map[string]string{"league": league, "language": "en"}, &blob); err != nil {
		return nil, err
	}
	return blob, nil
}

type overview struct {
	Lines []interface{} `json:"lines"`
}

// CurrencyOverview returns the lines of the legacy currency overview for
// typ ("Currency" or "Fragment").
func (c *Client) CurrencyOverview(ctx context.Context, league, typ string) ([]feed.Line, error) {
	var ov overview
	if err := c.get(ctx, "/currencyoverview", map[string]string{"league": league, "type": typ}, &ov); err != nil {
		return nil, err
	}
	return feed.Lines(ov.Lines), nil
}

// ItemOverview returns the lines of the legacy item overview for typ
// ("Oil", "Map", "SkillGem", ...).
func (c *Client) ItemOverview(ctx context.Context, league, typ string) ([]feed.Line, error) {
	var ov overview
	if err := c.get(ctx, "/itemoverview", map[string]string{"league": league, "type": typ}, &ov); err != nil {
		return nil, err
	}
	return feed.Lines(ov.Lines), nil
}

// DenseCategories groups the dense blob into type -> lines. The blob may be
// {currencyOverviews, itemOverviews} (merged, lines appended per type),
// {overviews} or a bare array of {type, lines}. An "overviews" array or a
// bare array replaces a type's lines rather than appending.
func DenseCategories(blob interface{}) map[string][]feed.Line {
	out := make(map[string][]feed.Line)
	if blob == nil {
		return out
	}

	for _, path := range []string{"$.currencyOverviews[*]", "$.itemOverviews[*]"} {
		for t, lines := range overviewsAt(blob, path) {
			out[t] = append(out[t], lines...)
		}
	}

	var replace map[string][]feed.Line
	if _, isArray := blob.([]interface{}); isArray {
		replace = overviewsAt(blob, "$[*]")
	} else {
		replace = overviewsAt(blob, "$.overviews[*]")
	}
	for t, lines := range replace {
		out[t] = lines
	}
	return out
}

func overviewsAt(blob interface{}, path string) map[string][]feed.Line {
	found := make(map[string][]feed.Line)
	v, err := jsonpath.Get(path, blob)
	if err != nil {
		return found
	}
	items, ok := v.([]interface{})
	if !ok {
		return found
	}
	for _, item := range items {
		cat, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		t, ok := cat["type"].(string)
		if !ok {
			continue
		}
		raw, ok := cat["lines"].([]interface{})
		if !ok {
			continue
		}
		found[t] = append(found[t], feed.Lines(raw)...)
	}
	if len(found) > 0 {
		log.Printf("dense %s: %d categories", path, len(found))
	}
	return found
}
