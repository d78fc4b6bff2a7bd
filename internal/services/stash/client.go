// Package stash is the client for the account stash API.
package stash

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"poe-wealth/internal/models"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL   = "https://api.pathofexile.com"
	DefaultUserAgent = "OAuth poe-wealth/1.0"
	sessionIDLength  = 32
)

type Client struct {
	baseURL string
	token   string
	client  *resty.Client
}

func NewClient(baseURL, token, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		client:  client,
	}
}

// request attaches credentials. A 32-character token is a POESESSID session
// cookie; anything else is an OAuth bearer token.
func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	if len(c.token) == sessionIDLength {
		req.SetHeader("Cookie", "POESESSID="+c.token)
	} else if c.token != "" {
		req.SetAuthToken(c.token)
	}
	return req
}

// Tab fetches one tab with items. substashID selects a child of a folder tab.
func (c *Client) Tab(ctx context.Context, league, stashID string, substashID *string) (*models.TabWithItems, error) {
	path := fmt.Sprintf("%s/stash/%s/%s", c.baseURL, url.PathEscape(league), url.PathEscape(stashID))
	if substashID != nil && *substashID != "" {
		path += "/" + url.PathEscape(*substashID)
	}

	resp, err := c.request(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stash %s: %v", models.ErrUpstreamUnavailable, stashID, err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var body struct {
		Stash models.TabWithItems `json:"stash"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: decode stash %s: %v", models.ErrUpstreamUnavailable, stashID, err)
	}
	log.Printf("stash tab %s (%s): %d items", stashID, league, len(body.Stash.AllItems()))
	return &body.Stash, nil
}

// Stashes lists the tabs of league without their items.
func (c *Client) Stashes(ctx context.Context, league string) (*models.TabNoItems, error) {
	resp, err := c.request(ctx).Get(fmt.Sprintf("%s/stash/%s", c.baseURL, url.PathEscape(league)))
	if err != nil {
		return nil, fmt.Errorf("%w: stashes: %v", models.ErrUpstreamUnavailable, err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var tabs models.TabNoItems
	if err := json.Unmarshal(resp.Body(), &tabs); err != nil {
		return nil, fmt.Errorf("%w: decode stashes: %v", models.ErrUpstreamUnavailable, err)
	}
	return &tabs, nil
}

func checkResponse(resp *resty.Response) error {
	if ra := resp.Header().Get("Retry-After"); ra != "" {
		secs, err := strconv.ParseUint(strings.TrimSpace(ra), 10, 32)
		if err != nil {
			secs = 60
		}
		return &models.RateLimitedError{RetryAfter: uint32(secs)}
	}
	if state := resp.Header().Get("X-Rate-Limit-Account-State"); state != "" {
		log.Printf("stash rate limit: %s state=%s", resp.Header().Get("X-Rate-Limit-Account"), state)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		msg := strings.TrimSpace(string(resp.Body()))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return fmt.Errorf("%w: %s", models.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return &models.RateLimitedError{RetryAfter: 60}
	}
	return fmt.Errorf("%w: stash API returned HTTP %d", models.ErrUpstreamUnavailable, resp.StatusCode())
}
