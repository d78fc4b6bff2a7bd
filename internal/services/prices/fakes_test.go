package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"poe-wealth/internal/models"
	"poe-wealth/internal/services/feed"
)

// fakeNinja serves canned lines keyed by "currency/<type>" or "item/<type>".
type fakeNinja struct {
	mu       sync.Mutex
	dense    string
	denseErr error
	lines    map[string]string
	calls    map[string]int
}

func (f *fakeNinja) count(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[key]++
}

func (f *fakeNinja) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeNinja) DenseOverviews(ctx context.Context, league string) (interface{}, error) {
	f.count("dense")
	if f.denseErr != nil {
		return nil, f.denseErr
	}
	if f.dense == "" {
		return nil, fmt.Errorf("%w: no dense", models.ErrUpstreamUnavailable)
	}
	var v interface{}
	if err := json.Unmarshal([]byte(f.dense), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (f *fakeNinja) overview(key string) ([]feed.Line, error) {
	f.count(key)
	raw, ok := f.lines[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUpstreamUnavailable, key)
	}
	var arr []interface{}
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil, err
	}
	return feed.Lines(arr), nil
}

func (f *fakeNinja) CurrencyOverview(ctx context.Context, league, typ string) ([]feed.Line, error) {
	return f.overview("currency/" + typ)
}

func (f *fakeNinja) ItemOverview(ctx context.Context, league, typ string) ([]feed.Line, error) {
	return f.overview("item/" + typ)
}

type fakeWatch struct {
	lines map[string]string
}

func (f *fakeWatch) Items(ctx context.Context, league, category string, lowConfidence bool) ([]feed.Line, error) {
	raw, ok := f.lines[category]
	if !ok {
		return nil, fmt.Errorf("%w: watch %s", models.ErrUpstreamUnavailable, category)
	}
	var arr []interface{}
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil, err
	}
	return feed.Lines(arr), nil
}

func namedValue(rows []models.NamedPrice, name string) (*float32, bool) {
	for _, r := range rows {
		if r.Name == name {
			return r.ChaosValue, true
		}
	}
	return nil, false
}
