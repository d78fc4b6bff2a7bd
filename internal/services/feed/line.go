// Package feed wraps the loosely-typed JSON lines returned by the upstream
// price feeds. Each provider spells its fields differently; the accessors
// below hold the fallback order for every field so callers never test keys
// directly.
package feed

import "strings"

// Line is one decoded JSON object from a feed.
type Line map[string]interface{}

// Lines converts a decoded JSON array into lines, skipping non-objects.
func Lines(raw []interface{}) []Line {
	out := make([]Line, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, Line(m))
		}
	}
	return out
}

// Str returns the first key holding a string.
func (l Line) Str(keys ...string) string {
	for _, k := range keys {
		if s, ok := l[k].(string); ok {
			return s
		}
	}
	return ""
}

// Float returns the first key holding a JSON number. Numeric strings are
// not accepted.
func (l Line) Float(keys ...string) *float32 {
	for _, k := range keys {
		if f, ok := l[k].(float64); ok {
			v := float32(f)
			return &v
		}
	}
	return nil
}

// Uint8 returns the first non-negative integer under keys, or 0.
func (l Line) Uint8(keys ...string) uint8 {
	for _, k := range keys {
		f, ok := l[k].(float64)
		if !ok || f < 0 || f != float64(int64(f)) {
			continue
		}
		if f > 255 {
			return 255
		}
		return uint8(f)
	}
	return 0
}

func (l Line) Bool(key string) bool {
	b, _ := l[key].(bool)
	return b
}

// Dense feed: {name, chaos|chaosValue, graph}.
func (l Line) DenseName() string    { return l.Str("name") }
func (l Line) DenseChaos() *float32 { return l.Float("chaos", "chaosValue") }

// Legacy currency overview: {currencyTypeName|name, chaosEquivalent|chaosValue}.
func (l Line) CurrencyName() string    { return l.Str("currencyTypeName", "name") }
func (l Line) CurrencyChaos() *float32 { return l.Float("chaosEquivalent", "chaosValue") }

// Legacy item overview: {name, chaosValue}.
func (l Line) ItemName() string    { return l.Str("name") }
func (l Line) ItemChaos() *float32 { return l.Float("chaosValue") }

// Third feed: {name|baseType, mean|chaosValue|chaos|value}.
func (l Line) WatchName() string    { return l.Str("name", "baseType") }
func (l Line) WatchChaos() *float32 { return l.Float("mean", "chaosValue", "chaos", "value") }

func (l Line) MapTier() uint8    { return l.Uint8("mapTier", "tier") }
func (l Line) GemLevel() uint8   { return l.Uint8("gemLevel") }
func (l Line) GemQuality() uint8 { return l.Uint8("gemQuality") }
func (l Line) Corrupted() bool   { return l.Bool("corrupted") }

// Variant is nil when the line has no string variant.
func (l Line) Variant() *string {
	if s, ok := l["variant"].(string); ok {
		return &s
	}
	return nil
}

// Graph is the sparkline history of a dense line; nil when absent.
func (l Line) Graph() []float64 {
	arr, ok := l["graph"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, v := range arr {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Norm is the fallback matching form of a name: trimmed and lower-cased.
func Norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
