package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StashType is the tab type reported by the stash API.
type StashType string

const (
	StashCurrency       StashType = "CurrencyStash"
	StashFragment       StashType = "FragmentStash"
	StashDivinationCard StashType = "DivinationCardStash"
	StashMap            StashType = "MapStash"
	StashEssence        StashType = "EssenceStash"
	StashOther          StashType = "Other"
)

// TabRef points at a stash tab, optionally a sub-tab of a folder/map tab.
type TabRef struct {
	StashID    string  `json:"stash_id" binding:"required"`
	SubstashID *string `json:"substash_id"`
}

// ItemProperty is a display property such as "Level" or "Map Tier". Values
// are [text, displayMode] pairs.
type ItemProperty struct {
	Name   string            `json:"name"`
	Values []json.RawMessage `json:"values"`
}

// Item is the subset of a stash item the wealth engine reads.
type Item struct {
	ID         string         `json:"id,omitempty"`
	BaseType   string         `json:"baseType"`
	TypeLine   string         `json:"typeLine"`
	StackSize  *uint32        `json:"stackSize,omitempty"`
	Corrupted  bool           `json:"corrupted,omitempty"`
	Properties []ItemProperty `json:"properties,omitempty"`
}

// Quantity is the stack size, defaulting to 1 for unstackable items.
func (i Item) Quantity() uint32 {
	if i.StackSize == nil {
		return 1
	}
	return *i.StackSize
}

// GemLevel reads the "Level" property; 0 when absent.
func (i Item) GemLevel() uint8 { return i.propertyNumber("Level") }

// GemQuality reads the "Quality" property ("+20%" -> 20); 0 when absent.
func (i Item) GemQuality() uint8 { return i.propertyNumber("Quality") }

// MapTier reads the "Map Tier" property; 0 when absent.
func (i Item) MapTier() uint8 { return i.propertyNumber("Map Tier") }

func (i Item) propertyNumber(name string) uint8 {
	for _, p := range i.Properties {
		if p.Name != name || len(p.Values) == 0 {
			continue
		}
		var pair []json.RawMessage
		if err := json.Unmarshal(p.Values[0], &pair); err != nil || len(pair) == 0 {
			return 0
		}
		var text string
		if err := json.Unmarshal(pair[0], &text); err != nil {
			return 0
		}
		return leadingNumber(text)
	}
	return 0
}

// leadingNumber extracts the first run of digits, e.g. "+20% (augmented)" -> 20
// or "20 (Max)" -> 20. Values above 255 saturate.
func leadingNumber(text string) uint8 {
	start := strings.IndexFunc(text, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0
	}
	end := start
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(text[start:end])
	if err != nil {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}

// TabWithItems is a stash tab together with its contents.
type TabWithItems struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Type     StashType      `json:"type"`
	Index    *int           `json:"index,omitempty"`
	Items    []Item         `json:"items"`
	Children []TabWithItems `json:"children,omitempty"`
}

// Kind defaults unknown or empty tab types to StashOther.
func (t TabWithItems) Kind() StashType {
	switch t.Type {
	case StashCurrency, StashFragment, StashDivinationCard, StashMap, StashEssence:
		return t.Type
	}
	return StashOther
}

// AllItems flattens the tab and any children it carries.
func (t TabWithItems) AllItems() []Item {
	if len(t.Children) == 0 {
		return t.Items
	}
	out := append([]Item(nil), t.Items...)
	for _, c := range t.Children {
		out = append(out, c.AllItems()...)
	}
	return out
}

// NoItemsTab is one entry of the stash index.
type NoItemsTab struct {
	ID       string       `json:"id"`
	Parent   string       `json:"parent,omitempty"`
	Name     string       `json:"name"`
	Type     StashType    `json:"type"`
	Index    *int         `json:"index,omitempty"`
	Children []NoItemsTab `json:"children,omitempty"`
}

// TabNoItems is the stash index of a league.
type TabNoItems struct {
	Stashes []NoItemsTab `json:"stashes"`
}
