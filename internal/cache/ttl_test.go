package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestTTLGetSet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTL[string, int](time.Minute).WithClock(clock.now)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clock.t = clock.t.Add(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clock.t = clock.t.Add(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry should expire after ttl")
}

func TestTTLSetTTLAppliesToExisting(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTL[string, string](15 * time.Minute).WithClock(clock.now)
	c.Set("gem", "x")

	clock.t = clock.t.Add(5 * time.Minute)
	c.SetTTL(time.Minute)
	_, ok := c.Get("gem")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, c.TTL())
}

func TestTTLClear(t *testing.T) {
	c := NewTTL[int, int](time.Hour)
	c.Set(1, 1)
	c.Set(2, 2)
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestTTLSetIfDropsValueComputedBeforeClear(t *testing.T) {
	c := NewTTL[string, int](time.Hour)

	gen := c.Generation()
	assert.True(t, c.SetIf("k", 1, gen))

	stale := c.Generation()
	c.Clear()
	assert.False(t, c.SetIf("k", 2, stale))
	_, ok := c.Get("k")
	assert.False(t, ok)

	assert.True(t, c.SetIf("k", 3, c.Generation()))
	v, _ := c.Get("k")
	assert.Equal(t, 3, v)
}
