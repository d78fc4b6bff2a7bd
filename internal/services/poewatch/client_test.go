package poewatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"poe-wealth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemsIsCachedPerKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/get", r.URL.Path)
		assert.Equal(t, "Standard", r.URL.Query().Get("league"))
		w.Write([]byte(`[{"name": "Divine Orb", "mean": 190.5}, {"baseType": "Exalted Orb", "mean": 15}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, time.Minute)
	ctx := context.Background()

	lines, err := c.Items(ctx, "Standard", "currency", false)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Exalted Orb", lines[1].WatchName())

	_, err = c.Items(ctx, "Standard", "currency", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = c.Items(ctx, "Standard", "currency", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "lowConfidence is part of the key")

	c.ClearCache()
	_, err = c.Items(ctx, "Standard", "currency", false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestItemsRejectsNonArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "unknown league"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, time.Minute).Items(context.Background(), "Nope", "card", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
}

func TestItemsFailuresAreNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, time.Minute)
	_, err := c.Items(context.Background(), "Standard", "map", false)
	require.Error(t, err)

	lines, err := c.Items(context.Background(), "Standard", "map", false)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
