package stash

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"poe-wealth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tabBody = `{"stash": {"id": "abc", "name": "Currency", "type": "CurrencyStash", "items": [
	{"baseType": "Divine Orb", "typeLine": "Divine Orb", "stackSize": 3},
	{"baseType": "Vaal Grace", "typeLine": "Vaal Grace", "corrupted": true,
	 "properties": [{"name": "Level", "values": [["20 (Max)", 0]]}, {"name": "Quality", "values": [["+20%", 1]]}]}
]}}`

func TestTabDecodesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stash/Standard/abc/sub1", r.URL.Path)
		assert.Equal(t, "Bearer oauth-token", r.Header.Get("Authorization"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(tabBody))
	}))
	defer srv.Close()

	sub := "sub1"
	tab, err := NewClient(srv.URL, "oauth-token", "test-agent", time.Second).Tab(context.Background(), "Standard", "abc", &sub)
	require.NoError(t, err)
	assert.Equal(t, models.StashCurrency, tab.Kind())
	require.Len(t, tab.Items, 2)
	assert.Equal(t, uint32(3), tab.Items[0].Quantity())
	assert.Equal(t, uint32(1), tab.Items[1].Quantity())
	assert.Equal(t, uint8(20), tab.Items[1].GemLevel())
	assert.Equal(t, uint8(20), tab.Items[1].GemQuality())
	assert.True(t, tab.Items[1].Corrupted)
}

func TestSessionTokenIsSentAsCookie(t *testing.T) {
	token := strings.Repeat("a", 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POESESSID="+token, r.Header.Get("Cookie"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"stashes": [{"id": "abc", "name": "Currency", "type": "CurrencyStash"}]}`))
	}))
	defer srv.Close()

	tabs, err := NewClient(srv.URL, token, "", time.Second).Stashes(context.Background(), "Standard")
	require.NoError(t, err)
	require.Len(t, tabs.Stashes, 1)
	assert.Equal(t, "abc", tabs.Stashes[0].ID)
}

func TestRetryAfterHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t", "", time.Second).Tab(context.Background(), "Standard", "abc", nil)
	var rl *models.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, uint32(2), rl.RetryAfter)
	assert.Equal(t, "retryAfterError", models.ErrorKind(err))
}

func TestUnauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte("invalid_token"))
		}))

		_, err := NewClient(srv.URL, "t", "", time.Second).Stashes(context.Background(), "Standard")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrUnauthorized))
		assert.Contains(t, err.Error(), "invalid_token")
		srv.Close()
	}
}

func TestServerErrorIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t", "", time.Second).Tab(context.Background(), "Standard", "abc", nil)
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
}
