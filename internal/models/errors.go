package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrMalformedCache      = errors.New("malformed cache")
	ErrNoDataForMarket     = errors.New("no prices for league")
	ErrPersistence         = errors.New("persistence failure")
	ErrInvalidLeague       = errors.New("invalid league")
)

const maxLeagueLength = 128

// CheckLeague rejects league names that cannot name a price file or a URL
// segment: empty, overlong, containing a path separator, ".." or control
// characters.
func CheckLeague(league string) error {
	switch {
	case strings.TrimSpace(league) == "":
		return fmt.Errorf("%w: empty", ErrInvalidLeague)
	case len(league) > maxLeagueLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidLeague, maxLeagueLength)
	case strings.ContainsAny(league, `/\`), strings.Contains(league, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidLeague, league)
	case strings.IndexFunc(league, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: control character in %q", ErrInvalidLeague, league)
	}
	return nil
}

// RateLimitedError is returned by the stash API when it answers with a
// Retry-After header.
type RateLimitedError struct {
	RetryAfter uint32
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("you have reached the limit, retry after %d seconds", e.RetryAfter)
}

// StashTabError identifies the tab that failed during a snapshot.
type StashTabError struct {
	League  string
	StashID string
	Err     error
}

func (e *StashTabError) Error() string {
	return fmt.Sprintf("stash tab %s (league %s): %v", e.StashID, e.League, e.Err)
}

func (e *StashTabError) Unwrap() error { return e.Err }

// NoDataError wraps ErrNoDataForMarket with the league it concerns.
func NoDataError(league string) error {
	return fmt.Errorf("%w %s", ErrNoDataForMarket, league)
}

// ErrorKind renders err as one of the taxonomy kinds returned to API clients.
func ErrorKind(err error) string {
	var rl *RateLimitedError
	var st *StashTabError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rl):
		return "retryAfterError"
	case errors.Is(err, ErrUnauthorized):
		return "authError"
	case errors.Is(err, ErrInvalidLeague):
		return "invalidLeague"
	case errors.As(err, &st):
		return "stashTabError"
	case errors.Is(err, ErrNoDataForMarket):
		return "noDataForMarket"
	case errors.Is(err, ErrMalformedCache):
		return "malformedCache"
	case errors.Is(err, ErrPersistence):
		return "persistenceError"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstreamUnavailable"
	}
	return "internalError"
}
