package prices

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"poe-wealth/internal/models"
)

// State is the age classification of a cached price file. It is derived
// from the file mtime on every read and never persisted.
type State int

const (
	NoFile State = iota
	Invalid
	TooOld
	StillUsable
	UpToDate
)

func (s State) String() string {
	switch s {
	case UpToDate:
		return "UpToDate"
	case StillUsable:
		return "StillUsable"
	case TooOld:
		return "TooOld"
	case Invalid:
		return "Invalid"
	}
	return "NoFile"
}

const (
	DefaultUpToDate    = 20 * time.Minute
	DefaultStillUsable = 20 * time.Minute

	// BucketAll holds the full reconciled table of a league.
	BucketAll = "prices"
)

// Store keeps one JSON file per (league, bucket) under dir.
type Store struct {
	dir         string
	upToDate    time.Duration
	stillUsable time.Duration
	now         func() time.Time
}

func NewStore(dir string, upToDate, stillUsable time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create prices dir: %v", models.ErrPersistence, err)
	}
	if upToDate <= 0 {
		upToDate = DefaultUpToDate
	}
	if stillUsable < upToDate {
		stillUsable = upToDate
	}
	return &Store{dir: dir, upToDate: upToDate, stillUsable: stillUsable, now: time.Now}, nil
}

// Path is the file of (league, bucket). It fails for leagues that would
// resolve outside the store directory.
func (s *Store) Path(league, bucket string) (string, error) {
	if err := models.CheckLeague(league); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", league, bucket))
	if filepath.Dir(path) != filepath.Clean(s.dir) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidLeague, league)
	}
	return path, nil
}

// Read decodes the (league, bucket) file into v and classifies it. v holds
// usable data only for UpToDate and StillUsable. The returned age is zero
// unless the file could be dated.
func (s *Store) Read(league, bucket string, v interface{}) (State, time.Duration) {
	state, age, err := s.Load(league, bucket, v)
	if err != nil {
		log.Printf("price cache %s/%s: %v", league, bucket, err)
	}
	return state, age
}

// Load is Read with the cause of a NoFile or Invalid state. Unreadable or
// undecodable files wrap ErrMalformedCache.
func (s *Store) Load(league, bucket string, v interface{}) (State, time.Duration, error) {
	path, err := s.Path(league, bucket)
	if err != nil {
		return NoFile, 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NoFile, 0, nil
		}
		return NoFile, 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Invalid, 0, fmt.Errorf("%w: read %s: %v", models.ErrMalformedCache, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return Invalid, 0, fmt.Errorf("%w: decode %s: %v", models.ErrMalformedCache, path, err)
	}

	age := s.now().Sub(info.ModTime())
	switch {
	case age < 0:
		// mtime in the future
		return NoFile, 0, nil
	case age <= s.upToDate:
		return UpToDate, age, nil
	case age <= s.stillUsable:
		return StillUsable, age, nil
	}
	return TooOld, age, nil
}

// Persist overwrites the (league, bucket) file with v.
func (s *Store) Persist(league, bucket string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s prices: %v", models.ErrPersistence, league, err)
	}
	path, err := s.Path(league, bucket)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: write %s: %v", models.ErrPersistence, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: replace %s: %v", models.ErrPersistence, path, err)
	}
	return nil
}
