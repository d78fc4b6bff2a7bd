package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"poe-wealth/internal/cache"
	"poe-wealth/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultListTTL   = 60 * time.Second
	DefaultListLimit = 10
)

// SnapshotStore is the append-only snapshot history. List results are
// memoized by query shape; any write drops the whole memo.
type SnapshotStore struct {
	db   *gorm.DB
	list *cache.TTL[string, []models.WealthSnapshot]
}

func NewSnapshotStore(db *gorm.DB, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &SnapshotStore{
		db:   db,
		list: cache.NewTTL[string, []models.WealthSnapshot](ttl),
	}
}

func (s *SnapshotStore) Append(ctx context.Context, snap *models.WealthSnapshot) (uint, error) {
	blob, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("%w: encode snapshot: %v", models.ErrPersistence, err)
	}
	rec := models.SnapshotRecord{
		Timestamp:    snap.Timestamp,
		League:       snap.League,
		TotalChaos:   snap.TotalChaos,
		TotalDivines: snap.TotalDivines,
		JSON:         string(blob),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("%w: insert snapshot: %v", models.ErrPersistence, err)
	}
	s.list.Clear()
	return rec.ID, nil
}

func listKey(q models.SnapshotQuery) string {
	bound := func(v *int64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprint(*v)
	}
	return fmt.Sprintf("%s:%s:%s:%d:%d", q.League, bound(q.Start), bound(q.End), q.Limit, q.Offset)
}

func (s *SnapshotStore) scoped(ctx context.Context, q models.SnapshotQuery) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.SnapshotRecord{}).Where("league = ?", q.League)
	if q.Start != nil {
		tx = tx.Where("timestamp >= ?", *q.Start)
	}
	if q.End != nil {
		tx = tx.Where("timestamp <= ?", *q.End)
	}
	return tx
}

// List returns snapshots newest first. Limit defaults to 10.
func (s *SnapshotStore) List(ctx context.Context, q models.SnapshotQuery) ([]models.WealthSnapshot, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	key := listKey(q)
	if cached, ok := s.list.Get(key); ok {
		return cloneSnapshots(cached), nil
	}
	gen := s.list.Generation()

	var rows []models.SnapshotRecord
	err := s.scoped(ctx, q).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list snapshots: %v", models.ErrPersistence, err)
	}

	out := make([]models.WealthSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, decodeRecord(r))
	}
	// an Append or Delete that landed during the query cleared the memo
	s.list.SetIf(key, cloneSnapshots(out), gen)
	return out, nil
}

func cloneSnapshots(in []models.WealthSnapshot) []models.WealthSnapshot {
	out := make([]models.WealthSnapshot, len(in))
	for i, snap := range in {
		out[i] = snap.Clone()
	}
	return out
}

// decodeRecord yields a zeroed snapshot of the row's league when its JSON
// cannot be read.
func decodeRecord(r models.SnapshotRecord) models.WealthSnapshot {
	var snap models.WealthSnapshot
	if err := json.Unmarshal([]byte(r.JSON), &snap); err != nil {
		log.Printf("Snapshot %d has malformed json: %v", r.ID, err)
		return models.WealthSnapshot{League: r.League, ByCategory: map[string]models.CategoryTotals{}}
	}
	return snap
}

func (s *SnapshotStore) Count(ctx context.Context, q models.SnapshotQuery) (int64, error) {
	var n int64
	if err := s.scoped(ctx, q).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%w: count snapshots: %v", models.ErrPersistence, err)
	}
	return n, nil
}

// Delete removes every snapshot of league, or all snapshots when league is
// empty, and returns the number of rows removed.
func (s *SnapshotStore) Delete(ctx context.Context, league string) (int64, error) {
	tx := s.db.WithContext(ctx)
	if league != "" {
		tx = tx.Where("league = ?", league)
	} else {
		tx = tx.Where("1 = 1")
	}
	res := tx.Delete(&models.SnapshotRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: delete snapshots: %v", models.ErrPersistence, res.Error)
	}
	s.list.Clear()
	return res.RowsAffected, nil
}

func (s *SnapshotStore) ClearCache() {
	s.list.Clear()
}

// WithClock swaps the memo's time source.
func (s *SnapshotStore) WithClock(now func() time.Time) *SnapshotStore {
	s.list.WithClock(now)
	return s
}
