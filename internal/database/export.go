package database

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"poe-wealth/internal/models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Snapshots"

// Export writes every snapshot of league as an XLSX workbook, newest first,
// with one column per category seen in the history.
func (s *SnapshotStore) Export(ctx context.Context, league string, w io.Writer) error {
	var rows []models.SnapshotRecord
	err := s.scoped(ctx, models.SnapshotQuery{League: league}).
		Order("timestamp DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("%w: export snapshots: %v", models.ErrPersistence, err)
	}

	snaps := make([]models.WealthSnapshot, len(rows))
	seen := make(map[string]struct{})
	for i, r := range rows {
		snaps[i] = decodeRecord(r)
		for c := range snaps[i].ByCategory {
			seen[c] = struct{}{}
		}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	header := []interface{}{"id", "timestamp", "time", "league", "total_chaos", "total_divines"}
	for _, c := range categories {
		header = append(header, c)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}

	for i, r := range rows {
		var divines interface{} = ""
		if r.TotalDivines != nil {
			divines = float64(*r.TotalDivines)
		}
		line := []interface{}{
			r.ID,
			r.Timestamp,
			time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
			r.League,
			float64(r.TotalChaos),
			divines,
		}
		for _, c := range categories {
			line = append(line, float64(snaps[i].ByCategory[c].Chaos))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &line); err != nil {
			return err
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
