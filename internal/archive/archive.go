// Package archive keeps every scan-history entry in SQLite. The state file
// only carries the newest entries; the archive is what long-range trends
// and the history command read.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id         TEXT NOT NULL UNIQUE,
	scanned_at      INTEGER NOT NULL,
	lang            TEXT NOT NULL DEFAULT '',
	overall_score   REAL NOT NULL,
	strict_score    REAL NOT NULL,
	open_findings   INTEGER NOT NULL,
	entry           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_history_scanned_at ON scan_history(scanned_at);
`

// Archive is a SQLite-backed scan history archive.
type Archive struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record stores one history entry. Recording the same scan ID twice is a no-op.
func (a *Archive) Record(ctx context.Context, e types.ScanHistoryEntry) error {
	if e.ScanID == "" {
		return fmt.Errorf("history entry has no scan id")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("serializing history entry: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO scan_history
			(scan_id, scanned_at, lang, overall_score, strict_score, open_findings, entry)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ScanID, e.Timestamp.UnixMilli(), e.Lang, e.OverallScore, e.StrictScore, e.Open, string(payload))
	if err != nil {
		return fmt.Errorf("recording scan %s: %w", e.ScanID, err)
	}
	return nil
}

// Count returns the number of archived scans.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting archived scans: %w", err)
	}
	return n, nil
}

// Recent returns up to limit entries, oldest first. limit <= 0 returns all.
func (a *Archive) Recent(ctx context.Context, limit int) ([]types.ScanHistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT entry FROM (
			SELECT id, scanned_at, entry FROM scan_history
			ORDER BY scanned_at DESC, id DESC
			LIMIT ?
		) ORDER BY scanned_at ASC, id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var out []types.ScanHistoryEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		var e types.ScanHistoryEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding archived entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Trend compares the oldest and newest of the last window scans.
type Trend struct {
	Scans         int       `json:"scans"`
	Since         time.Time `json:"since"`
	OverallDelta  float64   `json:"overall_delta"`
	StrictDelta   float64   `json:"strict_delta"`
	OpenDelta     int       `json:"open_delta"`
	BestOverall   float64   `json:"best_overall"`
	WorstOverall  float64   `json:"worst_overall"`
	LatestOverall float64   `json:"latest_overall"`
}

// Trend summarizes the last window archived scans. ok is false when fewer
// than two scans are archived.
func (a *Archive) Trend(ctx context.Context, window int) (Trend, bool, error) {
	entries, err := a.Recent(ctx, window)
	if err != nil {
		return Trend{}, false, err
	}
	if len(entries) < 2 {
		return Trend{Scans: len(entries)}, false, nil
	}
	first, last := entries[0], entries[len(entries)-1]
	t := Trend{
		Scans:         len(entries),
		Since:         first.Timestamp,
		OverallDelta:  round1(last.OverallScore - first.OverallScore),
		StrictDelta:   round1(last.StrictScore - first.StrictScore),
		OpenDelta:     last.Open - first.Open,
		BestOverall:   first.OverallScore,
		WorstOverall:  first.OverallScore,
		LatestOverall: last.OverallScore,
	}
	for _, e := range entries {
		t.BestOverall = max(t.BestOverall, e.OverallScore)
		t.WorstOverall = min(t.WorstOverall, e.OverallScore)
	}
	return t, true, nil
}

// Prune deletes scans older than retention, always keeping the newest keep
// scans. retention <= 0 disables pruning. It returns the rows deleted.
func (a *Archive) Prune(ctx context.Context, retention time.Duration, keep int, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-retention).UnixMilli()
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM scan_history
		WHERE scanned_at < ?
		  AND id NOT IN (
			SELECT id FROM scan_history ORDER BY scanned_at DESC, id DESC LIMIT ?
		  )`, cutoff, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning archive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning archive: %w", err)
	}
	return n, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
