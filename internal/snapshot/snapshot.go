// Package snapshot saves dashboard tables to the local database and
// compares them across revisions.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lotas/tradersecho/internal/applog"
	"github.com/lotas/tradersecho/internal/export"
	"github.com/lotas/tradersecho/internal/reconcile"
	"github.com/lotas/tradersecho/internal/storage"
)

// Create persists table as the next revision for mode. It first checks the
// latest snapshot for the mode and skips saving if the tables are identical.
// Returns the rev number, whether a new snapshot was created, the changes
// against the previous snapshot (nil if first), and error.
func Create(db *sql.DB, mode string, table reconcile.Table, label string) (rev int, created bool, changes *reconcile.Changes, err error) {
	latest, err := storage.GetLatestSnapshot(db, mode)
	if err != nil {
		return 0, false, nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	var prev reconcile.Table
	if latest != nil {
		prev, err = decode(latest.Payload)
		if err != nil {
			return 0, false, nil, fmt.Errorf("snapshot rev %d: %w", latest.Rev, err)
		}
		if prev.Equal(table) {
			applog.Info("snapshot.skipped", "mode", mode, "rev", latest.Rev)
			return latest.Rev, false, nil, nil
		}
	}

	payload, err := json.Marshal(export.Records(table.Rows()))
	if err != nil {
		return 0, false, nil, fmt.Errorf("encode snapshot: %w", err)
	}
	newRev, err := storage.CreateSnapshot(db, mode, payload, table.Len(), label)
	if err != nil {
		return 0, false, nil, err
	}
	applog.Info("snapshot.created", "rev", newRev, "rows", table.Len(), "mode", mode)

	if latest != nil {
		c := reconcile.Diff(prev, table)
		changes = &c
	}
	return newRev, true, changes, nil
}

// Load returns the table stored under mode and rev. rev 0 means the latest.
func Load(db *sql.DB, mode string, rev int) (reconcile.Table, *storage.SnapshotSummary, error) {
	var snap *storage.SnapshotFull
	var err error
	if rev == 0 {
		snap, err = storage.GetLatestSnapshot(db, mode)
		if err == nil && snap == nil {
			err = fmt.Errorf("no snapshots for mode %q", mode)
		}
	} else {
		snap, err = storage.GetSnapshot(db, mode, rev)
	}
	if err != nil {
		return reconcile.Table{}, nil, err
	}
	table, err := decode(snap.Payload)
	if err != nil {
		return reconcile.Table{}, nil, fmt.Errorf("snapshot rev %d: %w", snap.Rev, err)
	}
	return table, &snap.SnapshotSummary, nil
}

func decode(payload []byte) (reconcile.Table, error) {
	var recs []export.Record
	if err := json.Unmarshal(payload, &recs); err != nil {
		return reconcile.Table{}, fmt.Errorf("decode payload: %w", err)
	}
	return reconcile.Apply(reconcile.Empty(), export.Rows(recs)), nil
}
