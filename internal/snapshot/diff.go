package snapshot

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lotas/tradersecho/internal/reconcile"
)

// DiffResult holds the changes between two stored tables, or between a
// stored table and the current one.
type DiffResult struct {
	Mode    string
	RevFrom int
	RevTo   int // 0 means the current table
	reconcile.Changes
}

// Diff compares two stored revisions of mode.
func Diff(db *sql.DB, mode string, revFrom, revTo int) (*DiffResult, error) {
	from, fromSnap, err := Load(db, mode, revFrom)
	if err != nil {
		return nil, err
	}
	to, toSnap, err := Load(db, mode, revTo)
	if err != nil {
		return nil, err
	}
	return &DiffResult{
		Mode:    mode,
		RevFrom: fromSnap.Rev,
		RevTo:   toSnap.Rev,
		Changes: reconcile.Diff(from, to),
	}, nil
}

// DiffAgainstCurrent compares a stored revision with current. rev 0 means the
// latest snapshot.
func DiffAgainstCurrent(db *sql.DB, mode string, rev int, current reconcile.Table) (*DiffResult, error) {
	from, snap, err := Load(db, mode, rev)
	if err != nil {
		return nil, err
	}
	return &DiffResult{
		Mode:    mode,
		RevFrom: snap.Rev,
		Changes: reconcile.Diff(from, current),
	}, nil
}

// FormatDiff returns a human-readable string representation of a DiffResult.
func FormatDiff(d *DiffResult) string {
	var sb strings.Builder
	if d.RevTo == 0 {
		fmt.Fprintf(&sb, "Diff %s snapshot #%d against current\n", d.Mode, d.RevFrom)
	} else {
		fmt.Fprintf(&sb, "Diff %s snapshot #%d against #%d\n", d.Mode, d.RevFrom, d.RevTo)
	}
	sb.WriteString(reconcile.Format(d.Changes))
	return sb.String()
}
