package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pierrec/lz4/v4"
)

// SnapshotSummary holds the metadata for a saved table.
type SnapshotSummary struct {
	ID        int64
	Rev       int
	Mode      string // "free" or "pro"
	Label     string // optional
	CreatedAt time.Time
	RowCount  int
}

// SnapshotFull is a snapshot with its decoded payload.
type SnapshotFull struct {
	SnapshotSummary
	Payload []byte
}

// CreateSnapshot stores payload as the next revision for mode. Payloads are
// lz4 block-compressed when that makes them smaller. Returns the assigned rev.
func CreateSnapshot(db *sql.DB, mode string, payload []byte, rowCount int, label string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rev int
	err = tx.QueryRow("SELECT COALESCE(MAX(rev), 0) + 1 FROM snapshots WHERE mode = ?", mode).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("compute next rev: %w", err)
	}

	var labelVal any
	if label != "" {
		labelVal = label
	}

	blob, compressed, err := compress(payload)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(
		"INSERT INTO snapshots (rev, mode, label, row_count, raw_size, compressed, payload) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rev, mode, labelVal, rowCount, len(payload), compressed, blob,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return rev, nil
}

// ListSnapshots returns snapshot metadata, newest first. An empty mode lists
// every mode.
func ListSnapshots(db *sql.DB, mode string) ([]SnapshotSummary, error) {
	query := "SELECT id, rev, mode, label, created_at, row_count FROM snapshots"
	var args []any
	if mode != "" {
		query += " WHERE mode = ?"
		args = append(args, mode)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var result []SnapshotSummary
	for rows.Next() {
		var s SnapshotSummary
		var label sql.NullString
		if err := rows.Scan(&s.ID, &s.Rev, &s.Mode, &label, &s.CreatedAt, &s.RowCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Label = label.String
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return result, nil
}

// GetSnapshot loads a snapshot by mode and rev and decompresses its payload.
func GetSnapshot(db *sql.DB, mode string, rev int) (*SnapshotFull, error) {
	var s SnapshotFull
	var label sql.NullString
	var rawSize int
	var compressed bool
	var blob []byte
	err := db.QueryRow(
		"SELECT id, rev, mode, label, created_at, row_count, raw_size, compressed, payload FROM snapshots WHERE mode = ? AND rev = ?",
		mode, rev,
	).Scan(&s.ID, &s.Rev, &s.Mode, &label, &s.CreatedAt, &s.RowCount, &rawSize, &compressed, &blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot rev %d not found for mode %q", rev, mode)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	s.Label = label.String

	if !compressed {
		s.Payload = blob
		return &s, nil
	}
	s.Payload, err = decompress(blob, rawSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot rev %d: %w", rev, err)
	}
	return &s, nil
}

// GetLatestSnapshot returns the newest snapshot for mode, or nil if there is none.
func GetLatestSnapshot(db *sql.DB, mode string) (*SnapshotFull, error) {
	var rev int
	err := db.QueryRow(
		"SELECT rev FROM snapshots WHERE mode = ? ORDER BY rev DESC LIMIT 1",
		mode,
	).Scan(&rev)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest rev: %w", err)
	}
	return GetSnapshot(db, mode, rev)
}

// DeleteSnapshot removes a single revision.
func DeleteSnapshot(db *sql.DB, mode string, rev int) error {
	res, err := db.Exec("DELETE FROM snapshots WHERE mode = ? AND rev = ?", mode, rev)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot rev %d not found for mode %q", rev, mode)
	}
	return nil
}

func compress(src []byte) ([]byte, bool, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, false, fmt.Errorf("lz4 compress: %w", err)
	}
	// n == 0 means the block is incompressible.
	if n == 0 || n >= len(src) {
		return src, false, nil
	}
	return dst[:n], true, nil
}

func decompress(src []byte, rawSize int) ([]byte, error) {
	dst := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return dst[:n], nil
}
