package storage

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "tradersecho.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != len(migrations) {
		t.Errorf("applied %d migrations, want %d", applied, len(migrations))
	}
}

func TestOpenDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "re.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := PutCredential(db, "token", "abc"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = OpenDB(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()
	got, err := GetCredential(db, "token")
	if err != nil || got != "abc" {
		t.Errorf("GetCredential after reopen = %q, %v", got, err)
	}
}

func TestCredentials(t *testing.T) {
	db := testDB(t)

	got, err := GetCredential(db, "token")
	if err != nil || got != "" {
		t.Fatalf("empty store: got %q, %v", got, err)
	}

	if err := PutCredential(db, "token", "t1"); err != nil {
		t.Fatalf("put t1: %v", err)
	}
	if err := PutCredential(db, "token", "t2"); err != nil {
		t.Fatalf("put t2: %v", err)
	}
	got, _ = GetCredential(db, "token")
	if got != "t2" {
		t.Errorf("got %q, want t2 (replace, no history)", got)
	}

	var n int
	db.QueryRow("SELECT COUNT(*) FROM credentials").Scan(&n)
	if n != 1 {
		t.Errorf("credential rows = %d, want 1", n)
	}

	if err := DeleteCredential(db, "token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeleteCredential(db, "token"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	got, _ = GetCredential(db, "token")
	if got != "" {
		t.Errorf("after delete got %q", got)
	}
}

func TestSnapshotRoundTripCompressed(t *testing.T) {
	db := testDB(t)

	payload := []byte(`[` + strings.Repeat(`{"ticker":"AAPL","mentions":10},`, 200) + `{"ticker":"TSLA","mentions":1}]`)
	rev, err := CreateSnapshot(db, "free", payload, 201, "morning")
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if rev != 1 {
		t.Errorf("rev = %d, want 1", rev)
	}

	var stored int
	db.QueryRow("SELECT length(payload) FROM snapshots WHERE rev = 1").Scan(&stored)
	if stored >= len(payload) {
		t.Errorf("stored %d bytes for %d byte payload, expected compression", stored, len(payload))
	}

	snap, err := GetSnapshot(db, "free", 1)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if !bytes.Equal(snap.Payload, payload) {
		t.Error("payload changed in round trip")
	}
	if snap.Label != "morning" || snap.RowCount != 201 || snap.Mode != "free" {
		t.Errorf("summary = %+v", snap.SnapshotSummary)
	}
}

func TestSnapshotIncompressiblePayload(t *testing.T) {
	db := testDB(t)
	payload := []byte(`[]`)
	if _, err := CreateSnapshot(db, "pro", payload, 0, ""); err != nil {
		t.Fatal(err)
	}
	snap, err := GetLatestSnapshot(db, "pro")
	if err != nil {
		t.Fatal(err)
	}
	if string(snap.Payload) != "[]" {
		t.Errorf("payload = %q", snap.Payload)
	}
}

func TestSnapshotRevsPerMode(t *testing.T) {
	db := testDB(t)

	CreateSnapshot(db, "free", []byte(`[]`), 0, "")
	CreateSnapshot(db, "free", []byte(`[]`), 0, "")
	rev, _ := CreateSnapshot(db, "pro", []byte(`[]`), 0, "")
	if rev != 1 {
		t.Errorf("first pro rev = %d, want 1", rev)
	}

	all, err := ListSnapshots(db, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("ListSnapshots(all) = %d, want 3", len(all))
	}
	free, _ := ListSnapshots(db, "free")
	if len(free) != 2 {
		t.Errorf("ListSnapshots(free) = %d, want 2", len(free))
	}

	latest, err := GetLatestSnapshot(db, "free")
	if err != nil || latest == nil || latest.Rev != 2 {
		t.Errorf("latest free = %+v, %v", latest, err)
	}

	none, err := GetLatestSnapshot(db, "nothing")
	if err != nil || none != nil {
		t.Errorf("latest of empty mode = %+v, %v", none, err)
	}
}

func TestDeleteSnapshot(t *testing.T) {
	db := testDB(t)
	CreateSnapshot(db, "free", []byte(`[]`), 0, "")

	if err := DeleteSnapshot(db, "free", 1); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if err := DeleteSnapshot(db, "free", 1); err == nil {
		t.Error("expected error deleting missing rev")
	}
	if _, err := GetSnapshot(db, "free", 1); err == nil {
		t.Error("expected error loading deleted rev")
	}
}
