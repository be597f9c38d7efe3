package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"scenesmith/internal/ledger"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)

	entries := []ledger.Entry{
		{RecordedAt: base, ProjectDir: "/p/a", ProjectName: "a", Command: "advance", FromPhase: "plan", ToPhase: "review", RunCount: 1},
		{RecordedAt: base.Add(time.Minute), ProjectDir: "/p/a", Command: "advance", FromPhase: "training", ToPhase: "training", ErrorKind: "retryable", Message: "ack missing", RunCount: 2},
		{RecordedAt: base.Add(2 * time.Minute), ProjectDir: "/p/b", Command: "ingest", FromPhase: "plan", ToPhase: "plan"},
	}
	for _, entry := range entries {
		if _, err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.List(ctx, "/p/a", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].FromPhase != "training" || !got[0].Failed() || got[0].Message != "ack missing" {
		t.Fatalf("unexpected newest entry %+v", got[0])
	}
	if got[1].ProjectName != "a" || got[1].Failed() || !got[1].RecordedAt.Equal(base) {
		t.Fatalf("unexpected oldest entry %+v", got[1])
	}

	all, err := store.List(ctx, "", 1)
	if err != nil || len(all) != 1 || all[0].ProjectDir != "/p/b" {
		t.Fatalf("limited list: %+v %v", all, err)
	}

	stats, err := store.Stats(ctx, "/p/a")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Attempts != 2 || stats.Failures != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Record(context.Background(), ledger.Entry{ProjectDir: "/p", Command: "init", FromPhase: "init", ToPhase: "init"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = store.Close()

	reopened, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.List(context.Background(), "/p", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected persisted entry, got %v %v", got, err)
	}
	if got[0].RecordedAt.IsZero() {
		t.Fatal("RecordedAt not stamped")
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := ledger.Open("  "); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := ledger.Open(path); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
