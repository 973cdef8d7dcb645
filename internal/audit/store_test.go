package audit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"toolbridge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	store, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "audit.db")
	store, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}

func TestNewSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	first, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := first.Record(context.Background(), domain.AuditEntry{ID: "a", Tool: "get_weather", Outcome: "success"}); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer second.Close()

	entries, err := second.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry after reopen, got %d", len(entries))
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []domain.AuditEntry{
		{ID: "id-1", Tool: "get_weather", Outcome: "success", DurationMS: 42, CreatedAt: base},
		{ID: "id-2", Tool: "save_file", Outcome: "invalid_arguments", Message: "invalid_arguments: filename is required", DurationMS: 1, CreatedAt: base.Add(time.Second)},
		{ID: "id-3", Tool: "get_github_issues", Outcome: "upstream_error", Message: "upstream_error: github returned 500: boom", DurationMS: 120, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range records {
		if err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) failed: %v", r.ID, err)
		}
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Newest first.
	if entries[0].ID != "id-3" || entries[2].ID != "id-1" {
		t.Errorf("wrong order: got %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
	if entries[0].Message != "upstream_error: github returned 500: boom" {
		t.Errorf("message not preserved: %q", entries[0].Message)
	}
	if entries[2].Message != "" {
		t.Errorf("expected empty message for success entry, got %q", entries[2].Message)
	}
	if entries[0].DurationMS != 120 {
		t.Errorf("duration not preserved: %d", entries[0].DurationMS)
	}
}

func TestRecent_Limit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := domain.AuditEntry{
			ID:        string(rune('a' + i)),
			Tool:      "read_file",
			Outcome:   "success",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Record(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}

	// Non-positive limit falls back to the default.
	entries, err = store.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Errorf("expected all 5 entries with default limit, got %d", len(entries))
	}
}

func TestRecord_FillsCreatedAt(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, domain.AuditEntry{ID: "x", Tool: "list_files", Outcome: "success"}); err != nil {
		t.Fatal(err)
	}

	entries, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("CreatedAt was not filled in")
	}
}

func TestCountByOutcome(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	outcomes := []string{"success", "success", "success", "upstream_error", "invalid_arguments"}
	for i, outcome := range outcomes {
		entry := domain.AuditEntry{
			ID:      string(rune('a' + i)),
			Tool:    "get_notion_notes",
			Outcome: outcome,
		}
		if err := store.Record(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := store.CountByOutcome(ctx)
	if err != nil {
		t.Fatalf("CountByOutcome failed: %v", err)
	}
	if counts["success"] != 3 {
		t.Errorf("expected 3 successes, got %d", counts["success"])
	}
	if counts["upstream_error"] != 1 {
		t.Errorf("expected 1 upstream_error, got %d", counts["upstream_error"])
	}
	if counts["invalid_arguments"] != 1 {
		t.Errorf("expected 1 invalid_arguments, got %d", counts["invalid_arguments"])
	}
}
