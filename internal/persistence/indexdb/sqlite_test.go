package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"wildern.gg/internal/persistence/snapshot"
	"wildern.gg/internal/sim/world"
)

func TestSQLiteIndex_TickRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.WriteTick(world.TickSummary{GameDate: 600, IntentsRun: 3, IntentsDone: 2, Failures: 1}, 420*time.Microsecond)
	_ = idx.WriteTick(world.TickSummary{GameDate: 1200, IntentsRun: 1, IntentsDone: 1}, 100*time.Microsecond)
	idx.Flush()

	stats, err := idx.TickStats(context.Background())
	if err != nil {
		t.Fatalf("TickStats: %v", err)
	}
	if stats.Ticks != 2 || stats.IntentsRun != 4 || stats.IntentsDone != 3 || stats.Failures != 1 {
		t.Fatalf("stats mismatch: %+v", stats)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var durUS int64
	if err := db.QueryRow(`SELECT duration_us FROM ticks WHERE game_date=600`).Scan(&durUS); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if durUS != 420 {
		t.Fatalf("duration_us = %d, want 420", durUS)
	}
}

func TestSQLiteIndex_NotificationUpsertMirrorsDedupe(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	n := world.Notification{
		ID: 7, TitleTag: "error_no_tool_for_activity",
		TitleParams: map[string]any{"tool_name": "axe"},
		Count:       1, Recipient: 12, GameDate: 600,
	}
	_ = idx.WriteNotification(n)
	n.Count = 2
	n.GameDate = 1200
	_ = idx.WriteNotification(n)
	idx.Flush()

	got, err := idx.RecentNotifications(context.Background(), 12, 10)
	if err != nil {
		t.Fatalf("RecentNotifications: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("merged notification must stay one row, got %d", len(got))
	}
	if got[0].Count != 2 || got[0].GameDate != 1200 {
		t.Fatalf("row not updated: %+v", got[0])
	}

	other, err := idx.RecentNotifications(context.Background(), 99, 10)
	if err != nil {
		t.Fatalf("RecentNotifications: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("recipient filter leaked rows: %+v", other)
	}
}

func TestSQLiteIndex_SnapshotMetadata(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	snap := snapshot.SnapshotV1{Seed: 42, GameDate: 3600}
	snap.Characters = append(snap.Characters, snapshot.CharacterV1{})
	idx.RecordSnapshot("/data/worlds/test/snap-000000003600.zst", snap)
	idx.RecordSnapshot("/data/worlds/test/snap-000000007200.zst", snapshot.SnapshotV1{Seed: 42, GameDate: 7200})
	idx.Flush()

	path, err := idx.LatestSnapshotPath(context.Background())
	if err != nil {
		t.Fatalf("LatestSnapshotPath: %v", err)
	}
	if path != "/data/worlds/test/snap-000000007200.zst" {
		t.Fatalf("latest path = %q", path)
	}
}
