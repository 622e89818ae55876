// Package indexdb maintains a queryable secondary index of the simulation in
// SQLite: tick statistics, the live notification ledger, and snapshot
// metadata. Writes go through a buffered channel into a single writer
// goroutine so the simulation loop never blocks on disk.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"wildern.gg/internal/persistence/snapshot"
	"wildern.gg/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqNotification
	reqSnapshot
	reqSync
)

type req struct {
	kind reqKind

	tick         world.TickSummary
	tickDuration time.Duration
	notification world.Notification
	snapshot     snapshotRow
	done         chan struct{}
}

type snapshotRow struct {
	GameDate   int64
	Path       string
	Seed       int64
	Characters int
	Items      int
	Locations  int
	Activities int
	Intents    int
	Tasks      int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: a busy tick can merge many notifications without
		// stalling the sim. JSONL logs remain the source of truth.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			game_date INTEGER PRIMARY KEY,
			intents_run INTEGER NOT NULL,
			intents_done INTEGER NOT NULL,
			activity_groups INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			duration_us INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY,
			recipient INTEGER NOT NULL,
			title_tag TEXT NOT NULL,
			title_params TEXT NOT NULL,
			count INTEGER NOT NULL,
			game_date INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_date ON notifications(recipient, game_date);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			game_date INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			characters INTEGER NOT NULL,
			items INTEGER NOT NULL,
			locations INTEGER NOT NULL,
			activities INTEGER NOT NULL,
			intents INTEGER NOT NULL,
			tasks INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(summary world.TickSummary, duration time.Duration) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: summary, tickDuration: duration}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

// WriteNotification upserts a notification row. The simulation merges repeats
// into one record by id, so an INSERT OR REPLACE keyed on id mirrors the
// in-memory dedupe exactly.
func (s *SQLiteIndex) WriteNotification(n world.Notification) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqNotification, notification: n}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		GameDate:   snap.GameDate,
		Path:       path,
		Seed:       snap.Seed,
		Characters: len(snap.Characters),
		Items:      len(snap.Items),
		Locations:  len(snap.Locations),
		Activities: len(snap.Activities),
		Intents:    len(snap.Intents),
		Tasks:      len(snap.Tasks),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// Flush blocks until every request enqueued before the call has been
// committed. Intended for tests and shutdown paths.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqSync, done: done}
	<-done
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(game_date,intents_run,intents_done,activity_groups,failures,duration_us,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertNotification, _ := s.db.Prepare(`INSERT OR REPLACE INTO notifications(id,recipient,title_tag,title_params,count,game_date,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(game_date,path,seed,characters,items,locations,activities,intents,tasks) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertNotification != nil {
			_ = insertNotification.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 500 * time.Millisecond
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					r.tick.GameDate,
					r.tick.IntentsRun,
					r.tick.IntentsDone,
					r.tick.ActivityGroups,
					r.tick.Failures,
					r.tickDuration.Microseconds(),
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqNotification:
			n := r.notification
			params, _ := json.Marshal(n.TitleParams)
			raw, _ := json.Marshal(n)
			if insertNotification != nil {
				if _, err := tx.Stmt(insertNotification).Exec(
					n.ID,
					n.Recipient,
					n.TitleTag,
					string(params),
					n.Count,
					n.GameDate,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					sn.GameDate,
					sn.Path,
					sn.Seed,
					sn.Characters,
					sn.Items,
					sn.Locations,
					sn.Activities,
					sn.Intents,
					sn.Tasks,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

// --- read side ---

// TickStats is an aggregate over the indexed tick history.
type TickStats struct {
	Ticks       int64 `json:"ticks"`
	IntentsRun  int64 `json:"intents_run"`
	IntentsDone int64 `json:"intents_done"`
	Failures    int64 `json:"failures"`
}

func (s *SQLiteIndex) TickStats(ctx context.Context) (TickStats, error) {
	var st TickStats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(intents_run),0), COALESCE(SUM(intents_done),0), COALESCE(SUM(failures),0)
		FROM ticks`)
	if err := row.Scan(&st.Ticks, &st.IntentsRun, &st.IntentsDone, &st.Failures); err != nil {
		return st, err
	}
	return st, nil
}

// RecentNotifications returns the newest notifications for a recipient,
// most recent game date first.
func (s *SQLiteIndex) RecentNotifications(ctx context.Context, recipient int64, limit int) ([]world.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_json FROM notifications WHERE recipient = ? ORDER BY game_date DESC, id DESC LIMIT ?`,
		recipient, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.Notification
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var n world.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// LatestSnapshotPath returns the newest indexed snapshot path ("" when none).
func (s *SQLiteIndex) LatestSnapshotPath(ctx context.Context) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT path FROM snapshots ORDER BY game_date DESC LIMIT 1`).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return path, err
}
