package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"wildern.gg/internal/persistence/indexdb"
	persistlog "wildern.gg/internal/persistence/log"
	"wildern.gg/internal/persistence/snapshot"
	"wildern.gg/internal/sim/tuning"
	"wildern.gg/internal/sim/world"
	"wildern.gg/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		speed   = flag.Int64("speed", 60, "game seconds advanced per wall-clock second")
		clockMS = flag.Int64("clock_ms", 250, "wall-clock resolution of the game clock loop, in milliseconds")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)
	snapDir := filepath.Join(worldDir, "snapshots")

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	// Optional: read-model index (does not affect sim determinism).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	notifLog := persistlog.NewNotificationLogger(worldDir)
	defer tickLog.Close()
	defer notifLog.Close()

	obsSrv := observer.NewServer(logger)

	// Set by the clock loop before each scheduler pass; read by the OnTick
	// hook. Both run on the clock goroutine.
	var passStarted time.Time
	var workTicks int
	hooks := world.Hooks{
		OnTick: func(s world.TickSummary) {
			workTicks++
			if err := tickLog.WriteTick(s); err != nil {
				logger.Printf("tick log: %v", err)
			}
			if idx != nil {
				_ = idx.WriteTick(s, time.Since(passStarted))
			}
			obsSrv.PublishTick(s)
		},
		OnNotification: func(n world.Notification) {
			if err := notifLog.WriteNotification(n); err != nil {
				logger.Printf("notification log: %v", err)
			}
			if idx != nil {
				_ = idx.WriteNotification(n)
			}
			obsSrv.PublishNotification(n)
		},
	}

	// Create world (fresh or resumed from snapshot).
	var w *world.World
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		latest, err := snapshot.Latest(snapDir)
		if err != nil {
			logger.Fatalf("scan snapshots: %v", err)
		}
		snapshotToLoad = latest
	}

	if snapshotToLoad != "" {
		snap, err := snapshot.ReadFile(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		w, err = world.NewFromSnapshot(snap, hooks)
		if err != nil {
			logger.Fatalf("resume world: %v", err)
		}
		logger.Printf("resumed from snapshot=%s game_date=%d", filepath.Base(snapshotToLoad), w.GameDate())
	} else {
		w = world.New(world.Config{ID: *worldID, Seed: *seed}, tune, hooks)
		if _, err := w.ScheduleTask(&world.WorkProcessAction{}, tune.WorkIntervalSec, tune.WorkIntervalSec); err != nil {
			logger.Fatalf("schedule work process: %v", err)
		}
		if _, err := w.ScheduleTask(&world.DecayProcessAction{}, tune.DecayIntervalSec, tune.DecayIntervalSec); err != nil {
			logger.Fatalf("schedule decay process: %v", err)
		}
		logger.Printf("fresh world id=%s seed=%d", *worldID, *seed)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Clock loop. The world is single-writer: everything that touches it runs
	// on this goroutine.
	clockDone := make(chan struct{})
	go func() {
		defer close(clockDone)

		writeSnapshot := func() {
			snap := w.BuildSnapshot()
			path := filepath.Join(snapDir, snapshot.FileName(snap.GameDate))
			if err := snapshot.WriteFile(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				return
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
			logger.Printf("snapshot %s", filepath.Base(path))
		}

		baseDate := w.GameDate()
		start := time.Now()
		ticker := time.NewTicker(time.Duration(*clockMS) * time.Millisecond)
		defer ticker.Stop()

		lastSnapshotTicks := workTicks

		for {
			select {
			case <-ctx.Done():
				writeSnapshot()
				return
			case <-ticker.C:
				now := baseDate + int64(time.Since(start).Seconds())*(*speed)
				passStarted = time.Now()
				if err := w.RunDueTasks(now); err != nil {
					logger.Printf("tick aborted: %v", err)
					cancel()
					return
				}
				if tune.SnapshotEveryTicks > 0 && workTicks-lastSnapshotTicks >= tune.SnapshotEveryTicks {
					writeSnapshot()
					lastSnapshotTicks = workTicks
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/observer/ws", obsSrv.WSHandler())

	if idx != nil {
		mux.HandleFunc("/admin/v1/stats", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			stats, err := idx.TickStats(r.Context())
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(struct {
				WorldID  string            `json:"world_id"`
				GameDate int64             `json:"game_date"`
				Stats    indexdb.TickStats `json:"stats"`
			}{*worldID, w.GameDate(), stats})
		})
		mux.HandleFunc("/admin/v1/notifications", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			var recipient int64
			fmt.Sscanf(r.URL.Query().Get("recipient"), "%d", &recipient)
			got, err := idx.RecentNotifications(r.Context(), recipient, 100)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(got)
		})
	}

	if envBool("WG_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (WG_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		<-clockDone // final snapshot before the listener goes away
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
