package reporting

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

	"github.com/picogrid/swarm-autonomy/pkg/logger"
)

// IndexFile is the run index file name inside an output directory
const IndexFile = "runs.db"

// RunIndex is a SQLite catalogue of runs and their events. Writes go through
// a single goroutine; event writes are dropped when it falls behind, the
// recording remains the complete record.
type RunIndex struct {
	db *sql.DB

	ch   chan indexReq
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

// RunRow is one run in the index
type RunRow struct {
	RunID            string
	Simulation       string
	Seed             int64
	StartedAt        time.Time
	EndedAt          time.Time
	Ticks            int64
	SimTimeMs        int64
	Reason           string
	Agents           int
	Targets          int
	TargetsDestroyed int
	ReportPath       string
}

type indexReq struct {
	event *SimulationEvent
	run   *RunRow
}

// OpenRunIndex opens or creates the index at path
func OpenRunIndex(path string) (*RunIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty index path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initIndexPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure index: %w", err)
	}
	if err := initIndexSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}

	idx := &RunIndex{
		db: db,
		ch: make(chan indexReq, 65536),
	}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		idx.loop()
	}()
	return idx, nil
}

func initIndexPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
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

func initIndexSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			simulation TEXT NOT NULL,
			seed INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			sim_time_ms INTEGER NOT NULL,
			reason TEXT NOT NULL,
			agents INTEGER NOT NULL,
			targets INTEGER NOT NULL,
			targets_destroyed INTEGER NOT NULL,
			report_path TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			time_ms INTEGER NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			agent_id INTEGER NOT NULL,
			target_id INTEGER NOT NULL,
			message TEXT NOT NULL,
			details_json TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(run_id, type, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_agent ON events(run_id, agent_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Record implements EventSink. It never blocks.
func (idx *RunIndex) Record(ev SimulationEvent) error {
	if idx == nil || idx.closed.Load() {
		return nil
	}
	select {
	case idx.ch <- indexReq{event: &ev}:
	default:
		if n := idx.dropped.Add(1); n == 1 {
			logger.Warn("Run index falling behind, dropping events")
		}
	}
	return nil
}

// RecordRun queues the run's summary row
func (idx *RunIndex) RecordRun(row RunRow) {
	if idx == nil || idx.closed.Load() {
		return
	}
	idx.ch <- indexReq{run: &row}
}

// Dropped returns how many events were not indexed
func (idx *RunIndex) Dropped() int64 { return idx.dropped.Load() }

// Close drains pending writes and closes the database
func (idx *RunIndex) Close() error {
	var err error
	idx.once.Do(func() {
		idx.closed.Store(true)
		close(idx.ch)
		idx.wg.Wait()
		err = idx.db.Close()
	})
	return err
}

func (idx *RunIndex) loop() {
	ctx := context.Background()

	insertEvent, err := idx.db.Prepare(`INSERT OR REPLACE INTO events(run_id,seq,tick,time_ms,type,severity,agent_id,target_id,message,details_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		logger.Errorf("Run index disabled: %v", err)
		for range idx.ch {
		}
		return
	}
	defer insertEvent.Close()

	const batchSize = 512
	batch := make([]indexReq, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		tx, err := idx.db.BeginTx(ctx, nil)
		if err != nil {
			logger.Warnf("Run index write failed: %v", err)
			batch = batch[:0]
			return
		}
		stmt := tx.Stmt(insertEvent)
		for _, r := range batch {
			if r.event != nil {
				ev := r.event
				var details []byte
				if len(ev.Details) > 0 {
					details, _ = json.Marshal(ev.Details)
				}
				if _, err := stmt.Exec(ev.RunID, ev.Seq, ev.Tick, ev.TimeMs, ev.Type, ev.Severity, ev.AgentID, ev.TargetID, ev.Message, string(details)); err != nil {
					logger.Warnf("Run index event insert failed: %v", err)
				}
			}
			if r.run != nil {
				if err := insertRun(tx, r.run); err != nil {
					logger.Warnf("Run index run insert failed: %v", err)
				}
			}
		}
		if err := tx.Commit(); err != nil {
			logger.Warnf("Run index commit failed: %v", err)
		}
		batch = batch[:0]
	}

	for r := range idx.ch {
		batch = append(batch, r)
		// Drain whatever is already queued before committing
		for len(batch) < batchSize {
			select {
			case next, ok := <-idx.ch:
				if !ok {
					flush()
					return
				}
				batch = append(batch, next)
				continue
			default:
			}
			break
		}
		flush()
	}
	flush()
}

func insertRun(tx *sql.Tx, r *RunRow) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO runs(run_id,simulation,seed,started_at,ended_at,ticks,sim_time_ms,reason,agents,targets,targets_destroyed,report_path) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Simulation, r.Seed,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.EndedAt.UTC().Format(time.RFC3339Nano),
		r.Ticks, r.SimTimeMs, r.Reason, r.Agents, r.Targets, r.TargetsDestroyed, r.ReportPath)
	return err
}

// RecentRuns returns up to limit runs, newest first. It may be called while
// the writer is running.
func (idx *RunIndex) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := idx.db.QueryContext(ctx, `SELECT run_id,simulation,seed,started_at,ended_at,ticks,sim_time_ms,reason,agents,targets,targets_destroyed,COALESCE(report_path,'') FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var started, ended string
		if err := rows.Scan(&r.RunID, &r.Simulation, &r.Seed, &started, &ended, &r.Ticks, &r.SimTimeMs, &r.Reason, &r.Agents, &r.Targets, &r.TargetsDestroyed, &r.ReportPath); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// EventCounts returns the number of indexed events of each type for a run
func (idx *RunIndex) EventCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := idx.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM events WHERE run_id=? GROUP BY type`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
