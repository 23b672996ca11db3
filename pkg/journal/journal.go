// Package journal records replay runs in a SQLite database so a replay can be
// audited after the fact: which targets were attempted, at which stage they
// failed and the exact plan each one received.
package journal

import (
	"context"
	"crypto/rand"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/oklog/ulid/v2"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/logger"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Target statuses
const (
	TargetApplied = "applied"
	TargetPlanned = "planned"
	TargetFailed  = "failed"
)

// Run is one invocation of the replay over a set of targets
type Run struct {
	ID         string
	Kind       string
	Topology   string
	Mode       string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string

	// Filled by GetRun and ListRuns
	Attempted int
	Failed    int
	Targets   []TargetRecord
}

// TargetRecord is the outcome of one target within a run
type TargetRecord struct {
	RunID        string
	Target       string
	Kind         string
	SessionID    string
	Stage        string
	Status       string
	ErrorCode    string
	ErrorMessage string
	Sent         int
	Total        int
	PlanText     string
	Warnings     []string
	RecordedAt   time.Time
}

// Journal is the SQLite-backed replay journal
type Journal struct {
	db        *sql.DB
	path      string
	log       *logger.Logger
	closeOnce sync.Once
}

// Open opens (creating if needed) the journal database at path and applies
// pending schema migrations
func Open(ctx context.Context, path string, log *logger.Logger) (*Journal, error) {
	if log == nil {
		log = logger.Discard()
	}
	if path == "" {
		return nil, errors.JournalError("journal path is empty", nil)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, errors.JournalError("failed to create journal directory", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_txlock=immediate&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, errors.JournalError("failed to open journal", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	var pragmas []string
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.JournalError("failed to set pragma "+pragma, err)
		}
	}

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, errors.JournalError("failed to migrate journal", err)
	}

	log.Debug("Journal opened", "path", path)
	return &Journal{db: db, path: path, log: log}, nil
}

// Close closes the database; it is safe to call more than once
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		err = j.db.Close()
	})
	return err
}

// Path returns the database path
func (j *Journal) Path() string { return j.path }

func (j *Journal) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.JournalError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.JournalError("failed to commit transaction", err)
	}
	return nil
}

// newRunID returns a sortable ULID
func newRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// BeginRun records the start of a run and returns it with a fresh ULID
func (j *Journal) BeginRun(ctx context.Context, kind, topology, mode string, dryRun bool) (*Run, error) {
	run := &Run{
		ID:        newRunID(),
		Kind:      kind,
		Topology:  topology,
		Mode:      mode,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, topology, mode, dry_run, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Kind, run.Topology, run.Mode, boolToInt(dryRun), run.StartedAt, run.Status)
	if err != nil {
		return nil, errors.JournalError("failed to record run start", err)
	}

	j.log.Debug("Run started", "run_id", run.ID, "kind", kind, "dry_run", dryRun)
	return run, nil
}

// RecordTarget stores the outcome of one target
func (j *Journal) RecordTarget(ctx context.Context, rec *TargetRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO targets (run_id, target, kind, session_id, stage, status, error_code,
			error_message, sent, total, plan_text, warnings, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Target, rec.Kind, rec.SessionID, rec.Stage, rec.Status, rec.ErrorCode,
		rec.ErrorMessage, rec.Sent, rec.Total, rec.PlanText, strings.Join(rec.Warnings, "\n"), rec.RecordedAt)
	if err != nil {
		return errors.JournalError("failed to record target "+rec.Target, err)
	}
	return nil
}

// FinishRun closes a run with the given status
func (j *Journal) FinishRun(ctx context.Context, runID, status string) error {
	return j.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET finished_at = ?, status = ? WHERE run_id = ?
		`, time.Now().UTC(), status, runID)
		if err != nil {
			return errors.JournalError("failed to record run end", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.JournalError("failed to record run end", err)
		}
		if n == 0 {
			return errors.JournalError("run not found: "+runID, nil)
		}
		return nil
	})
}

const runColumns = `
	r.run_id, r.kind, r.topology, r.mode, r.dry_run, r.started_at, r.finished_at, r.status,
	(SELECT COUNT(*) FROM targets t WHERE t.run_id = r.run_id),
	(SELECT COUNT(*) FROM targets t WHERE t.run_id = r.run_id AND t.status = 'failed')`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run      Run
		dryRun   int
		finished sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.Kind, &run.Topology, &run.Mode, &dryRun,
		&run.StartedAt, &finished, &run.Status, &run.Attempted, &run.Failed); err != nil {
		return nil, err
	}
	run.DryRun = dryRun != 0
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		ORDER BY r.run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.JournalError("failed to list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.JournalError("failed to scan run", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.JournalError("failed to list runs", err)
	}
	return runs, nil
}

// GetRun returns a run with its target records in recording order
func (j *Journal) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := scanRun(j.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		WHERE r.run_id = ?
	`, runID))
	if err == sql.ErrNoRows {
		return nil, errors.JournalError("run not found: "+runID, err)
	}
	if err != nil {
		return nil, errors.JournalError("failed to get run", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, target, kind, session_id, stage, status, error_code, error_message,
			sent, total, plan_text, warnings, recorded_at
		FROM targets
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, errors.JournalError("failed to get run targets", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec      TargetRecord
			warnings string
		)
		if err := rows.Scan(&rec.RunID, &rec.Target, &rec.Kind, &rec.SessionID, &rec.Stage,
			&rec.Status, &rec.ErrorCode, &rec.ErrorMessage, &rec.Sent, &rec.Total,
			&rec.PlanText, &warnings, &rec.RecordedAt); err != nil {
			return nil, errors.JournalError("failed to scan target", err)
		}
		if warnings != "" {
			rec.Warnings = strings.Split(warnings, "\n")
		}
		run.Targets = append(run.Targets, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.JournalError("failed to get run targets", err)
	}
	return run, nil
}

// LastAppliedPlan returns the plan text most recently applied to target by a
// run that was not a dry run. ok is false when the target was never applied.
func (j *Journal) LastAppliedPlan(ctx context.Context, target string) (text string, ok bool, err error) {
	err = j.db.QueryRowContext(ctx, `
		SELECT t.plan_text
		FROM targets t JOIN runs r ON r.run_id = t.run_id
		WHERE t.target = ? AND t.status = ? AND r.dry_run = 0
		ORDER BY t.id DESC
		LIMIT 1
	`, target, TargetApplied).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.JournalError("failed to get last applied plan", err)
	}
	return text, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
