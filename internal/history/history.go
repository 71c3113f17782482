// Package history keeps a local ledger of completed sync runs in a
// SQLite database, one row per run. The CLI reads it to answer "what
// did the last runs change".
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/syncer"
)

// Run is one recorded sync run.
type Run struct {
	ID       int64
	Source   string
	Started  time.Time
	Finished time.Time
	Created  int
	Updated  int
	Skipped  int
	Failed   int
	Records  int
	DryRun   bool
}

// Duration reports how long the run took.
func (r Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Ledger persists sync outcomes.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the ledger database at path and
// applies the schema.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.WrapValidation("history path", errors.New("path is required"))
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}

	ledger := &Ledger{db: db, path: path}
	if err := ledger.migrate(); err != nil {
		db.Close()
		return nil, errors.WrapIO("migrate", path, err)
	}
	return ledger, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		created INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		dry_run INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record appends one completed run to the ledger.
func (l *Ledger) Record(ctx context.Context, outcome *syncer.Outcome) error {
	if outcome == nil {
		return errors.WrapValidation("outcome", errors.New("outcome is required"))
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (source, started_at, finished_at, created, updated, skipped, failed, records, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(outcome.Source),
		outcome.Started.UTC(),
		outcome.Finished.UTC(),
		outcome.Created,
		outcome.Updated,
		outcome.Skipped,
		outcome.Failed,
		len(outcome.Records),
		outcome.DryRun,
	)
	if err != nil {
		return errors.WrapIO("record sync run", l.path, err)
	}
	return nil
}

// Recent returns the most recent runs, newest first. A non-empty
// source restricts the listing to that source.
func (l *Ledger) Recent(ctx context.Context, source string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, source, started_at, finished_at, created, updated, skipped, failed, records, dry_run
		FROM runs`
	args := []any{}
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapIO("query sync runs", l.path, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.Source, &run.Started, &run.Finished,
			&run.Created, &run.Updated, &run.Skipped, &run.Failed,
			&run.Records, &run.DryRun,
		); err != nil {
			return nil, errors.WrapIO("scan sync run", l.path, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO("read sync runs", l.path, err)
	}
	return runs, nil
}

// Totals aggregates all recorded runs for one source.
type Totals struct {
	Runs    int
	Created int
	Updated int
	Failed  int
}

// TotalsBySource aggregates the whole ledger grouped by source.
func (l *Ledger) TotalsBySource(ctx context.Context) (map[string]Totals, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT source, COUNT(*), SUM(created), SUM(updated), SUM(failed)
		FROM runs GROUP BY source`)
	if err != nil {
		return nil, errors.WrapIO("aggregate sync runs", l.path, err)
	}
	defer rows.Close()

	totals := make(map[string]Totals)
	for rows.Next() {
		var (
			source string
			t      Totals
		)
		if err := rows.Scan(&source, &t.Runs, &t.Created, &t.Updated, &t.Failed); err != nil {
			return nil, errors.WrapIO("scan sync run totals", l.path, err)
		}
		totals[source] = t
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO("read sync run totals", l.path, err)
	}
	return totals, nil
}

// String renders one run the way the CLI prints it.
func (r Run) String() string {
	line := fmt.Sprintf("%s  %s  %d created, %d updated, %d skipped, %d failed (%d records, %s)",
		r.Started.Local().Format("2006-01-02 15:04:05"),
		r.Source, r.Created, r.Updated, r.Skipped, r.Failed, r.Records,
		r.Duration().Round(time.Millisecond))
	if r.DryRun {
		line += " [dry run]"
	}
	return line
}
