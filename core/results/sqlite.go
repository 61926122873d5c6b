package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists run records to a SQLite database. The full record is
// kept as JSON alongside the queryable columns; result rows go to per-kind
// tables in 500-row transactional batches.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS runs (
        run_id TEXT PRIMARY KEY,
        schedule_id TEXT,
        state TEXT,
        started_at INTEGER,
        finished_at INTEGER,
        record TEXT
    );
    CREATE TABLE IF NOT EXISTS allocations (
        run_id TEXT,
        flight_id TEXT,
        stand_id TEXT,
        start_at INTEGER,
        end_at INTEGER,
        source TEXT,
        status TEXT
    );
    CREATE TABLE IF NOT EXISTS unallocated (
        run_id TEXT,
        flight_id TEXT,
        reason TEXT,
        detail TEXT
    );
    CREATE TABLE IF NOT EXISTS stand_metrics (
        run_id TEXT,
        stand_id TEXT,
        utilisation REAL,
        allocated_minutes INTEGER,
        suboptimal INTEGER
    );
    CREATE TABLE IF NOT EXISTS issues (
        run_id TEXT,
        row_index INTEGER,
        flight_id TEXT,
        code TEXT,
        severity TEXT,
        field TEXT,
        message TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRun writes the run header and all result rows. Each batch of at most
// 500 rows is one multi-row insert inside its own transaction; any batch
// failure aborts the save.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec RunRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, schedule_id, state, started_at, finished_at, record) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ScheduleID, rec.State, rec.StartedAt.Unix(), rec.FinishedAt.Unix(), string(b))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := s.batchInsert(ctx, "allocations", 7, len(rec.Allocations), func(i int) []any {
		a := rec.Allocations[i]
		return []any{rec.RunID, a.FlightID, a.StandID, a.Start.Unix(), a.End.Unix(), a.Source, a.Status}
	}); err != nil {
		return fmt.Errorf("insert allocations: %w", err)
	}
	if err := s.batchInsert(ctx, "unallocated", 4, len(rec.Unallocated), func(i int) []any {
		u := rec.Unallocated[i]
		return []any{rec.RunID, u.FlightID, u.Reason, u.Detail}
	}); err != nil {
		return fmt.Errorf("insert unallocated: %w", err)
	}
	if err := s.batchInsert(ctx, "stand_metrics", 5, len(rec.Metrics), func(i int) []any {
		m := rec.Metrics[i]
		return []any{rec.RunID, m.StandID, m.UtilisationRate, m.AllocatedMin, m.Suboptimal}
	}); err != nil {
		return fmt.Errorf("insert stand metrics: %w", err)
	}
	if err := s.batchInsert(ctx, "issues", 7, len(rec.Issues), func(i int) []any {
		iss := rec.Issues[i]
		return []any{rec.RunID, iss.Row, iss.FlightID, iss.Code, iss.Severity, iss.Field, iss.Message}
	}); err != nil {
		return fmt.Errorf("insert issues: %w", err)
	}
	return nil
}

// batchInsert writes total rows of width columns to table, 500 per
// statement, one transaction per batch.
func (s *SQLiteStore) batchInsert(ctx context.Context, table string, width, total int, rowArgs func(int) []any) error {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", width), ",") + ")"
	for offset := 0; offset < total; offset += batchSize {
		end := offset + batchSize
		if end > total {
			end = total
		}
		n := end - offset
		stmt := fmt.Sprintf("INSERT INTO %s VALUES %s",
			table, strings.TrimSuffix(strings.Repeat(placeholder+",", n), ","))
		args := make([]any, 0, n*width)
		for i := offset; i < end; i++ {
			args = append(args, rowArgs(i)...)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Runs returns run records matching q, ordered by start time.
func (s *SQLiteStore) Runs(ctx context.Context, q Query) ([]RunRecord, error) {
	var args []any
	query := `SELECT record FROM runs WHERE 1=1`
	if q.ScheduleID != "" {
		query += ` AND schedule_id = ?`
		args = append(args, q.ScheduleID)
	}
	if !q.Start.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, q.Start.Unix())
	}
	if !q.End.IsZero() {
		query += ` AND started_at <= ?`
		args = append(args, q.End.Unix())
	}
	query += ` ORDER BY started_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []RunRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r RunRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
