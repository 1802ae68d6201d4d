package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// History drivers.
const (
	DriverJSONL    = "jsonl"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const sqlSchema = `CREATE TABLE IF NOT EXISTS optimization_runs (
	run_id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	started_at BIGINT NOT NULL,
	record TEXT NOT NULL
)`

// SQLStore keeps run records in a SQLite or PostgreSQL table. The record is
// stored as JSON next to the columns used for filtering.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// OpenSQL connects to the database and creates the runs table if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	name := driver
	if driver == DriverPostgres {
		name = "pgx"
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s history: %w", driver, err)
	}
	if driver == DriverPostgres {
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(30 * time.Minute)
	} else {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify %s history connection: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &SQLStore{db: db, postgres: driver == DriverPostgres}, nil
}

// Append stores rec, replacing an earlier record with the same run ID.
func (s *SQLStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO optimization_runs (run_id, command, started_at, record)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET command = excluded.command,
			started_at = excluded.started_at, record = excluded.record`),
		rec.RunID, rec.Command, rec.StartedAt.UnixNano(), string(b))
	return err
}

// Query returns the records matching q ordered by start time.
func (s *SQLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	query, args := buildQuery(q)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 {
		slices.Reverse(res)
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

// buildQuery renders q with "?" placeholders. A positive limit selects the
// newest records, so they come back in descending order.
func buildQuery(q Query) (string, []any) {
	var args []any
	query := `SELECT record FROM optimization_runs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND started_at <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Command != "" {
		query += ` AND command = ?`
		args = append(args, q.Command)
	}
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Limit > 0 {
		query += ` ORDER BY started_at DESC LIMIT ` + strconv.Itoa(q.Limit)
	} else {
		query += ` ORDER BY started_at`
	}
	return query, args
}

// rebind turns "?" placeholders into PostgreSQL's "$n".
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
