package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// mgetBatchSize limits the number of placeholders per query.
const mgetBatchSize = 500

// SQL stores records as JSON in an entity table and seen citations in
// oci_seen. The dialect is "sqlite" or "postgres".
type SQL struct {
	db      *sql.DB
	dialect string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS entity (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS oci_seen (
  oci TEXT PRIMARY KEY
)`,
}

// OpenSQL opens a database and creates the tables, if necessary.
func OpenSQL(dialect, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s datasource: empty dsn", dialect)
	}
	var driver string
	switch dialect {
	case "sqlite":
		driver = "sqlite"
	case "postgres":
		driver = "postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dialect == "sqlite" {
		// SQLite doesn't support concurrent writes
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &SQL{db: db, dialect: dialect}, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var (
		sb strings.Builder
		n  int
	)
	for _, c := range query {
		if c == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

func (s *SQL) upsertQuery() string {
	return s.rebind(`INSERT INTO entity (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
}

func (s *SQL) Get(ctx context.Context, key string) (*Record, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT value FROM entity WHERE key = ?"), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		return nil, fmt.Errorf("record %s: %w", key, err)
	}
	return &r, nil
}

func (s *SQL) MGet(ctx context.Context, keys []string) (map[string]Record, error) {
	result := make(map[string]Record, len(keys))
	for len(keys) > 0 {
		n := len(keys)
		if n > mgetBatchSize {
			n = mgetBatchSize
		}
		batch := keys[:n]
		keys = keys[n:]
		args := make([]any, len(batch))
		for i, k := range batch {
			args[i] = k
		}
		query := s.rebind("SELECT key, value FROM entity WHERE key IN (?" +
			strings.Repeat(", ?", len(batch)-1) + ")")
		if err := s.collect(ctx, result, query, args...); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *SQL) collect(ctx context.Context, result map[string]Record, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		var r Record
		if err := json.Unmarshal([]byte(value), &r); err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		result[key] = r
	}
	return rows.Err()
}

func (s *SQL) Set(ctx context.Context, key string, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.upsertQuery(), key, string(b))
	return err
}

// MSet writes all records in a single transaction.
func (s *SQL) MSet(ctx context.Context, records map[string]Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for k, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, k, string(b)); err != nil {
			tx.Rollback()
			return fmt.Errorf("record %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQL) SetIfAbsent(ctx context.Context, oci string) (bool, error) {
	query := "INSERT OR IGNORE INTO oci_seen (oci) VALUES (?)"
	if s.dialect == "postgres" {
		query = "INSERT INTO oci_seen (oci) VALUES ($1) ON CONFLICT DO NOTHING"
	}
	res, err := s.db.ExecContext(ctx, query, oci)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQL) Scan(ctx context.Context, fn func(key string, r Record) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM entity ORDER BY key")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		var r Record
		if err := json.Unmarshal([]byte(value), &r); err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		if err := fn(key, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQL) ScanSeen(ctx context.Context, fn func(oci string) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT oci FROM oci_seen ORDER BY oci")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var oci string
		if err := rows.Scan(&oci); err != nil {
			return err
		}
		if err := fn(oci); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQL) Close() error {
	return s.db.Close()
}

var _ DataSource = (*SQL)(nil)
