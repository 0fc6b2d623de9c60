package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// SQLiteBackend stores each collection as a table of JSON text bodies in a
// single database file.
type SQLiteBackend struct {
	db     *sql.DB
	path   string
	log    *logger.Logger
	tables sync.Map
}

// NewSQLiteBackend opens (or creates) the database file at path.
func NewSQLiteBackend(path string, log *logger.Logger) (*SQLiteBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer keeps batch inserts atomic without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SQLiteBackend{db: db, path: path, log: log.With("service", "SQLiteBackend")}, nil
}

func (s *SQLiteBackend) Path() string { return s.path }

func (s *SQLiteBackend) ensureTable(ctx context.Context, collection string) error {
	if err := validateName(collection); err != nil {
		return err
	}
	if _, ok := s.tables.Load(collection); ok {
		return nil
	}
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			body       TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, quoteIdent(collection))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", collection, err)
	}
	s.tables.Store(collection, struct{}{})
	return nil
}

func (s *SQLiteBackend) Insert(ctx context.Context, collection string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, body) VALUES (?, ?)`, quoteIdent(collection))
	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, q, rec.ID, string(rec.Body)); err != nil {
			_ = tx.Rollback()
			return classifySQLiteError(err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteBackend) Find(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error) {
	want, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		where []string
		args  []any
	)
	for _, k := range keys {
		path := "$." + k
		switch v := want[k].(type) {
		case nil:
			where = append(where, "json_type(body, ?) = 'null'")
			args = append(args, path)
		case bool:
			where = append(where, "json_type(body, ?) = ?")
			args = append(args, path, map[bool]string{true: "true", false: "false"}[v])
		default:
			where = append(where, "json_extract(body, ?) = ?")
			args = append(args, path, v)
		}
	}

	q := fmt.Sprintf(`SELECT id, body FROM %s`, quoteIdent(collection))
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq ASC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec  Record
			body string
		)
		if err := rows.Scan(&rec.ID, &body); err != nil {
			return nil, err
		}
		rec.Body = []byte(body)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func classifySQLiteError(err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrWriteConflict, err)
		}
	}
	return err
}

var _ Backend = (*SQLiteBackend)(nil)
