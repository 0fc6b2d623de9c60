package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

const pgUniqueViolation = "23505"

// Open connects to Postgres through the pgx stdlib driver and runs the
// bootstrap script once. sslCertPath, when set, pins the server CA.
func Open(ctx context.Context, dsn, sslCertPath string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if sslCertPath != "" {
		if _, err := os.Stat(sslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
		}
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", sslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return db, nil
}

// PostgresBackend stores each collection in its own table of json bodies.
// The json type keeps the body text verbatim, so field order survives.
type PostgresBackend struct {
	db     *sql.DB
	log    *logger.Logger
	tables sync.Map
}

func NewPostgresBackend(db *sql.DB, log *logger.Logger) *PostgresBackend {
	if log == nil {
		log = logger.Nop()
	}
	return &PostgresBackend{db: db, log: log.With("service", "PostgresBackend")}
}

func (p *PostgresBackend) ensureTable(ctx context.Context, collection string) error {
	if err := validateName(collection); err != nil {
		return err
	}
	if _, ok := p.tables.Load(collection); ok {
		return nil
	}
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id         text PRIMARY KEY,
			body       json NOT NULL,
			created_at timestamptz NOT NULL DEFAULT clock_timestamp()
		);
		CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s USING gin ((body::jsonb) jsonb_path_ops);`,
		quoteIdent(collection), quoteIdent(collection+"_body_idx"))
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", collection, err)
	}
	p.tables.Store(collection, struct{}{})
	p.log.Debug("collection table ready", "collection", collection)
	return nil
}

func (p *PostgresBackend) Insert(ctx context.Context, collection string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := p.ensureTable(ctx, collection); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, body) VALUES ($1, $2::json)`, quoteIdent(collection)))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec.ID, string(rec.Body)); err != nil {
			_ = tx.Rollback()
			return classifyPgError(err)
		}
	}
	return tx.Commit()
}

func (p *PostgresBackend) Find(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error) {
	want, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if err := p.ensureTable(ctx, collection); err != nil {
		return nil, err
	}
	contains, err := jsonText(want)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT id, body::text
		FROM %s
		WHERE body::jsonb @> $1::jsonb
		ORDER BY created_at ASC, id ASC`, quoteIdent(collection))
	args := []any{contains}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
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

func (p *PostgresBackend) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrWriteConflict, pgErr.Detail)
	}
	return err
}

func jsonText(v map[string]any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return string(raw), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ Backend = (*PostgresBackend)(nil)
