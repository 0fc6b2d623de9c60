package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

const pgUndefinedTable = "42P01"

// PgvectorBackend keeps each collection in a Postgres table with a pgvector
// column. It shares the raw store's connection pool.
type PgvectorBackend struct {
	db  *sql.DB
	log *logger.Logger
}

func NewPgvectorBackend(db *sql.DB, log *logger.Logger) *PgvectorBackend {
	if log == nil {
		log = logger.Nop()
	}
	return &PgvectorBackend{db: db, log: log.With("service", "PgvectorBackend")}
}

func (p *PgvectorBackend) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, quoteIdent(tableName(name))).Scan(&exists)
	return exists, err
}

func (p *PgvectorBackend) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	table := quoteIdent(tableName(spec.Name))
	column := "vector"
	if spec.UseVectorIndex {
		if spec.Dim <= 0 {
			return fmt.Errorf("create collection %s: vector size must be positive", spec.Name)
		}
		column = fmt.Sprintf("vector(%d)", spec.Dim)
	}
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id        uuid PRIMARY KEY,
			payload   jsonb NOT NULL,
			embedding %s
		)`, table, column)
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create collection %s: %w", spec.Name, err)
	}
	if spec.UseVectorIndex {
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			quoteIdent(tableName(spec.Name)+"_embedding_idx"), table)
		if _, err := p.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create collection %s index: %w", spec.Name, err)
		}
	}
	p.log.Info("collection created", "collection", spec.Name, "vector_index", spec.UseVectorIndex, "size", spec.Dim)
	return nil
}

func (p *PgvectorBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (id, payload, embedding)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, embedding = EXCLUDED.embedding`,
		quoteIdent(tableName(collection)))

	for _, pt := range points {
		var vec any
		if pt.Vector != nil {
			vec = pgvector.NewVector(pt.Vector)
		}
		if _, err := tx.ExecContext(ctx, q, pt.ID, string(payloadOrEmpty(pt.Payload)), vec); err != nil {
			_ = tx.Rollback()
			return classifyPgError(collection, err)
		}
	}
	return tx.Commit()
}

func (p *PgvectorBackend) Scroll(ctx context.Context, collection string, filter Filter, limit int, offset *uuid.UUID, withVectors bool) ([]Point, *uuid.UUID, error) {
	contains, err := filterJSON(filter)
	if err != nil {
		return nil, nil, err
	}
	q := fmt.Sprintf(`SELECT id, payload::text, embedding::text FROM %s WHERE payload @> $1::jsonb`, quoteIdent(tableName(collection)))
	args := []any{contains}
	if offset != nil {
		q += " AND id >= $2"
		args = append(args, *offset)
	}
	q += " ORDER BY id"
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit+1)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, classifyPgError(collection, err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		pt, _, err := scanPoint(rows, false, withVectors)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *uuid.UUID
	if limit > 0 && len(points) > limit {
		id := points[limit].ID
		next = &id
		points = points[:limit]
	}
	return points, next, nil
}

func (p *PgvectorBackend) Search(ctx context.Context, collection string, vector []float32, limit int, filter Filter, withVectors bool) ([]ScoredPoint, error) {
	contains, err := filterJSON(filter)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		SELECT id, payload::text, embedding::text, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE payload @> $2::jsonb AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3`, quoteIdent(tableName(collection)))

	rows, err := p.db.QueryContext(ctx, q, pgvector.NewVector(vector), contains, limit)
	if err != nil {
		return nil, classifyPgError(collection, err)
	}
	defer rows.Close()

	var out []ScoredPoint
	for rows.Next() {
		pt, score, err := scanPoint(rows, true, withVectors)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredPoint{Point: pt, Score: score})
	}
	return out, rows.Err()
}

func (p *PgvectorBackend) Close() error {
	return nil
}

func scanPoint(rows *sql.Rows, scored, withVectors bool) (Point, float64, error) {
	var (
		pt        Point
		payload   string
		embedding sql.NullString
		score     float64
	)
	dest := []any{&pt.ID, &payload, &embedding}
	if scored {
		dest = append(dest, &score)
	}
	if err := rows.Scan(dest...); err != nil {
		return Point{}, 0, err
	}
	pt.Payload = json.RawMessage(payload)
	if withVectors && embedding.Valid {
		var v pgvector.Vector
		if err := v.Scan(embedding.String); err != nil {
			return Point{}, 0, fmt.Errorf("decode embedding of %s: %w", pt.ID, err)
		}
		pt.Vector = v.Slice()
	}
	return pt, score, nil
}

func filterJSON(filter Filter) (string, error) {
	conds, err := filter.conditions()
	if err != nil {
		return "", err
	}
	m := make(map[string]any, len(conds))
	for _, c := range conds {
		m[c.Key] = c.Value
	}
	raw, err := json.Marshal(m)
	return string(raw), err
}

func payloadOrEmpty(p json.RawMessage) json.RawMessage {
	if len(p) == 0 {
		return json.RawMessage("{}")
	}
	return p
}

func classifyPgError(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return err
}

// tableName keeps vector collections apart from raw-store tables.
func tableName(collection string) string {
	return "vec_" + collection
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ Backend = (*PgvectorBackend)(nil)
