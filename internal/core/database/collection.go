package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// Collection is a typed view of one raw-store collection.
type Collection[T models.NoSQLDocument] struct {
	backend Backend
	name    string
	log     *logger.Logger
}

// NewCollection binds T to the collection it declares through CollectionName.
func NewCollection[T models.NoSQLDocument](backend Backend, log *logger.Logger) (*Collection[T], error) {
	var zero T
	name := zero.CollectionName()
	if name == "" {
		return nil, fmt.Errorf("%w: %T declares no collection name", models.ErrImproperlyConfigured, zero)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Collection[T]{
		backend: backend,
		name:    name,
		log:     log.With("service", "RawStore", "collection", name),
	}, nil
}

func (c *Collection[T]) Name() string { return c.name }

// Save inserts doc. A write conflict is logged and yields (nil, nil).
func (c *Collection[T]) Save(ctx context.Context, doc T) (*T, error) {
	rec, err := toRecord(doc)
	if err != nil {
		return nil, err
	}
	if err := c.backend.Insert(ctx, c.name, []Record{rec}); err != nil {
		if errors.Is(err, ErrWriteConflict) {
			c.log.Error("Failed to insert document", "id", rec.ID, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("insert into %s: %w", c.name, err)
	}
	return &doc, nil
}

// Find returns the first match, or (nil, nil) when nothing matches.
func (c *Collection[T]) Find(ctx context.Context, filter Filter) (*T, error) {
	recs, err := c.backend.Find(ctx, c.name, filter, 1)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	doc, err := fromRecord[T](recs[0])
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetOrCreate returns the document matching filter, building and saving one
// when none exists.
func (c *Collection[T]) GetOrCreate(ctx context.Context, filter Filter, build func() T) (*T, error) {
	found, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}

	saved, err := c.Save(ctx, build())
	if err != nil {
		return nil, err
	}
	if saved != nil {
		return saved, nil
	}
	// Lost a race with a concurrent writer of the same id.
	found, err = c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("get or create in %s: %w", c.name, ErrWriteConflict)
	}
	return found, nil
}

// BulkInsert writes docs in one batch and reports whether it succeeded.
func (c *Collection[T]) BulkInsert(ctx context.Context, docs []T) bool {
	if len(docs) == 0 {
		return true
	}
	recs := make([]Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := toRecord(doc)
		if err != nil {
			c.log.Error("Failed to encode document", "error", err)
			return false
		}
		recs = append(recs, rec)
	}
	if err := c.backend.Insert(ctx, c.name, recs); err != nil {
		c.log.Error("Failed to insert documents", "count", len(recs), "error", err)
		return false
	}
	return true
}

// BulkFind returns every match. Failures are logged and yield an empty slice.
func (c *Collection[T]) BulkFind(ctx context.Context, filter Filter) []T {
	docs, err := c.Query(ctx, filter)
	if err != nil {
		c.log.Error("Error retrieving documents", "error", err)
		return []T{}
	}
	return docs
}

// Query is BulkFind with the failure returned instead of logged.
func (c *Collection[T]) Query(ctx context.Context, filter Filter) ([]T, error) {
	recs, err := c.backend.Find(ctx, c.name, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		doc, err := fromRecord[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
