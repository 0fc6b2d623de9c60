package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// Store writes vector documents of any registered type and reads them back
// through the registry.
type Store struct {
	backend Backend
	dim     int
	log     *logger.Logger
}

// NewStore wraps backend. dim is the embedding size used when a vector
// collection has to be created.
func NewStore(backend Backend, dim int, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{backend: backend, dim: dim, log: log.With("service", "VectorStore")}
}

func (s *Store) Backend() Backend { return s.backend }

// Match is a search hit decoded to its concrete document type.
type Match struct {
	Doc   models.VectorDocument
	Score float64
}

// BulkInsert upserts docs grouped by concrete type, creating a missing
// collection and retrying once. Failures are logged and reported as false.
func (s *Store) BulkInsert(ctx context.Context, docs []models.VectorDocument) bool {
	for _, group := range models.GroupByType(docs) {
		if err := s.insertGroup(ctx, group.Docs); err != nil {
			s.log.Error("Failed to insert documents", "type", group.Type.Name(), "count", len(group.Docs), "error", err)
			return false
		}
	}
	return true
}

func (s *Store) insertGroup(ctx context.Context, docs []models.VectorDocument) error {
	settings := docs[0].VectorSettings()
	name, err := models.CollectionOf(docs[0])
	if err != nil {
		return err
	}

	points := make([]Point, 0, len(docs))
	for _, doc := range docs {
		p, err := toPoint(doc)
		if err != nil {
			return err
		}
		points = append(points, p)
	}

	err = s.backend.Upsert(ctx, name, points)
	if errors.Is(err, ErrCollectionNotFound) {
		s.log.Info("Collection not found, creating it", "collection", name)
		if err := s.createCollection(ctx, name, settings); err != nil {
			return err
		}
		err = s.backend.Upsert(ctx, name, points)
	}
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", name, err)
	}
	return nil
}

func (s *Store) createCollection(ctx context.Context, name string, settings models.VectorSettings) error {
	spec := CollectionSpec{Name: name, UseVectorIndex: settings.UseVectorIndex}
	if settings.UseVectorIndex {
		spec.Dim = s.dim
	}
	if err := s.backend.CreateCollection(ctx, spec); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// Search runs a similarity search against a named collection and decodes the
// hits through the registry.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int, filter Filter) ([]Match, error) {
	kind, err := models.LookupVectorKind(collection)
	if err != nil {
		return nil, err
	}
	hits, err := s.backend.Search(ctx, collection, vector, limit, filter, kind.Settings.HasEmbedding)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		raw, err := fromPoint(h.Point, kind.Settings.HasEmbedding)
		if err != nil {
			return nil, err
		}
		doc, err := kind.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s point %s: %w", collection, h.ID, err)
		}
		out = append(out, Match{Doc: doc, Score: h.Score})
	}
	return out, nil
}

// toPoint moves id and embedding out of the document JSON; the rest is payload.
func toPoint(doc models.VectorDocument) (Point, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return Point{}, fmt.Errorf("encode %T: %w", doc, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Point{}, fmt.Errorf("encode %T: %w", doc, err)
	}
	delete(fields, "id")
	delete(fields, "embedding")
	payload, err := json.Marshal(fields)
	if err != nil {
		return Point{}, fmt.Errorf("encode %T payload: %w", doc, err)
	}

	p := Point{ID: doc.GetID(), Payload: payload}
	settings := doc.VectorSettings()
	if settings.UseVectorIndex {
		embedded, ok := doc.(models.Embedded)
		if !ok || len(embedded.GetEmbedding()) == 0 {
			return Point{}, fmt.Errorf("%w: %T has a vector index but no embedding", models.ErrImproperlyConfigured, doc)
		}
		p.Vector = embedded.GetEmbedding()
	}
	return p, nil
}

// fromPoint rebuilds the document JSON: id plus payload, plus the embedding
// for types that carry one.
func fromPoint(p Point, hasEmbedding bool) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(p.Payload) > 0 {
		if err := json.Unmarshal(p.Payload, &fields); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", p.ID, err)
		}
	}
	id, _ := json.Marshal(p.ID.String())
	fields["id"] = id
	delete(fields, "embedding")
	if hasEmbedding && p.Vector != nil {
		vec, err := json.Marshal(p.Vector)
		if err != nil {
			return nil, err
		}
		fields["embedding"] = vec
	}
	return json.Marshal(fields)
}

// Collection is a typed view of one vector collection.
type Collection[T models.VectorDocument] struct {
	store    *Store
	name     string
	settings models.VectorSettings
}

func NewCollection[T models.VectorDocument](store *Store) (*Collection[T], error) {
	var zero T
	name, err := models.CollectionOf(zero)
	if err != nil {
		return nil, err
	}
	return &Collection[T]{store: store, name: name, settings: zero.VectorSettings()}, nil
}

func (c *Collection[T]) Name() string { return c.name }

// CreateCollection creates the collection with cosine distance, or without
// vectors when the type has no vector index.
func (c *Collection[T]) CreateCollection(ctx context.Context) error {
	return c.store.createCollection(ctx, c.name, c.settings)
}

func (c *Collection[T]) GetOrCreateCollection(ctx context.Context) error {
	exists, err := c.store.backend.CollectionExists(ctx, c.name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", c.name, err)
	}
	if exists {
		return nil
	}
	return c.CreateCollection(ctx)
}

// BulkFind pages through the collection. Failures are logged and yield an
// empty page with a nil offset.
func (c *Collection[T]) BulkFind(ctx context.Context, limit int, offset *uuid.UUID, filter Filter) ([]T, *uuid.UUID) {
	docs, next, err := c.Scroll(ctx, limit, offset, filter)
	if err != nil {
		c.store.log.Error("Failed to scroll collection", "collection", c.name, "error", err)
		return []T{}, nil
	}
	return docs, next
}

// Scroll is BulkFind with the failure returned.
func (c *Collection[T]) Scroll(ctx context.Context, limit int, offset *uuid.UUID, filter Filter) ([]T, *uuid.UUID, error) {
	points, next, err := c.store.backend.Scroll(ctx, c.name, filter, limit, offset, c.settings.HasEmbedding)
	if err != nil {
		return nil, nil, fmt.Errorf("scroll %s: %w", c.name, err)
	}
	docs, err := decodePoints[T](points, c.settings.HasEmbedding)
	if err != nil {
		return nil, nil, err
	}
	return docs, next, nil
}

// Search returns the nearest documents. Failures are logged and yield an empty slice.
func (c *Collection[T]) Search(ctx context.Context, vector []float32, limit int, filter Filter) []T {
	docs, err := c.SearchE(ctx, vector, limit, filter)
	if err != nil {
		c.store.log.Error("Failed to search collection", "collection", c.name, "error", err)
		return []T{}
	}
	return docs
}

// SearchE is Search with the failure returned.
func (c *Collection[T]) SearchE(ctx context.Context, vector []float32, limit int, filter Filter) ([]T, error) {
	hits, err := c.store.backend.Search(ctx, c.name, vector, limit, filter, c.settings.HasEmbedding)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.name, err)
	}
	points := make([]Point, len(hits))
	for i, h := range hits {
		points[i] = h.Point
	}
	return decodePoints[T](points, c.settings.HasEmbedding)
}

func decodePoints[T models.VectorDocument](points []Point, hasEmbedding bool) ([]T, error) {
	out := make([]T, 0, len(points))
	for _, p := range points {
		raw, err := fromPoint(p, hasEmbedding)
		if err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode point %s: %w", p.ID, err)
		}
		out = append(out, doc)
	}
	return out, nil
}
