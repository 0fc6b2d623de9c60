package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrCollectionNotFound is returned by writes and reads against a missing collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Filter is an equality match on payload fields.
type Filter map[string]any

// Point is a document in vector-store form. Vector is nil for collections
// without a vector index. Payload is a JSON object.
type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Payload json.RawMessage
}

type ScoredPoint struct {
	Point
	Score float64
}

// CollectionSpec describes a collection to create. Distance is always cosine.
type CollectionSpec struct {
	Name           string
	Dim            int
	UseVectorIndex bool
}

// Backend is a vector database keyed by collection name.
type Backend interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, spec CollectionSpec) error
	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Scroll pages through points ordered by id, starting at offset. The
	// returned offset is the id of the first point of the next page, nil when
	// there is none.
	Scroll(ctx context.Context, collection string, filter Filter, limit int, offset *uuid.UUID, withVectors bool) ([]Point, *uuid.UUID, error)
	// Search returns up to limit points by descending cosine similarity.
	Search(ctx context.Context, collection string, vector []float32, limit int, filter Filter, withVectors bool) ([]ScoredPoint, error)
	Close() error
}

// conditions flattens a filter into sorted key/value pairs with uuids as strings.
func (f Filter) conditions() ([]condition, error) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]condition, 0, len(keys))
	for _, k := range keys {
		v := f[k]
		switch t := v.(type) {
		case uuid.UUID:
			v = t.String()
		case string, bool, int, int64, float64, float32:
		default:
			return nil, fmt.Errorf("filter %q: unsupported value type %T", k, v)
		}
		out = append(out, condition{Key: k, Value: v})
	}
	return out, nil
}

type condition struct {
	Key   string
	Value any
}
