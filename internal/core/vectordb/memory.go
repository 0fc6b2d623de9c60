package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memCollection struct {
	spec   CollectionSpec
	points map[uuid.UUID]Point
}

// MemoryBackend is a brute-force cosine store held in process memory.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memCollection)}
}

func (m *MemoryBackend) CollectionExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryBackend) CreateCollection(_ context.Context, spec CollectionSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[spec.Name]; !ok {
		m.collections[spec.Name] = &memCollection{spec: spec, points: make(map[uuid.UUID]Point)}
	}
	return nil
}

func (m *MemoryBackend) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for _, p := range points {
		if col.spec.UseVectorIndex && len(p.Vector) != col.spec.Dim {
			return fmt.Errorf("point %s: vector size %d, collection expects %d", p.ID, len(p.Vector), col.spec.Dim)
		}
		col.points[p.ID] = Point{
			ID:      p.ID,
			Vector:  append([]float32(nil), p.Vector...),
			Payload: append(json.RawMessage(nil), p.Payload...),
		}
	}
	return nil
}

func (m *MemoryBackend) Scroll(_ context.Context, collection string, filter Filter, limit int, offset *uuid.UUID, withVectors bool) ([]Point, *uuid.UUID, error) {
	matched, err := m.matching(collection, filter)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(matched, func(i, j int) bool {
		return bytes.Compare(matched[i].ID[:], matched[j].ID[:]) < 0
	})

	start := 0
	if offset != nil {
		start = sort.Search(len(matched), func(i int) bool {
			return bytes.Compare(matched[i].ID[:], offset[:]) >= 0
		})
	}
	end := len(matched)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	page := make([]Point, 0, end-start)
	for _, p := range matched[start:end] {
		page = append(page, withoutVector(p, withVectors))
	}
	var next *uuid.UUID
	if end < len(matched) {
		id := matched[end].ID
		next = &id
	}
	return page, next, nil
}

func (m *MemoryBackend) Search(_ context.Context, collection string, vector []float32, limit int, filter Filter, withVectors bool) ([]ScoredPoint, error) {
	matched, err := m.matching(collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredPoint, 0, len(matched))
	for _, p := range matched {
		if len(p.Vector) == 0 {
			continue
		}
		out = append(out, ScoredPoint{Point: withoutVector(p, withVectors), Score: cosine(vector, p.Vector)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryBackend) Close() error { return nil }

func (m *MemoryBackend) matching(collection string, filter Filter) ([]Point, error) {
	conds, err := filter.conditions()
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	var out []Point
	for _, p := range col.points {
		ok, err := payloadMatches(p.Payload, conds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func payloadMatches(payload json.RawMessage, conds []condition) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false, err
	}
	for _, c := range conds {
		want, err := jsonValue(c.Value)
		if err != nil {
			return false, err
		}
		if got, ok := fields[c.Key]; !ok || !reflect.DeepEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func jsonValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	return out, json.Unmarshal(raw, &out)
}

func withoutVector(p Point, withVectors bool) Point {
	if !withVectors {
		p.Vector = nil
	}
	return p
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Backend = (*MemoryBackend)(nil)
