package db

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

type memCollection struct {
	recs  []Record
	index map[string]struct{}
}

// MemoryBackend keeps collections in process memory.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memCollection)}
}

func (m *MemoryBackend) Insert(_ context.Context, collection string, recs []Record) error {
	if err := validateName(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collection]
	if !ok {
		col = &memCollection{index: make(map[string]struct{})}
		m.collections[collection] = col
	}
	batch := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		_, stored := col.index[rec.ID]
		_, dup := batch[rec.ID]
		if stored || dup {
			return fmt.Errorf("%w: duplicate id %s", ErrWriteConflict, rec.ID)
		}
		batch[rec.ID] = struct{}{}
	}
	for _, rec := range recs {
		body := append(json.RawMessage(nil), rec.Body...)
		col.recs = append(col.recs, Record{ID: rec.ID, Body: body})
		col.index[rec.ID] = struct{}{}
	}
	return nil
}

func (m *MemoryBackend) Find(_ context.Context, collection string, filter Filter, limit int) ([]Record, error) {
	want, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	var out []Record
	for _, rec := range col.recs {
		var fields map[string]any
		if err := json.Unmarshal(rec.Body, &fields); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.ID, err)
		}
		if !matches(fields, want) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryBackend) Close() error { return nil }

func matches(fields, want map[string]any) bool {
	for k, v := range want {
		got, ok := fields[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}

var _ Backend = (*MemoryBackend)(nil)
