package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var (
	// ErrWriteConflict reports an insert whose id is already stored.
	ErrWriteConflict = errors.New("write conflict")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidName   = errors.New("invalid collection name")
)

const storageIDKey = "_id"

// Filter is an equality match on top-level document fields. The key "id"
// addresses the document identity.
type Filter map[string]any

// Record is a document in storage form: its id as a string and its body as a
// JSON object carrying the same id under "_id".
type Record struct {
	ID   string
	Body json.RawMessage
}

// Backend is a schemaless document store keyed by collection name.
type Backend interface {
	// Insert writes all records or none. A duplicate id fails with ErrWriteConflict.
	Insert(ctx context.Context, collection string, recs []Record) error
	// Find returns the records matching filter in insertion order. limit <= 0 means no limit.
	Find(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error)
	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateName(collection string) error {
	if !identRe.MatchString(collection) {
		return fmt.Errorf("%w: %q", ErrInvalidName, collection)
	}
	return nil
}

// normalizeFilter maps "id" to the storage key and turns every value into its
// JSON form, so uuids and other marshalers compare as stored strings.
func normalizeFilter(f Filter) (map[string]any, error) {
	out := make(map[string]any, len(f))
	for k, v := range f {
		if k == "id" {
			k = storageIDKey
		}
		if !identRe.MatchString(k) {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidFilter, k)
		}
		switch t := v.(type) {
		case uuid.UUID:
			out[k] = t.String()
			continue
		case string, bool, nil:
			out[k] = t
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidFilter, k, err)
		}
		var plain any
		if err := json.Unmarshal(raw, &plain); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidFilter, k, err)
		}
		switch plain.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("%w: field %q must be a scalar", ErrInvalidFilter, k)
		}
		out[k] = plain
	}
	return out, nil
}

// toRecord encodes a document for storage, renaming "id" to "_id".
func toRecord(doc any) (Record, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return Record{}, fmt.Errorf("encode document: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, fmt.Errorf("encode document: %w", err)
	}
	idRaw, ok := fields["id"]
	if !ok {
		return Record{}, errors.New("encode document: no id field")
	}
	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil || id == "" {
		return Record{}, fmt.Errorf("encode document: id must be a non-empty string")
	}
	delete(fields, "id")
	fields[storageIDKey] = idRaw

	body, err := json.Marshal(fields)
	if err != nil {
		return Record{}, fmt.Errorf("encode document: %w", err)
	}
	return Record{ID: id, Body: body}, nil
}

// fromRecord decodes a stored body into T, renaming "_id" back to "id".
func fromRecord[T any](rec Record) (T, error) {
	var out T
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body, &fields); err != nil {
		return out, fmt.Errorf("decode document %s: %w", rec.ID, err)
	}
	if idRaw, ok := fields[storageIDKey]; ok {
		fields["id"] = idRaw
		delete(fields, storageIDKey)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("decode document %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode document %s: %w", rec.ID, err)
	}
	return out, nil
}
