package models

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// VectorKind binds a persisted vector document type to its settings and a
// decoder that rebuilds the concrete type from its JSON form.
type VectorKind struct {
	Settings VectorSettings
	decode   func([]byte) (VectorDocument, error)
}

func (k VectorKind) Decode(raw []byte) (VectorDocument, error) {
	return k.decode(raw)
}

func kindOf[T VectorDocument]() VectorKind {
	var zero T
	return VectorKind{
		Settings: zero.VectorSettings(),
		decode: func(raw []byte) (VectorDocument, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

var vectorKinds = []VectorKind{
	kindOf[CleanedPostDocument](),
	kindOf[CleanedArticleDocument](),
	kindOf[CleanedRepositoryDocument](),
	kindOf[EmbeddedPostChunk](),
	kindOf[EmbeddedArticleChunk](),
	kindOf[EmbeddedRepositoryChunk](),
}

// VectorKinds lists every vector document type that owns a collection.
func VectorKinds() []VectorKind {
	return append([]VectorKind(nil), vectorKinds...)
}

// LookupVectorKind resolves a collection name to the type stored in it.
func LookupVectorKind(collection string) (VectorKind, error) {
	for _, k := range vectorKinds {
		if k.Settings.Name == collection {
			return k, nil
		}
	}
	return VectorKind{}, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
}

// Stage names a pipeline step whose output is persisted in the vector store.
type Stage string

const (
	StageCleaned  Stage = "cleaned"
	StageEmbedded Stage = "embedded"
)

// VectorKindForCategory resolves the type a category is stored as at stage.
func VectorKindForCategory(stage Stage, category Category) (VectorKind, error) {
	if stage != StageCleaned && stage != StageEmbedded {
		return VectorKind{}, fmt.Errorf("%w: unknown stage %q", ErrUnknownCollection, stage)
	}
	for _, k := range vectorKinds {
		if k.Settings.Category != category {
			continue
		}
		if k.Settings.HasEmbedding == (stage == StageEmbedded) {
			return k, nil
		}
	}
	return VectorKind{}, fmt.Errorf("%w: no %s collection for %q", ErrUnknownCollection, stage, category)
}

// EmbeddedKindFor returns the embedded chunk type of a content category.
func EmbeddedKindFor(category Category) (VectorKind, error) {
	return VectorKindForCategory(StageEmbedded, category)
}

// CollectionOf returns the collection name of a document, or
// ErrImproperlyConfigured when its type does not declare one.
func CollectionOf(doc VectorDocument) (string, error) {
	name := doc.VectorSettings().Name
	if name == "" {
		return "", fmt.Errorf("%w: %T declares no collection name", ErrImproperlyConfigured, doc)
	}
	return name, nil
}

type identified interface {
	GetID() uuid.UUID
}

// SameDocument reports whether a and b are the same concrete type with the same id.
func SameDocument(a, b identified) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b) && a.GetID() == b.GetID()
}

func GroupByCategory[T VectorDocument](docs []T) map[Category][]T {
	grouped := make(map[Category][]T)
	for _, doc := range docs {
		c := doc.VectorSettings().Category
		grouped[c] = append(grouped[c], doc)
	}
	return grouped
}

// TypeGroup is a run of documents sharing one concrete type.
type TypeGroup[T any] struct {
	Type reflect.Type
	Docs []T
}

// GroupByType groups documents by concrete type, groups ordered by first appearance.
func GroupByType[T any](docs []T) []TypeGroup[T] {
	var groups []TypeGroup[T]
	index := make(map[reflect.Type]int)
	for _, doc := range docs {
		t := reflect.TypeOf(doc)
		i, ok := index[t]
		if !ok {
			i = len(groups)
			index[t] = i
			groups = append(groups, TypeGroup[T]{Type: t})
		}
		groups[i].Docs = append(groups[i].Docs, doc)
	}
	return groups
}
