package models

import (
	"encoding/json"
	"fmt"
)

// RawKind binds a raw-store collection to its content category and a decoder
// for the concrete document type.
type RawKind struct {
	Name     string
	Category Category
	decode   func([]byte) (RawDocument, error)
}

func (k RawKind) Decode(raw []byte) (RawDocument, error) {
	return k.decode(raw)
}

func rawKindOf[T RawDocument]() RawKind {
	var zero T
	name := zero.CollectionName()
	return RawKind{
		Name:     name,
		Category: Category(name),
		decode: func(raw []byte) (RawDocument, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

var rawKinds = []RawKind{
	rawKindOf[PostDocument](),
	rawKindOf[ArticleDocument](),
	rawKindOf[RepositoryDocument](),
}

// LookupRawKind resolves a raw-store collection name to the type stored in it.
func LookupRawKind(collection string) (RawKind, error) {
	for _, k := range rawKinds {
		if k.Name == collection {
			return k, nil
		}
	}
	return RawKind{}, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
}

// RawKindForCategory resolves the raw document type of a content category.
func RawKindForCategory(category Category) (RawKind, error) {
	for _, k := range rawKinds {
		if k.Category == category {
			return k, nil
		}
	}
	return RawKind{}, fmt.Errorf("%w: no raw collection for %q", ErrUnknownCollection, category)
}

// RawCategoryOf returns the content category of a raw document. Documents
// outside the content families (users, prompts) are rejected.
func RawCategoryOf(doc NoSQLDocument) (Category, error) {
	category, err := ParseCategory(doc.CollectionName())
	if err != nil {
		return "", err
	}
	if _, err := RawKindForCategory(category); err != nil {
		return "", err
	}
	return category, nil
}
