package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCategory      = errors.New("unknown data category")
	ErrUnknownCollection    = errors.New("no document type registered for collection")
	ErrImproperlyConfigured = errors.New("document type is improperly configured")
)

// Category tags a document family. Every dispatch table is keyed by it.
type Category string

const (
	CategoryPrompt  Category = "prompt"
	CategoryQueries Category = "queries"

	CategoryInstructDatasetSamples   Category = "instruct_dataset_samples"
	CategoryInstructDataset          Category = "instruct_dataset"
	CategoryPreferenceDatasetSamples Category = "preference_dataset_samples"
	CategoryPreferenceDataset        Category = "preference_dataset"

	CategoryPosts        Category = "posts"
	CategoryArticles     Category = "articles"
	CategoryRepositories Category = "repositories"
)

var allCategories = []Category{
	CategoryPrompt,
	CategoryQueries,
	CategoryInstructDatasetSamples,
	CategoryInstructDataset,
	CategoryPreferenceDatasetSamples,
	CategoryPreferenceDataset,
	CategoryPosts,
	CategoryArticles,
	CategoryRepositories,
}

func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

func ParseCategory(s string) (Category, error) {
	for _, c := range allCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) String() string { return string(c) }
