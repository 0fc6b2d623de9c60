package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ETLRun parameterises the digital data ETL pipeline.
type ETLRun struct {
	UserFullName string   `yaml:"user_full_name" json:"user_full_name"`
	Links        []string `yaml:"links" json:"links"`
}

// FeatureRun parameterises the feature engineering pipeline.
type FeatureRun struct {
	AuthorFullNames []string `yaml:"author_full_names" json:"author_full_names"`
}

type runFile[T any] struct {
	Parameters T `yaml:"parameters"`
}

func LoadETLRun(path string) (*ETLRun, error) {
	run, err := loadRunFile[ETLRun](path)
	if err != nil {
		return nil, err
	}
	if run.UserFullName == "" {
		return nil, fmt.Errorf("%s: parameters.user_full_name is required", path)
	}
	return run, nil
}

func LoadFeatureRun(path string) (*FeatureRun, error) {
	run, err := loadRunFile[FeatureRun](path)
	if err != nil {
		return nil, err
	}
	if len(run.AuthorFullNames) == 0 {
		return nil, fmt.Errorf("%s: parameters.author_full_names is required", path)
	}
	return run, nil
}

func loadRunFile[T any](path string) (*T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}
	var f runFile[T]
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse run config %s: %w", path, err)
	}
	return &f.Parameters, nil
}
