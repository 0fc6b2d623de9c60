package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"qdrant_api_key", "abc", "collection", "embedded_posts", "dangling"})

	assert.Equal(t, []interface{}{"qdrant_api_key", "[REDACTED]", "collection", "embedded_posts", "dangling"}, out)
}

func TestNewDevelopmentLogger(t *testing.T) {
	log, err := New("development")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	scoped := log.With("service", "test")
	scoped.Info("hello", "n", 1)
	assert.NotNil(t, scoped.SugaredLogger)
}
