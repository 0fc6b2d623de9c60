package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("RAW_STORE_DRIVER", "SQLite")
	t.Setenv("VECTOR_STORE_DRIVER", "memory")
	t.Setenv("EMBED_DIM", "384")
	t.Setenv("EMBED_BATCH_SIZE", "not-a-number")
	t.Setenv("ARCHIVE_ENABLED", "false")
	t.Setenv("CORS_ORIGINS", "http://a.local, ,http://b.local")

	cfg := LoadConfig()

	assert.Equal(t, DriverSQLite, cfg.RawStoreDriver)
	assert.Equal(t, DriverMemory, cfg.VectorStoreDriver)
	assert.Equal(t, 384, cfg.EmbedDim)
	assert.Equal(t, 10, cfg.EmbedBatchSize)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CorsOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		RawStoreDriver:      DriverPostgres,
		VectorStoreDriver:   "milvus",
		EmbedDim:            0,
		EmbedMaxInputTokens: 256,
		ArchiveEnabled:      true,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL not set")
	assert.Contains(t, err.Error(), `VECTOR_STORE_DRIVER="milvus" not supported`)
	assert.Contains(t, err.Error(), "EMBED_DIM must be positive")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY not set")
	assert.Contains(t, err.Error(), "ARCHIVE_ENABLED requires")
}

func TestLoadRunConfigs(t *testing.T) {
	dir := t.TempDir()
	etlPath := filepath.Join(dir, "etl.yaml")
	require.NoError(t, os.WriteFile(etlPath, []byte(`
parameters:
  user_full_name: Paul Iusztin
  links:
    - https://medium.com/decodingml/an-end-to-end-framework
    - https://github.com/decodingml/llm-twin-course
`), 0o600))

	run, err := LoadETLRun(etlPath)
	require.NoError(t, err)
	assert.Equal(t, "Paul Iusztin", run.UserFullName)
	assert.Len(t, run.Links, 2)

	featPath := filepath.Join(dir, "features.yaml")
	require.NoError(t, os.WriteFile(featPath, []byte("parameters:\n  author_full_names: []\n"), 0o600))

	_, err = LoadFeatureRun(featPath)
	assert.ErrorContains(t, err, "author_full_names is required")
}
