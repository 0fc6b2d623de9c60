package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
	DriverQdrant   = "qdrant"
	DriverPgvector = "pgvector"
)

type Config struct {
	LogMode string

	RawStoreDriver string
	DatabaseURL    string
	DatabaseName   string
	SslCertPath    string
	SQLitePath     string

	VectorStoreDriver string
	QdrantURL         string
	QdrantAPIKey      string

	AIAPIKey            string
	EmbedModel          string
	EmbedDim            int
	EmbedMaxInputTokens int
	EmbedBatchSize      int
	GenModel            string

	GitHubToken         string
	CrawlTimeoutSeconds int

	ArchiveEnabled bool
	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string

	Port        string
	JWTSecret   string
	CorsOrigins []string
	Workers     int
}

// LoadConfig loads .env (if present) and the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		LogMode: getEnv("LOG_MODE", "development"),

		RawStoreDriver: strings.ToLower(getEnv("RAW_STORE_DRIVER", DriverPostgres)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabaseName:   getEnv("DATABASE_NAME", "contexta"),
		SslCertPath:    getEnv("SSL_CERT_PATH", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "contexta.db"),

		VectorStoreDriver: strings.ToLower(getEnv("VECTOR_STORE_DRIVER", DriverQdrant)),
		QdrantURL:         getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:      getEnv("QDRANT_API_KEY", ""),

		AIAPIKey:            getEnv("GEMINI_API_KEY", ""),
		EmbedModel:          getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:            getEnvInt("EMBED_DIM", 768),
		EmbedMaxInputTokens: getEnvInt("EMBED_MAX_INPUT_TOKENS", 256),
		EmbedBatchSize:      getEnvInt("EMBED_BATCH_SIZE", 10),
		GenModel:            getEnv("GEN_MODEL", "gemini-1.5-flash"),

		GitHubToken:         getEnv("GITHUB_TOKEN", ""),
		CrawlTimeoutSeconds: getEnvInt("CRAWL_TIMEOUT_SECONDS", 30),

		ArchiveEnabled: getEnvBool("ARCHIVE_ENABLED", false),
		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", "contexta-runs"),

		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CorsOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		Workers:     getEnvInt("WORKERS", 2),
	}
}

// Validate reports every missing setting required by the selected drivers.
func (c *Config) Validate() error {
	var errs []error

	switch c.RawStoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH not set"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("RAW_STORE_DRIVER=%q not supported", c.RawStoreDriver))
	}

	switch c.VectorStoreDriver {
	case DriverQdrant:
		if c.QdrantURL == "" {
			errs = append(errs, errors.New("QDRANT_URL not set"))
		}
	case DriverPgvector:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("VECTOR_STORE_DRIVER=%q not supported", c.VectorStoreDriver))
	}

	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, errors.New("EMBED_DIM must be positive"))
	}
	if c.EmbedMaxInputTokens <= 0 {
		errs = append(errs, errors.New("EMBED_MAX_INPUT_TOKENS must be positive"))
	}
	if c.ArchiveEnabled && (c.AwsAccessKey == "" || c.AwsSecretKey == "") {
		errs = append(errs, errors.New("ARCHIVE_ENABLED requires AWS_ACCESS_KEY and AWS_SECRET_KEY"))
	}

	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
