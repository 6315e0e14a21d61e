package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the pipeline and the query API read from the
// environment. Optional integrations (Postgres, Redis, Kafka, ClickHouse) are
// enabled by the presence of their connection settings.
type Config struct {
	Env  string
	Addr string

	// DataDir holds ofac_list.csv and ofac_panel.csv when the csv backend is used.
	DataDir string
	// SourceBaseURL is the root for the raw list downloads.
	SourceBaseURL string
	// LedgerBackend selects "csv" (default) or "postgres".
	LedgerBackend string

	PostgresDSN string

	RedisURL      string
	PanelCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// AdminTokenHash is a bcrypt hash of the static admin API token. When set it
	// takes precedence over JWT validation for the run-trigger endpoint.
	AdminTokenHash string
	JWTSigningKey  string

	LogLevel  string
	LogFormat string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Env:                getenv("OFACTRACK_ENV", "development"),
		Addr:               getenv("OFACTRACK_ADDR", ":8080"),
		DataDir:            getenv("OFACTRACK_DATA_DIR", "data"),
		SourceBaseURL:      getenv("OFAC_BASE_URL", "https://www.treasury.gov/ofac/downloads"),
		LedgerBackend:      getenv("LEDGER_BACKEND", "csv"),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		RedisURL:           os.Getenv("REDIS_URL"),
		PanelCacheTTL:      getduration("PANEL_CACHE_TTL", 5*time.Minute),
		KafkaTopic:         getenv("KAFKA_TOPIC", "ofac.sanction-deltas"),
		ClickHouseAddr:     os.Getenv("CLICKHOUSE_ADDR"),
		ClickHouseDatabase: getenv("CLICKHOUSE_DATABASE", "ofactrack"),
		ClickHouseUsername: getenv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		AdminTokenHash:     os.Getenv("ADMIN_TOKEN_HASH"),
		JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "console"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
