package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"retailetl/internal/sink"
)

// ── Configuration ───────────────────────────────────────────
// Sink settings come from the environment, defaulted for a local
// development setup. The variable names follow the deployment's
// existing contract, so the relational block keeps its POSTGRES_*
// names even when RELATIONAL_DRIVER selects mysql.

// Config is everything the program needs beyond the directory flags.
type Config struct {
	Relational  sink.RelationalConfig
	Document    sink.DocumentConfig
	CatalogPath string
}

// Load reads the configuration from the environment.
// A missing or empty variable falls back to its default; a
// malformed number is logged and falls back too.
func Load() Config {
	return Config{
		Relational: sink.RelationalConfig{
			Driver:   getenv("RELATIONAL_DRIVER", sink.DriverPostgres),
			Host:     getenv("POSTGRES_HOST", "localhost"),
			Port:     getenvInt("POSTGRES_PORT", 0), // 0 = driver default port
			User:     getenv("POSTGRES_USER", "postgres"),
			Password: getenv("POSTGRES_PASSWORD", "postgres"),
			Database: getenv("POSTGRES_DB", "retail_intelligence"),
			SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		},
		Document: sink.DocumentConfig{
			URI:      getenv("MONGO_URI", "mongodb://localhost:27017/"),
			Database: getenv("MONGO_DB", "retail_intelligence"),
		},
		CatalogPath: getenv("CATALOG_PATH", filepath.Join("data", "catalog.db")),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[CONFIG] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
