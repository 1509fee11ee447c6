// internal/config/env.go
package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/retry"
)

// Env is everything read from the process environment (optionally seeded from .env).
type Env struct {
	Loyalty    integrations.Credentials
	Vending    integrations.Credentials
	ProductAPI integrations.Credentials

	DataDir        string // snapshot store
	OutputDir      string // aggregate output, logs
	HoldingDir     string // parent of per-run download dirs
	SKUMappingFile string
	SourcesFile    string

	SnapshotTZ     string
	RetryAttempts  int
	RetryDelay     time.Duration
	DBDriver       string
	DBDSN          string
	SyncInterval   time.Duration
	LogLevel       string
	LogFile        string
	AddTotalBranch bool
}

func LoadEnv() *Env {
	dataDir := getEnv("DATA_DIR", "data")
	outDir := getEnv("OUTPUT_DIR", ".")
	return &Env{
		Loyalty: integrations.Credentials{
			Username: getEnv("MY_USERNAME", ""),
			Password: getEnv("MY_PASSWORD", ""),
		},
		Vending: integrations.Credentials{
			Username: getEnv("VEND_USERNAME", ""),
			Password: getEnv("VEND_PASSWORD", ""),
		},
		ProductAPI: integrations.Credentials{
			StoreName: getEnv("STORENAME", ""),
			APIKey:    getEnv("APIKEY", ""),
			APISecret: getEnv("APISECRET", ""),
		},

		DataDir:        dataDir,
		OutputDir:      outDir,
		HoldingDir:     getEnv("HOLDING_DIR", filepath.Join(os.TempDir(), "drg-inventory")),
		SKUMappingFile: getEnv("SKU_MAPPING_FILE", ""),
		SourcesFile:    getEnv("SOURCES_FILE", "sources.json"),

		SnapshotTZ:     getEnv("SNAPSHOT_TZ", "Asia/Bangkok"),
		RetryAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 5),
		RetryDelay:     time.Duration(getEnvInt("RETRY_DELAY_SECONDS", 5)) * time.Second,
		DBDriver:       getEnv("DB_DRIVER", "sqlite"),
		DBDSN:          getEnv("DB_DSN", ""), // empty: inventory.db in OutputDir
		SyncInterval:   time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 3600)) * time.Second,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", filepath.Join(outDir, "logs", "inventory.log")),
		AddTotalBranch: getEnvBool("ADD_TOTAL_BRANCH", false),
	}
}

func (e *Env) Retry() retry.Policy {
	return retry.Policy{MaxAttempts: e.RetryAttempts, Delay: e.RetryDelay, Backoff: retry.BackoffFixed}
}

// Location resolves SnapshotTZ; an unknown zone falls back to UTC.
func (e *Env) Location() (*time.Location, bool) {
	loc, err := time.LoadLocation(e.SnapshotTZ)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// Credentials picks the env credentials a source needs.
func (e *Env) Credentials(source string) integrations.Credentials {
	switch source {
	case "loyalty":
		return e.Loyalty
	case "vending":
		return e.Vending
	case "productapi":
		return e.ProductAPI
	default:
		return integrations.Credentials{}
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
