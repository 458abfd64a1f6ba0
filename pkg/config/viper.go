// Package config initializes the application's configuration. It uses
// the Viper library to read settings from a config file and
// environment variables, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and
// enables reading from environment variables. Call once at startup.
func InitConfig() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/orb-image-harvester/")
	viper.AddConfigPath("$HOME/.orb-image-harvester")

	viper.SetDefault("log.development", false)

	// Pipeline shape.
	viper.SetDefault("harvest.workers", 4)
	viper.SetDefault("harvest.per_query_limit", 5)
	viper.SetDefault("harvest.rate_limit_cooldown", "30s")

	// Download validation gates.
	viper.SetDefault("validator.timeout", "15s")
	viper.SetDefault("validator.max_bytes", 5*1024*1024)
	viper.SetDefault("validator.min_dimension", 200)
	viper.SetDefault("validator.max_long_edge", 1024)
	viper.SetDefault("validator.min_aspect", 0.3)
	viper.SetDefault("validator.max_aspect", 3.0)
	viper.SetDefault("validator.max_retries", 2)
	viper.SetDefault("validator.retry_backoff", "500ms")

	// Source adapters. CSE stays disabled until both credentials are set.
	viper.SetDefault("sources.wikidata.enabled", true)
	viper.SetDefault("sources.wikidata.min_interval", "1s")
	viper.SetDefault("sources.commons.enabled", true)
	viper.SetDefault("sources.commons.min_interval", "1s")
	viper.SetDefault("sources.wikipedia.enabled", true)
	viper.SetDefault("sources.wikipedia.min_interval", "1s")
	viper.SetDefault("sources.cse.api_key", "")
	viper.SetDefault("sources.cse.engine_id", "")
	viper.SetDefault("sources.cse.min_interval", "2s")
	viper.SetDefault("sources.cse.daily_quota", 100)

	// Persistence and side channels.
	viper.SetDefault("store.provider", "memory") // memory | postgres
	viper.SetDefault("store.postgres.dsn", "")
	viper.SetDefault("store.retries", 2)
	viper.SetDefault("store.retry_backoff", "1s")
	viper.SetDefault("archive.provider", "noop") // noop | local | gcs
	viper.SetDefault("archive.local.root", "data/archive")
	viper.SetDefault("archive.gcs.bucket", "")
	viper.SetDefault("events.provider", "noop") // noop | pubsub
	viper.SetDefault("events.gcp.project_id", "")
	viper.SetDefault("events.topic", "figure-coverage-completed")

	// Ops endpoint.
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.addr", ":8080")

	viper.SetEnvPrefix("HARVESTER") // e.g. HARVESTER_STORE_PROVIDER=postgres
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
