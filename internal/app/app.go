// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/api"
	"github.com/zimaxnet/orb-image-harvester/internal/blob"
	"github.com/zimaxnet/orb-image-harvester/internal/clock/system"
	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
	"github.com/zimaxnet/orb-image-harvester/internal/logging"
	pubmemory "github.com/zimaxnet/orb-image-harvester/internal/publisher/memory"
	gcppublisher "github.com/zimaxnet/orb-image-harvester/internal/publisher/pubsub"
	"github.com/zimaxnet/orb-image-harvester/internal/source"
	"github.com/zimaxnet/orb-image-harvester/internal/source/ratelimit"
	storememory "github.com/zimaxnet/orb-image-harvester/internal/store/memory"
	"github.com/zimaxnet/orb-image-harvester/internal/store/postgres"
	"github.com/zimaxnet/orb-image-harvester/internal/worker"
)

const shutdownTimeout = 5 * time.Second

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and handed to the commands.
type App struct {
	logger  *zap.Logger
	store   harvest.CoverageStore
	archive harvest.BlobStore
	events  harvest.Publisher
	server  *api.Server

	closers []func() error
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger { return a.logger }

// GetStore exposes the configured coverage store.
func (a *App) GetStore() harvest.CoverageStore { return a.store }

// NewApp creates and initializes a new App from the loaded
// configuration. It instantiates the configured providers and fails
// fast if any critical service cannot be initialized.
func NewApp(ctx context.Context) (*App, error) {
	l := logging.L
	l.Info("Initializing application services...")
	a := &App{logger: l}

	// 1. Coverage store.
	switch provider := viper.GetString("store.provider"); provider {
	case "postgres":
		dsn := viper.GetString("store.postgres.dsn")
		if dsn == "" {
			return nil, fmt.Errorf("store provider is 'postgres' but store.postgres.dsn is not set")
		}
		l.Info("Connecting to PostgreSQL...")
		store, err := postgres.NewCoverageStore(ctx, dsn, l)
		if err != nil {
			return nil, fmt.Errorf("initialize store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("initialize store: %w", err)
		}
		a.store = store
	case "memory":
		l.Info("Using in-memory coverage store. Documents will not survive the process.")
		a.store = storememory.NewCoverageStore()
	default:
		return nil, fmt.Errorf("unknown store provider: %s", provider)
	}

	// 2. Image archive.
	switch provider := viper.GetString("archive.provider"); provider {
	case "gcs":
		bucket := viper.GetString("archive.gcs.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("archive provider is 'gcs' but archive.gcs.bucket is not set")
		}
		l.Info("Using GCS image archive", zap.String("bucket", bucket))
		gcs, err := blob.NewGCSStore(ctx, bucket, l)
		if err != nil {
			return nil, fmt.Errorf("initialize archive: %w", err)
		}
		a.archive = gcs
		a.closers = append(a.closers, gcs.Close)
	case "local":
		root := viper.GetString("archive.local.root")
		l.Info("Using local image archive", zap.String("root", root))
		local, err := blob.NewLocalStore(root)
		if err != nil {
			return nil, fmt.Errorf("initialize archive: %w", err)
		}
		a.archive = local
	case "noop":
		l.Info("Image archival disabled; accepted images keep source URLs only.")
		a.archive = blob.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", provider)
	}

	// 3. Completion events.
	switch provider := viper.GetString("events.provider"); provider {
	case "pubsub":
		projectID := viper.GetString("events.gcp.project_id")
		if projectID == "" {
			return nil, fmt.Errorf("events provider is 'pubsub' but events.gcp.project_id is not set")
		}
		l.Info("Connecting to GCP Pub/Sub", zap.String("project", projectID))
		pub, err := gcppublisher.New(ctx, projectID, l)
		if err != nil {
			return nil, fmt.Errorf("initialize events: %w", err)
		}
		a.events = pub
		a.closers = append(a.closers, pub.Close)
	case "noop":
		l.Info("Completion events disabled.")
		a.events = pubmemory.New()
	default:
		return nil, fmt.Errorf("unknown events provider: %s", provider)
	}

	if viper.GetBool("server.enabled") {
		a.server = api.New(viper.GetString("server.addr"), a.store, l)
		a.server.Start()
	}

	l.Info("Application services initialized successfully.")
	return a, nil
}

// NewPool assembles the harvest worker pool from the configured source
// adapters and validation gates.
func (a *App) NewPool() (*worker.Pool, error) {
	var sources []harvest.Source

	if viper.GetBool("sources.wikidata.enabled") {
		sources = append(sources, source.NewWikidata(
			source.WikidataConfig{Timeout: viper.GetDuration("validator.timeout")},
			ratelimit.New("wikidata", ratelimit.Config{MinInterval: viper.GetDuration("sources.wikidata.min_interval")}),
			a.logger,
		))
	}
	if viper.GetBool("sources.commons.enabled") {
		sources = append(sources, source.NewCommons(
			source.CommonsConfig{Timeout: viper.GetDuration("validator.timeout")},
			ratelimit.New("commons", ratelimit.Config{MinInterval: viper.GetDuration("sources.commons.min_interval")}),
			a.logger,
		))
	}
	if viper.GetBool("sources.wikipedia.enabled") {
		sources = append(sources, source.NewWikipedia(
			source.WikipediaConfig{Timeout: viper.GetDuration("validator.timeout")},
			ratelimit.New("wikipedia", ratelimit.Config{MinInterval: viper.GetDuration("sources.wikipedia.min_interval")}),
			a.logger,
		))
	}
	if key := viper.GetString("sources.cse.api_key"); key != "" {
		cse, err := source.NewCSE(
			source.CSEConfig{APIKey: key, EngineID: viper.GetString("sources.cse.engine_id")},
			ratelimit.New("cse", ratelimit.Config{
				MinInterval: viper.GetDuration("sources.cse.min_interval"),
				DailyQuota:  viper.GetInt("sources.cse.daily_quota"),
			}),
			a.logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initialize cse source: %w", err)
		}
		sources = append(sources, cse)
	} else {
		a.logger.Info("No CSE credential configured; running without commercial search.")
	}
	if len(sources) == 0 {
		a.logger.Warn("No sources enabled; every slot will resolve to its placeholder.")
	}

	vcfg := harvest.DefaultValidatorConfig()
	vcfg.Timeout = viper.GetDuration("validator.timeout")
	vcfg.MaxBytes = viper.GetInt64("validator.max_bytes")
	vcfg.MinDimension = viper.GetInt("validator.min_dimension")
	vcfg.MaxLongEdge = viper.GetInt("validator.max_long_edge")
	vcfg.MinAspect = viper.GetFloat64("validator.min_aspect")
	vcfg.MaxAspect = viper.GetFloat64("validator.max_aspect")
	vcfg.MaxRetries = viper.GetInt("validator.max_retries")
	vcfg.RetryBackoff = viper.GetDuration("validator.retry_backoff")

	clock := system.New()
	orch := harvest.NewOrchestrator(
		sources,
		harvest.NewImageValidator(vcfg, clock, a.logger),
		harvest.NewDedupIndex(),
		clock,
		harvest.OrchestratorConfig{
			PerQueryLimit:     viper.GetInt("harvest.per_query_limit"),
			RateLimitCooldown: viper.GetDuration("harvest.rate_limit_cooldown"),
		},
		a.logger,
	)

	return worker.NewPool(orch, a.store, a.archive, a.events, clock, worker.Config{
		Workers:           viper.GetInt("harvest.workers"),
		StoreRetries:      viper.GetInt("store.retries"),
		StoreRetryBackoff: viper.GetDuration("store.retry_backoff"),
		EventTopic:        viper.GetString("events.topic"),
	}, a.logger), nil
}

// Close gracefully shuts down all services in the container. It is
// called by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("Error stopping ops server", zap.Error(err))
		}
		cancel()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
		}
	}
	a.store.Close()
	// Best effort; stderr may be gone already.
	_ = a.logger.Sync()
}
