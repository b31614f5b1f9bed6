// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"petcare-workers/internal/common/camunda"
	"petcare-workers/internal/common/config"
	"petcare-workers/internal/common/database"
	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/common/observability"
	"petcare-workers/internal/common/validation"
	"petcare-workers/internal/engine"
	"petcare-workers/internal/engine/aggregate"
	"petcare-workers/internal/engine/match"
	"petcare-workers/internal/engine/tables"
	"petcare-workers/internal/places"
	"petcare-workers/internal/records"
	"petcare-workers/pkg/registry"

	// Discovery Workers
	dp "petcare-workers/internal/workers/discovery/discover-places"

	// Matching Workers
	cms "petcare-workers/internal/workers/matching/calculate-pet-match-score"
	fpm "petcare-workers/internal/workers/matching/find-pet-matches"
)

// backends holds the optional stores. Nil fields were not configured.
type backends struct {
	postgres *database.PostgresClient
	redis    *database.RedisClient
	es       *database.ElasticsearchClient
}

func (b *backends) close() {
	if b.postgres != nil {
		_ = b.postgres.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.Observability.ServiceName)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	stores := connectBackends(ctx, cfg, log)
	defer stores.close()

	// --- Matching and discovery engines ---
	tbl, err := tables.Load(cfg.Tables.Path)
	if err != nil {
		zapLog.Fatal("vocabulary tables failed to load", zap.Error(err))
	}

	primary, fallback := buildProviders(cfg, stores, log)
	eng := engine.New(engine.Options{
		Tables:   tbl,
		Provider: primary,
		Aggregator: aggregate.Config{
			WorkerLimit:   cfg.Discovery.WorkerLimit,
			CallTimeout:   config.GetDuration(cfg.Discovery.CallTimeout),
			Deadline:      config.GetDuration(cfg.Discovery.Deadline),
			MaxResults:    cfg.Discovery.MaxResults,
			DefaultRadius: cfg.Discovery.DefaultRadius,
		},
		Builder: match.BuilderConfig{
			Threshold:         cfg.Matching.Threshold,
			ParallelThreshold: cfg.Matching.ParallelThreshold,
			Workers:           cfg.Matching.Workers,
		},
		MaxExpansions: cfg.Discovery.MaxExpansions,
		Logger:        log,
	})
	var fallbackEngine *engine.Engine
	if fallback != nil {
		fallbackEngine = eng.WithProvider(fallback, log.WithFields(map[string]interface{}{"provider": "index"}))
	}

	// --- Activity registry and input schemas ---
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry failed to load", zap.String("path", cfg.Registry.Path), zap.Error(err))
	}
	validator, err := validation.NewValidator(reg.InputSchemas())
	if err != nil {
		zapLog.Fatal("activity schemas failed to compile", zap.Error(err))
	}

	var source records.RecordSource
	if stores.postgres != nil {
		source = records.NewPostgresSource(stores.postgres.DB)
	}

	// --- Register workers ---
	workers := camunda.NewWorkers(zeebe.GetClient(), log)

	if _, ok := reg.Find(dp.TaskType); ok {
		wcfg := config.GetWorkerConfig(cfg, dp.TaskType)
		handler, err := dp.NewHandler(dp.HandlerOptions{
			Config:        &dp.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			Engine:        eng,
			Fallback:      fallbackEngine,
			Validator:     validator,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to build handler", zap.String("taskType", dp.TaskType), zap.Error(err))
		}
		workers.Start(dp.TaskType, wcfg, handler.Handle)
	}

	if _, ok := reg.Find(fpm.TaskType); ok {
		wcfg := config.GetWorkerConfig(cfg, fpm.TaskType)
		handler, err := fpm.NewHandler(fpm.HandlerOptions{
			Config: &fpm.Config{
				Timeout:    config.GetDuration(wcfg.Timeout),
				PoolLimit:  cfg.Matching.PoolLimit,
				MaxResults: fpm.LoadConfig().MaxResults,
			},
			Engine:        eng,
			Source:        source,
			Validator:     validator,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to build handler", zap.String("taskType", fpm.TaskType), zap.Error(err))
		}
		workers.Start(fpm.TaskType, wcfg, handler.Handle)
	}

	if _, ok := reg.Find(cms.TaskType); ok {
		wcfg := config.GetWorkerConfig(cfg, cms.TaskType)
		handler, err := cms.NewHandler(&cms.Config{Timeout: config.GetDuration(wcfg.Timeout)}, eng, validator, obs, log)
		if err != nil {
			zapLog.Fatal("failed to build handler", zap.String("taskType", cms.TaskType), zap.Error(err))
		}
		workers.Start(cms.TaskType, wcfg, handler.Handle)
	}

	zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.Running()))

	// --- Health & Metrics Server ---
	srv := newHTTPServer(cfg.App.HTTPPort, zeebe, stores)
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.CloseAll(20 * time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// connectBackends opens each configured store. Postgres is retried because
// matching cannot load pools without it; Redis and Elasticsearch are optional
// and a failed ping only disables them.
func connectBackends(ctx context.Context, cfg *config.Config, log logger.Logger) *backends {
	b := &backends{}

	if cfg.Database.Postgres.Enabled() {
		err := camunda.Retry(ctx, &camunda.RetryConfig{MaxRetries: 15, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
			log, "PostgreSQL connection", func(ctx context.Context) error {
				pg, err := database.NewPostgres(cfg.Database.Postgres)
				if err != nil {
					return err
				}
				if err := pg.Ping(ctx); err != nil {
					_ = pg.Close()
					return err
				}
				b.postgres = pg
				return nil
			})
		if err != nil {
			log.Error("postgres unavailable, matching requires inline pools", map[string]interface{}{"error": err.Error()})
		} else {
			log.Info("PostgreSQL connected successfully", nil)
		}
	}

	if cfg.Database.Redis.Address != "" && cfg.Places.DetailCacheTTL > 0 {
		rdb := database.NewRedis(cfg.Database.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, place detail cache disabled", map[string]interface{}{"error": err.Error()})
			_ = rdb.Close()
		} else {
			b.redis = rdb
			log.Info("Redis connected successfully", nil)
		}
	}

	if len(cfg.Database.Elasticsearch.GetAddresses()) > 0 {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = esClient.Ping(pingCtx)
			cancel()
		}
		if err != nil {
			log.Warn("elasticsearch unavailable, discovery fallback disabled", map[string]interface{}{"error": err.Error()})
		} else {
			b.es = esClient
			log.Info("Elasticsearch connected successfully", nil)
		}
	}

	return b
}

// buildProviders returns the primary place provider and, when the index is
// reachable, the fallback one.
func buildProviders(cfg *config.Config, b *backends, log logger.Logger) (aggregate.PlaceProvider, aggregate.PlaceProvider) {
	var primary places.Provider = places.NewGoogleClient(places.GoogleConfig{
		BaseURL:           cfg.Places.BaseURL,
		APIKey:            cfg.Places.APIKey,
		Timeout:           config.GetDuration(cfg.Places.Timeout),
		RequestsPerSecond: cfg.Places.RequestsPerSecond,
		Burst:             cfg.Places.Burst,
	})
	if b.redis != nil {
		ttl := time.Duration(cfg.Places.DetailCacheTTL) * time.Second
		primary = places.NewCachedProvider(primary, b.redis.Client, ttl, log)
	}

	var fallback aggregate.PlaceProvider
	if b.es != nil {
		fallback = places.NewIndexProvider(b.es.Client, cfg.Places.FallbackIndex, 0)
	}
	return primary, fallback
}

func newHTTPServer(port int, zeebe *camunda.Client, b *backends) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"zeebe": "ok"}
		status := http.StatusOK
		if err := zeebe.HealthCheck(ctx); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if b.postgres != nil {
			checks["postgres"] = "ok"
			if err := b.postgres.Ping(ctx); err != nil {
				checks["postgres"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		checks["time"] = time.Now().Format(time.RFC3339)
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
