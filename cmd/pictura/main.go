package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/config"
	"github.com/kailas-cloud/pictura/internal/db"
	"github.com/kailas-cloud/pictura/internal/db/postgres"
	dbValkey "github.com/kailas-cloud/pictura/internal/db/valkey"
	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/extractor"
	logpkg "github.com/kailas-cloud/pictura/internal/logger"
	"github.com/kailas-cloud/pictura/internal/metrics"
	budgetrepo "github.com/kailas-cloud/pictura/internal/repository/budget"
	"github.com/kailas-cloud/pictura/internal/repository/featcache"
	paintingrepo "github.com/kailas-cloud/pictura/internal/repository/painting"
	chiTransport "github.com/kailas-cloud/pictura/internal/transport/chi"
	"github.com/kailas-cloud/pictura/internal/transport/modelserver"
	openaiDesc "github.com/kailas-cloud/pictura/internal/transport/openai"
	catalogpkg "github.com/kailas-cloud/pictura/internal/usecase/catalog"
	describeuc "github.com/kailas-cloud/pictura/internal/usecase/describe"
	healthuc "github.com/kailas-cloud/pictura/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pictura/internal/usecase/ingest"
	recognitionuc "github.com/kailas-cloud/pictura/internal/usecase/recognition"
	usageuc "github.com/kailas-cloud/pictura/internal/usecase/usage"
	"github.com/kailas-cloud/pictura/internal/version"
)

const mb = 1 << 20

// budgetRetention keeps closed budget windows readable for a day.
const budgetRetention = 24 * time.Hour

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting pictura API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("extractor", cfg.Extractor.Driver),
		zap.Float64("threshold", cfg.Recognition.ThresholdValue()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catalog database
	pg, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(cfg.Database.MaxConnLifeMin) * time.Minute,
		MigrateOnStart:  cfg.Database.MigrateOnStart,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pg.Close()
	logger.Info("Connected to database")

	// Optional feature cache
	var cache db.CacheStore
	if cfg.Cache.Enabled {
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		cache = store
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Register recognition metrics explicitly (no init())
	metrics.RegisterRecognitionMetrics()

	gate := buildExtractor(cfg, cache, logger)
	gate.Start(ctx)

	repo := paintingrepo.New(pg.Pool())

	recognitionSvc := recognitionuc.New(gate, repo, cfg.Recognition.ThresholdValue(), logger).
		WithViewCountTimeout(time.Duration(cfg.Recognition.ViewCountTimeout) * time.Second)
	catalogSvc := catalogpkg.New(repo)
	fetcher := ingestuc.NewHTTPFetcher(
		&http.Client{},
		int64(cfg.Ingest.MaxImageMB)*mb,
		time.Duration(cfg.Ingest.FetchTimeoutSec)*time.Second,
	)
	ingestSvc := ingestuc.New(gate, repo, fetcher, logger).
		WithConcurrency(cfg.Ingest.Concurrency).
		WithMaxBatchSize(cfg.Ingest.MaxBatchSize)

	// Single BudgetTracker shared by the describer and the usage report.
	budget := buildBudget(ctx, cfg, cache, logger)
	describeSvc := describeuc.New(repo, buildDescriber(cfg, budget, logger), logger)

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	// Pass nil interface (not typed nil pointer) when the cache is disabled.
	var cachePinger healthuc.Pinger
	if cache != nil {
		cachePinger = cache
	}
	healthSvc := healthuc.New(pg, cachePinger, gate)

	server := chiTransport.NewServer(recognitionSvc, catalogSvc, ingestSvc, describeSvc, usageSvc, healthSvc, logger).
		WithMaxUploadBytes(int64(cfg.HTTP.MaxUploadMB) * mb)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	recognitionSvc.Wait()

	logger.Info("Server stopped gracefully")
}

// buildExtractor assembles the decorator chain: base -> Cached -> Instrumented -> Gate.
// The gate is outermost so nothing reaches the model before it is loaded.
func buildExtractor(cfg config.Config, cache db.CacheStore, logger *zap.Logger) *extractor.Gate {
	var (
		base   domain.Extractor
		loader extractor.Loader
		model  string
	)

	switch cfg.Extractor.Driver {
	case config.ExtractorLocal:
		local, err := extractor.NewLocal(cfg.Extractor.Grid)
		if err != nil {
			logger.Fatal("Failed to create local extractor", zap.Error(err))
		}
		base = local.WithMaxPixels(cfg.Extractor.MaxPixels)
		model = fmt.Sprintf("local-grid-%d", cfg.Extractor.Grid)
	default:
		client, err := modelserver.New(modelserver.Config{
			URL:              cfg.Extractor.URL,
			Model:            cfg.Extractor.Model,
			InputSize:        cfg.Extractor.InputSize,
			Dimensions:       cfg.Extractor.Dimensions,
			MaxPixels:        cfg.Extractor.MaxPixels,
			RequestTimeout:   time.Duration(cfg.Extractor.RequestTimeout) * time.Second,
			ReadinessTimeout: time.Duration(cfg.Extractor.ReadinessTimeout) * time.Second,
			PollInterval:     time.Duration(cfg.Extractor.PollIntervalMs) * time.Millisecond,
			Logger:           logger,
		})
		if err != nil {
			logger.Fatal("Failed to create model server client", zap.Error(err))
		}
		base = client
		loader = client
		model = cfg.Extractor.Model
	}

	ext := base
	if cache != nil {
		ext = featcache.New(base, cache, model,
			time.Duration(cfg.Cache.FeatureTTLHours)*time.Hour, metrics.FeatureCacheTotal, logger)
	}
	ext = extractor.NewInstrumented(ext, cfg.Extractor.Driver, logger)

	logger.Info("Extractor created",
		zap.String("driver", cfg.Extractor.Driver),
		zap.String("model", model),
		zap.Int("dimensions", cfg.Extractor.Dimensions),
	)
	return extractor.NewGate(ext, loader, logger)
}

// buildBudget returns nil when no token limit is configured.
// Counters persist in the cache when it is enabled.
func buildBudget(ctx context.Context, cfg config.Config, cache db.CacheStore, logger *zap.Logger) *describeuc.BudgetTracker {
	bc := cfg.Description.Budget
	if !cfg.Description.Enabled || (bc.DailyTokenLimit == 0 && bc.MonthlyTokenLimit == 0) {
		return nil
	}

	action := describeuc.BudgetActionWarn
	if bc.Action == "reject" {
		action = describeuc.BudgetActionReject
	}
	budget := describeuc.NewBudgetTracker(
		cfg.Description.Provider, cfg.Description.Model,
		bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, logger,
	)
	if cache != nil {
		budget.WithStore(ctx, budgetrepo.New(cache, budgetRetention))
	}
	return budget
}

// buildDescriber assembles OpenAI -> Budgeted. It returns nil when description
// generation is disabled, so the template is used.
func buildDescriber(cfg config.Config, budget *describeuc.BudgetTracker, logger *zap.Logger) domain.Describer {
	if !cfg.Description.Enabled {
		return nil
	}
	var describer domain.Describer = openaiDesc.NewDescriber(&openaiDesc.Config{
		APIKey:    cfg.Description.APIKey,
		BaseURL:   cfg.Description.BaseURL,
		Model:     cfg.Description.Model,
		MaxTokens: cfg.Description.MaxTokens,
		Provider:  cfg.Description.Provider,
		Logger:    logger,
	})
	if budget != nil {
		describer = describeuc.NewBudgeted(describer, budget)
	}
	return describer
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			var route string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
