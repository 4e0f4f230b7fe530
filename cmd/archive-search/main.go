package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/config"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/db"
	dbBadger "github.com/Eddie-Kan/research-archive-website-sub001/internal/db/badger"
	dbMemory "github.com/Eddie-Kan/research-archive-website-sub001/internal/db/memory"
	dbRedis "github.com/Eddie-Kan/research-archive-website-sub001/internal/db/redis"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/request"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/lexical"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/vector"
	logpkg "github.com/Eddie-Kan/research-archive-website-sub001/internal/logger"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/metrics"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/repository/embcache"
	embrepo "github.com/Eddie-Kan/research-archive-website-sub001/internal/repository/embedding"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/repository/seed"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/tracing"
	chiTransport "github.com/Eddie-Kan/research-archive-website-sub001/internal/transport/chi"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/transport/hashembed"
	openaiEmb "github.com/Eddie-Kan/research-archive-website-sub001/internal/transport/openai"
	embeddinguc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/embedding"
	healthuc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/health"
	indexinguc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/indexing"
	searchuc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/search"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/version"
)

func main() {
	// Optional .env for local runs; real environment variables win.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting archive search server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("model_version", cfg.Embedding.ModelVersion),
	)

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "archive-search",
		Version:     version.Version,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	store, err := createStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Embedder chains share one provider
	base := buildProvider(cfg.Embedding, logger)
	docEmbedder := buildEmbedder(base, cfg.Embedding, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := buildEmbedder(base, cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	// Indexes and use case services
	lex := lexical.New(lexical.WithInconsistencyHook(indexinguc.InconsistencyHook(logger)))
	vec := vector.New(cfg.Embedding.ModelVersion, cfg.Embedding.Dimensions)

	indexSvc, err := indexinguc.New(lex, vec, embrepo.New(store, logger), docEmbedder, indexinguc.Config{
		Async:          cfg.Embedding.AsyncEnabled(),
		Workers:        cfg.Embedding.Workers,
		RetryAttempts:  cfg.Embedding.RetryAttempts,
		RetryBaseDelay: time.Duration(cfg.Embedding.RetryBaseDelayMs) * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create indexing service", zap.Error(err))
	}

	if err := bootstrap(ctx, indexSvc, cfg.Index.SeedPath, logger); err != nil {
		logger.Fatal("Failed to bootstrap index", zap.Error(err))
	}

	searchSvc := searchuc.New(lex, vec, queryEmbedder,
		searchuc.WithLookup(lex),
		searchuc.WithLogger(logger),
	)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(base), vec)

	server := chiTransport.NewServer(searchSvc, indexSvc, healthSvc, request.Limits{
		DefaultLimit:     cfg.Search.DefaultLimit,
		MaxLimit:         cfg.Search.MaxLimit,
		DefaultTopK:      cfg.Search.DefaultTopK,
		MaxTopK:          cfg.Search.MaxTopK,
		DefaultThreshold: cfg.Search.DefaultThreshold,
	}, logger)

	r := chiTransport.NewRouter(server, cfg.Auth.APIKeys,
		jsonRecoverer(logger),
		chiMiddleware.RequestID,
		wideEventMiddleware(logger),
		metrics.Middleware(),
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := indexSvc.Drain(shutdownCtx); err != nil {
		logger.Warn("Embedding jobs still running at shutdown", zap.Error(err))
	}
	indexSvc.Close()

	logger.Info("Server stopped gracefully")
}

func createStore(cfg config.DatabaseConfig, logger *zap.Logger) (db.Store, error) {
	switch cfg.Driver {
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return s, nil
	case "badger":
		s, err := dbBadger.Open(dbBadger.Config{Path: cfg.Path, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return s, nil
	case "memory":
		return dbMemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// bootstrap indexes the seed entities and restores stored vectors, then
// queues embedding for whatever is left stale without holding up startup.
// A missing seed file starts empty.
func bootstrap(ctx context.Context, svc *indexinguc.Service, path string, logger *zap.Logger) error {
	var entities []entity.Entity
	if path != "" {
		var err error
		entities, err = seed.LoadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("Seed file not found, starting with an empty index", zap.String("path", path))
		case err != nil:
			return fmt.Errorf("load seed: %w", err)
		}
	}

	if err := svc.Bootstrap(ctx, entities); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	go func() {
		n, err := svc.ReembedStale(ctx)
		if err != nil {
			logger.Warn("Failed to schedule stale embeddings", zap.Int("jobs", n), zap.Error(err))
			return
		}
		logger.Info("Scheduled stale embeddings", zap.Int("jobs", n))
	}()
	return nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildProvider creates the base embedding provider.
func buildProvider(cfg config.EmbeddingConfig, logger *zap.Logger) domain.Embedder {
	if cfg.Provider == "openai" {
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Logger:     logger,
		})
	}
	return hashembed.New(cfg.Dimensions)
}

// buildEmbedder assembles the decorator chain: Provider -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Cache {
		embedder = embcache.New(base, store, cfg.ModelVersion,
			time.Duration(cfg.CacheTTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embeddinguc.Options{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	// Instruction prefix is outermost, so cache keys include it
	return domain.NewInstructionEmbedder(embedder, instruction)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("Panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorResponseCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
// Each request runs under a server span so use case spans share its trace.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ctx, span := tracing.Start(r.Context(), "http "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
					attribute.String("request.id", requestID),
				),
			)
			defer span.End()

			reqLogger := logger.With(zap.String("request_id", requestID))
			if traceID := tracing.TraceID(ctx); traceID != "" {
				reqLogger = reqLogger.With(zap.String("trace_id", traceID))
			}
			ctx = logpkg.ContextWithLogger(ctx, reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", ww.Status()))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
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
