package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/cache"
	"github.com/kailas-cloud/semdex/internal/chunk"
	"github.com/kailas-cloud/semdex/internal/config"
	"github.com/kailas-cloud/semdex/internal/convert"
	dbRedis "github.com/kailas-cloud/semdex/internal/db/redis"
	"github.com/kailas-cloud/semdex/internal/domain"
	logpkg "github.com/kailas-cloud/semdex/internal/logger"
	"github.com/kailas-cloud/semdex/internal/metrics"
	documentrepo "github.com/kailas-cloud/semdex/internal/repository/document"
	"github.com/kailas-cloud/semdex/internal/repository/embcache"
	fragmentrepo "github.com/kailas-cloud/semdex/internal/repository/fragment"
	chiTransport "github.com/kailas-cloud/semdex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/semdex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/semdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/semdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/semdex/internal/usecase/search"
	"github.com/kailas-cloud/semdex/internal/version"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

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

	logger.Info("Starting semdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register domain metrics explicitly (no init())
	metrics.Register()

	// Embedder chain — composition root
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	var embedder domain.Embedder = base
	if cfg.Embedding.Cache {
		embedder = embcache.New(base, store, cfg.Storage.KeyPrefix, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, logger)
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	converter := convert.New(cfg.Indexing.AllowedExtensions, logger)

	chunker, err := chunk.NewBuilder(chunk.Config{
		TargetSize: cfg.Chunking.TargetSize,
		Overlap:    cfg.Chunking.Overlap,
		Tolerance:  cfg.Chunking.Tolerance,
	})
	if err != nil {
		logger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	docRepo := documentrepo.New(store, cfg.Storage.KeyPrefix)
	fragRepo := fragmentrepo.New(store, cfg.Storage.KeyPrefix, cfg.Embedding.Dimensions)

	if err := fragRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to create fragment index", zap.Error(err))
	}

	queryCache := cache.New(cfg.Search.CacheCapacity)

	indexSvc := indexuc.New(
		converter, chunker, embedder, fragRepo, docRepo, queryCache,
		indexuc.Config{
			BatchSize:        cfg.Embedding.BatchSize,
			EmbedTimeout:     time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			StoreTimeout:     time.Duration(cfg.Database.OpTimeoutSec) * time.Second,
			OnEmbeddingError: indexuc.Policy(cfg.Indexing.OnEmbeddingError),
			RetryAttempts:    cfg.Indexing.RetryAttempts,
			RetryBaseDelay:   time.Duration(cfg.Indexing.RetryBaseDelayMs) * time.Millisecond,
		},
		logger,
	)

	searchSvc := searchuc.New(
		fragRepo, embedder, queryCache,
		searchuc.Config{
			DefaultTopK:    cfg.Search.DefaultTopK,
			MaxTopK:        cfg.Search.MaxTopK,
			EmbedTimeout:   time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			StoreTimeout:   time.Duration(cfg.Database.OpTimeoutSec) * time.Second,
			RetryAttempts:  cfg.Indexing.RetryAttempts,
			RetryBaseDelay: time.Duration(cfg.Indexing.RetryBaseDelayMs) * time.Millisecond,
		},
		logger,
	)

	healthSvc := healthuc.New(store, base)

	server := chiTransport.NewServer(indexSvc, searchSvc, healthSvc, converter, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
