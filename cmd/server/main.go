package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gtranslate-go/internal/breaker"
	"gtranslate-go/internal/concurrency"
	"gtranslate-go/internal/config"
	"gtranslate-go/internal/credential"
	"gtranslate-go/internal/dedup"
	"gtranslate-go/internal/kvstore"
	"gtranslate-go/internal/logging"
	"gtranslate-go/internal/middleware"
	srv "gtranslate-go/internal/server"
	"gtranslate-go/internal/transcache"
	"gtranslate-go/internal/translate"
	"gtranslate-go/internal/upstream"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}
	logging.GetStreamLogger()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		watcher, err := config.NewWatcher(path, func(next *config.Config) {
			logging.SetLevel(next.LogLevel)
		})
		if err != nil {
			log.WithError(err).Warn("config watcher unavailable")
		} else {
			defer watcher.Close()
		}
	}

	store := kvstore.NewFromConfig(cfg)
	if !store.Available() {
		log.Warn("KV store is not configured; credential loads and auth validation will deny")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Health(ctx); err != nil {
			log.WithError(err).Warn("KV store did not answer the startup ping")
		}
		cancel()
	}
	defer func() { _ = store.Close() }()

	pool := credential.NewPool(store, cfg.CredentialCacheTTL())
	cache := transcache.New(store, cfg.TranslationCacheTTL(), cfg.KeyCacheSize)
	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.CircuitFailureThreshold,
		SuccessThreshold: cfg.CircuitSuccessThreshold,
		Timeout:          cfg.CircuitTimeout(),
	})
	executor := upstream.NewExecutor(upstream.NewHTTPClient(os.Getenv("PROXY_URL")), breakers, cfg.RequestTimeout())
	sem := concurrency.NewSemaphore(cfg.ParallelTranslationLimit)
	engine := translate.NewEngine(translate.Settings{
		Model:             cfg.GeminiModel,
		BaseURL:           cfg.GeminiBaseURL,
		APIVersion:        cfg.GeminiAPIVersion,
		SystemInstruction: cfg.SystemInstruction,
		MaxAttempts:       cfg.MaxRetries,
	}, cache, pool, executor, sem)
	coalescer := dedup.NewCoalescer(cfg.RequestDedupTTL())

	startAuthSweep(cfg, pool)

	server := srv.New(cfg, store, pool, engine, executor, coalescer)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(),
	}

	go func() {
		log.WithField("port", cfg.Port).Info("gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}

// startAuthSweep periodically removes expired auth secrets, mirroring the
// operator tooling's cleanup.
func startAuthSweep(cfg *config.Config, pool *credential.Pool) {
	interval := cfg.AuthSweepInterval()
	if interval <= 0 || !cfg.StoreConfigured() {
		return
	}
	middleware.SafeGo(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := pool.PruneExpiredAuths(ctx); err != nil {
				log.WithError(err).Warn("auth sweep failed")
			}
			cancel()
		}
	})
}
