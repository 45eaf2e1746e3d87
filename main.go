package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social-signin.app/payments/billing"
	stripeprovider "social-signin.app/payments/billing/stripe"
	"social-signin.app/payments/handlers"
	"social-signin.app/payments/internal/config"
	"social-signin.app/payments/internal/logger"
	"social-signin.app/payments/internal/metrics"
	"social-signin.app/payments/internal/ratelimit"
	"social-signin.app/payments/storage"
)

var version = "dev"

func main() {
	if versionBytes, err := os.ReadFile("VERSION"); err == nil {
		version = strings.TrimSpace(string(versionBytes))
	}

	godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		logger.Error("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	logger.Setup(cfg.LogLevel)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Release:          version,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			logger.Error("Failed to initialize Sentry", map[string]interface{}{
				"error": err.Error(),
			})
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	store, err := newStore(cfg)
	if err != nil {
		logger.Error("Failed to open registry store", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPrometheus(registry)

	provider := stripeprovider.New(cfg.StripeSecretKey, m)
	svc := billing.NewService(store, provider, m)

	server := handlers.NewHTTPServer(svc, handlers.Options{
		Version:        version,
		Limiter:        ratelimit.New(60, time.Minute),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Stripe backend starting", map[string]interface{}{
			"version": version,
			"port":    cfg.Port,
		})
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		logger.Error("Server failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("Shutting down", map[string]interface{}{
			"signal": sig.String(),
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var result *multierror.Error
		if err := httpServer.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
			httpServer.Close()
		}
		if err := store.Close(); err != nil {
			result = multierror.Append(result, err)
		}

		if err := result.ErrorOrNil(); err != nil {
			logger.Error("Shutdown finished with errors", map[string]interface{}{
				"error": err.Error(),
			})
			os.Exit(1)
		}

		logger.Info("Shutdown complete")
	}
}

func newStore(cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("Using in-memory registry; subscriptions are rediscovered from Stripe after restart")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewSQLiteStore(cfg.DatabaseURL)
}
