package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/adapters/geoip"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/config"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/services"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/logger"
)

const (
	shutdownTimeout = 5 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Repository
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Initialize Service
	opts := []services.Option{
		services.WithBaseURL(cfg.BaseURL),
		services.WithLocation(cfg.Location()),
	}
	if cfg.GeoIPDatabase != "" {
		resolver, err := geoip.Open(cfg.GeoIPDatabase)
		if err != nil {
			log.Warn("geoip disabled", "path", cfg.GeoIPDatabase, "error", err)
		} else {
			defer resolver.Close()
			opts = append(opts, services.WithGeoResolver(resolver))
		}
	}
	service := services.NewLinkService(repo, opts...)

	limiter := handler.NewIPRateLimiter(cfg.RateLimitBurst, cfg.RateLimitPeriod)
	go limiter.Run(ctx, sweepInterval)

	// Initialize Router
	mux := handler.NewRouter(cfg, handler.Deps{
		Service: service,
		Store:   repo,
		Metrics: handler.NewMetrics(prometheus.NewRegistry()),
		Limiter: limiter,
		Logger:  log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "base_url", cfg.BaseURL, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
