package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/config"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/services"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, "")
	slog.SetDefault(log)

	// Note: On Vercel, the local sqlite file is ephemeral unless DATABASE_URL points at Turso
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		panic(err)
	}

	service := services.NewLinkService(repo,
		services.WithBaseURL(cfg.BaseURL),
		services.WithLocation(cfg.Location()),
	)
	mux = handler.NewRouter(cfg, handler.Deps{
		Service: service,
		Store:   repo,
		Metrics: handler.NewMetrics(prometheus.NewRegistry()),
		Logger:  log,
	})
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
