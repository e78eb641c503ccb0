package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/config"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/ports"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators built in main. Nil Metrics, Limiter and Logger
// are replaced with private defaults.
type Deps struct {
	Service ports.LinkService
	Store   Pinger
	Metrics *Metrics
	Limiter *IPRateLimiter
	Logger  *slog.Logger
}

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewIPRateLimiter(cfg.RateLimitBurst, cfg.RateLimitPeriod)
	}

	h := NewHTTPHandler(deps.Service, metrics, logger, cfg.TrustProxy)
	mw := NewMiddleware(cfg, logger)
	authHandler := NewAuthHandler(cfg, logger)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", healthz(deps.Store, logger))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/shorten", h.Shorten)
	mux.HandleFunc("GET /r/{id}", h.Redirect)
	mux.HandleFunc("GET /api/qr/{id}", h.GetQR)
	mux.HandleFunc("POST /api/locations/{id}", h.RegisterLocation)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	// Admin Routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/admin/links", h.ListLinks)
	adminMux.HandleFunc("GET /api/admin/links/{id}/scans", h.ListScans)
	adminMux.HandleFunc("GET /api/admin/links/{id}/locations", h.ListLocations)
	adminMux.HandleFunc("GET /api/admin/links/{id}/stats", h.LinkStats)
	adminMux.HandleFunc("GET /api/admin/stats", h.Dashboard)
	mux.Handle("GET /api/admin/", mw.AuthMiddleware(adminMux))

	if cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	rateLimit := RateLimit(limiter, func(r *http.Request) string {
		return clientIP(r, cfg.TrustProxy)
	}, metrics.rateLimited.Inc)

	// Recovered panics reach Logging and Metrics as a 500.
	var handler http.Handler = mux
	handler = rateLimit(handler)
	handler = mw.Recover(handler)
	handler = metrics.Middleware(handler)
	handler = mw.Logging(handler)
	handler = mw.RequestID(handler)
	return handler
}

func healthz(store Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				logger.ErrorContext(r.Context(), "health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}
}
