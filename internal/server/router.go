// Package server assembles the HTTP surface: routing, middleware, and the
// operational endpoints every deployment gets.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"umid/internal/biometric/handler"
	"umid/internal/platform/config"
	"umid/internal/platform/middleware"
	"umid/pkg/httputil"
)

// NewRouter wires the biometric endpoints behind operator authentication and
// the admin endpoints behind the admin token. Health and metrics stay open.
func NewRouter(cfg config.Config, h *handler.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.JWTSigningKey != "" {
			r.Use(middleware.RequireAuth(middleware.NewHS256Validator(cfg.JWTSigningKey), logger))
		}
		h.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(cfg.AdminToken, logger))
		h.RegisterAdmin(r)
	})

	return r
}
