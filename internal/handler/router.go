package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает маршруты каталога
func NewRouter(h *CatalogHandler, requestTimeout time.Duration, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/healthz", h.Healthz)
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/", h.GetCatalog)
		r.Post("/refresh", h.RefreshCatalog)
		r.Get("/{id}", h.GetEntry)
		r.Get("/{id}/image", h.GetEntryImage)
	})
	return r
}
