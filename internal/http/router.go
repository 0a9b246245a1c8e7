package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// NewRouter mounts the page, API, health and metrics routes. limiter guards
// the page and API routes only; nil disables rate limiting.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())

	lookups := router.NewRoute().Subrouter()
	lookups.Use(RateLimitMiddleware(limiter))
	lookups.HandleFunc("/", h.GetPage).Methods(http.MethodGet)
	lookups.HandleFunc("/", h.PostPage).Methods(http.MethodPost)
	lookups.HandleFunc("/unit", h.PostUnit).Methods(http.MethodPost)
	lookups.HandleFunc("/api/weather/{city}", h.GetWeather).Methods(http.MethodGet)
	return router
}
