package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KolBohdan/train-station-api-service/internal/observability"
	"github.com/KolBohdan/train-station-api-service/internal/ratelimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *ratelimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyKeyMiddleware)

	r.Post("/v1/orders", h.CreateOrder)
	r.Get("/v1/orders", h.ListOrders)
	r.Get("/v1/orders/{id}", h.GetOrder)
	r.Get("/v1/journeys", h.ListJourneys)
	r.Get("/v1/journeys/{id}", h.GetJourney)
	r.Get("/v1/journeys/{id}/seats", h.AvailableSeats)
	r.Get("/v1/journeys/{id}/availability", h.AvailableCount)
	r.Get("/v1/trains", h.ListTrains)
	r.Get("/v1/trains/{id}", h.GetTrain)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
