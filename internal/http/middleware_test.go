package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	httphandler "github.com/KolBohdan/train-station-api-service/internal/http"
	"github.com/KolBohdan/train-station-api-service/internal/observability"
)

func TestLoggerMiddleware_CountsRequests(t *testing.T) {
	r := chi.NewRouter()
	r.Use(httphandler.LoggerMiddleware(observability.NewLogger()))
	r.Get("/v1/journeys/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := observability.RequestsTotal.WithLabelValues("/v1/journeys/{id}", "404", "GET")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/v1/journeys/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	// Counted under the route pattern, not the raw path.
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("expected counter to advance by 1, got %v -> %v", before, got)
	}
}

func TestIdempotencyKeyMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(httphandler.IdempotencyKeyMiddleware)
	r.Post("/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name   string
		method string
		key    string
		want   int
	}{
		{"post without key", http.MethodPost, "", http.StatusBadRequest},
		{"post with short key", http.MethodPost, "short", http.StatusBadRequest},
		{"post with key", http.MethodPost, "0123456789abcdef", http.StatusCreated},
		{"get needs no key", http.MethodGet, "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/v1/orders", nil)
			if tc.key != "" {
				req.Header.Set("Idempotency-Key", tc.key)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
