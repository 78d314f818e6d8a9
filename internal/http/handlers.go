package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KolBohdan/train-station-api-service/internal/adapters/crdb"
	mongoadapter "github.com/KolBohdan/train-station-api-service/internal/adapters/mongo"
	"github.com/KolBohdan/train-station-api-service/internal/booking"
	"github.com/KolBohdan/train-station-api-service/internal/config"
	"github.com/KolBohdan/train-station-api-service/internal/domain"
	"github.com/KolBohdan/train-station-api-service/internal/idempotency"
	"github.com/KolBohdan/train-station-api-service/internal/observability"
)

type Handlers struct {
	cfg     *config.Config
	svc     *booking.Service
	repo    *crdb.Repository
	idemp   *idempotency.Idempotency
	catalog *mongoadapter.CatalogRepository
	audit   *mongoadapter.AuditLogger
	logger  observability.Logger
}

func NewHandlers(cfg *config.Config, svc *booking.Service, repo *crdb.Repository, idemp *idempotency.Idempotency, catalog *mongoadapter.CatalogRepository, audit *mongoadapter.AuditLogger, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:     cfg,
		svc:     svc,
		repo:    repo,
		idemp:   idemp,
		catalog: catalog,
		audit:   audit,
		logger:  logger,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("response marshal failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		UserID  uuid.UUID              `json:"user_id"`
		Tickets []domain.TicketRequest `json:"tickets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	orderID, err := h.svc.CreateOrder(r.Context(), req.UserID, req.Tickets)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	order, err := h.repo.GetOrder(r.Context(), orderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.audit != nil {
		if err := h.audit.LogOrder(r.Context(), *order); err != nil {
			h.logger.WithError(err).Warn("order audit write failed")
		}
	}

	data := h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"order_id":   order.ID,
		"created_at": order.CreatedAt,
		"tickets":    len(order.Tickets),
	})
	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data}); err != nil {
		// The order is committed; a lost idempotency record only costs
		// the replay, and a repeat will collide on the seat constraint.
		h.logger.WithError(err).Warn("idempotency record write failed")
	}
}

func (h *Handlers) writeBookingError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid seat",
			"tickets": verr.Items,
		})
		return
	}
	var taken *domain.SeatTakenError
	if errors.As(err, &taken) {
		h.writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":      "seat taken",
			"journey_id": taken.JourneyID,
			"cargo":      taken.Cargo,
			"seat":       taken.Seat,
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrEmptyOrder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrJourneyNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrSerializationFailure):
		http.Error(w, "conflict, try again", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	order, err := h.repo.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id":   order.ID,
		"user_id":    order.UserID,
		"created_at": order.CreatedAt,
		"tickets":    order.Tickets,
	})
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	orders, err := h.repo.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// ListJourneys lists journeys departing inside a window, each with its
// advisory seat count. The window defaults to the configured lookahead
// starting now; from/to query params (RFC 3339) override it.
func (h *Handlers) ListJourneys(w http.ResponseWriter, r *http.Request) {
	from := time.Now().UTC()
	to := from.Add(h.cfg.LookaheadWindow)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		to = parsed
	}

	journeys, err := h.repo.ListJourneysBetween(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, 0, len(journeys))
	for _, j := range journeys {
		count, err := h.svc.AvailableCount(r.Context(), j.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		items = append(items, map[string]interface{}{
			"journey_id":        j.ID,
			"route_id":          j.RouteID,
			"train_id":          j.TrainID,
			"departure_time":    j.DepartureTime,
			"arrival_time":      j.ArrivalTime,
			"tickets_available": count,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"journeys": items})
}

// GetJourney returns one journey with the places already claimed on it.
func (h *Handlers) GetJourney(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	journey, err := h.repo.GetJourney(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJourneyNotFound) {
			http.Error(w, "journey not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	taken, err := h.svc.TakenPlaces(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if taken == nil {
		taken = []domain.Place{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"journey_id":     journey.ID,
		"route_id":       journey.RouteID,
		"train_id":       journey.TrainID,
		"departure_time": journey.DepartureTime,
		"arrival_time":   journey.ArrivalTime,
		"taken_places":   taken,
	})
}

func (h *Handlers) AvailableSeats(w http.ResponseWriter, r *http.Request) {
	journeyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	seats, err := h.svc.AvailableSeats(r.Context(), journeyID)
	if err != nil {
		if errors.Is(err, domain.ErrJourneyNotFound) {
			http.Error(w, "journey not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"journey_id": journeyID,
		"available":  seats,
	})
}

func (h *Handlers) AvailableCount(w http.ResponseWriter, r *http.Request) {
	journeyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	count, err := h.svc.AvailableCount(r.Context(), journeyID)
	if err != nil {
		if errors.Is(err, domain.ErrJourneyNotFound) {
			http.Error(w, "journey not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"journey_id":        journeyID,
		"tickets_available": count,
	})
}

func (h *Handlers) ListTrains(w http.ResponseWriter, r *http.Request) {
	trains, err := h.catalog.ListTrains(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"trains": trains})
}

func (h *Handlers) GetTrain(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	train, err := h.catalog.GetTrain(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "train not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, train)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
