// Package booking is the transactional core of the reservation system:
// it owns order creation and the journey availability read path. All
// ticket writes go through CreateOrder so the (journey, cargo, seat)
// uniqueness invariant is enforced in exactly one place.
package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/KolBohdan/train-station-api-service/internal/domain"
	"github.com/KolBohdan/train-station-api-service/internal/observability"
)

// Tx is the set of writes available inside one booking transaction.
type Tx interface {
	JourneyCapacity(ctx context.Context, journeyID uuid.UUID) (domain.CapacityShape, error)
	InsertOrder(ctx context.Context, order domain.Order) error
	// InsertTicket returns *domain.SeatTakenError when the
	// (journey, cargo, seat) triple is already claimed.
	InsertTicket(ctx context.Context, ticket domain.Ticket) error
	InsertEvent(ctx context.Context, eventType string, aggregateID uuid.UUID, payload []byte) error
}

// Store is the persistence port. WithinTx must give the callback
// atomic, serializable semantics: either every write in the callback
// commits or none does, and the ticket uniqueness constraint is checked
// by the storage engine itself, not by the caller.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	JourneyCapacity(ctx context.Context, journeyID uuid.UUID) (domain.CapacityShape, error)
	TakenSeats(ctx context.Context, journeyID uuid.UUID) ([]domain.Place, error)
}

// Cache holds advisory availability counts. A nil Cache disables caching.
type Cache interface {
	GetCount(ctx context.Context, journeyID uuid.UUID) (int, bool, error)
	SetCount(ctx context.Context, journeyID uuid.UUID, count int) error
	Invalidate(ctx context.Context, journeyID uuid.UUID) error
}

type Service struct {
	store  Store
	cache  Cache
	logger observability.Logger
}

func NewService(store Store, cache Cache, logger observability.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// txRetries bounds re-runs of the booking transaction after a
// serialization abort. Once the contending transaction has committed,
// the retry reads its ticket and resolves to SeatTakenError or
// success, so callers see the colliding triple instead of a bare
// retryable failure.
const txRetries = 3

// CreateOrder books every requested seat or none of them.
//
// Bounds validation failures aggregate across the whole batch, keyed by
// request index, so a client can show per-field diagnostics for every
// bad ticket at once. Uniqueness collisions short-circuit: the first
// taken seat aborts the transaction and is identified in the error.
// An unresolved journey aborts with domain.ErrJourneyNotFound.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, requests []domain.TicketRequest) (uuid.UUID, error) {
	if len(requests) == 0 {
		return uuid.Nil, domain.ErrEmptyOrder
	}

	var (
		order domain.Order
		err   error
	)
	for attempt := 0; ; attempt++ {
		order, err = s.createOrderTx(ctx, userID, requests)
		if !errors.Is(err, domain.ErrSerializationFailure) || attempt == txRetries {
			break
		}
		observability.BookingTxRetries.Inc()
		select {
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		case <-time.After(time.Duration(1<<attempt) * 10 * time.Millisecond):
		}
	}

	if err != nil {
		var taken *domain.SeatTakenError
		if errors.As(err, &taken) {
			observability.SeatConflictsTotal.Inc()
			observability.OrdersTotal.WithLabelValues("seat_taken").Inc()
		} else {
			observability.OrdersTotal.WithLabelValues("failed").Inc()
		}
		return uuid.Nil, err
	}

	observability.OrdersTotal.WithLabelValues("created").Inc()
	s.invalidateJourneys(ctx, requests)
	s.logger.WithField("order_id", order.ID).WithField("tickets", len(order.Tickets)).Info("order created")

	return order.ID, nil
}

// createOrderTx runs one attempt of the booking transaction. The order
// is built fresh per attempt so an aborted run leaves no stale id or
// staged tickets behind.
func (s *Service) createOrderTx(ctx context.Context, userID uuid.UUID, requests []domain.TicketRequest) (domain.Order, error) {
	order := domain.NewOrder(userID)

	start := time.Now()
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		shapes := make(map[uuid.UUID]domain.CapacityShape)
		verr := &domain.ValidationError{}
		for i, req := range requests {
			shape, ok := shapes[req.JourneyID]
			if !ok {
				var err error
				shape, err = tx.JourneyCapacity(ctx, req.JourneyID)
				if err != nil {
					return err
				}
				shapes[req.JourneyID] = shape
			}
			if fields := domain.ValidateSeat(req.Cargo, req.Seat, shape); fields != nil {
				verr.Add(i, fields)
			}
		}
		if !verr.Empty() {
			return verr
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, req := range requests {
			ticket := domain.Ticket{
				ID:        uuid.New(),
				OrderID:   order.ID,
				JourneyID: req.JourneyID,
				Cargo:     req.Cargo,
				Seat:      req.Seat,
			}
			if err := tx.InsertTicket(ctx, ticket); err != nil {
				return err
			}
			order.Tickets = append(order.Tickets, ticket)
		}

		journeyIDs := make([]uuid.UUID, 0, len(shapes))
		for id := range shapes {
			journeyIDs = append(journeyIDs, id)
		}
		payload, err := json.Marshal(map[string]interface{}{
			"order_id":    order.ID,
			"user_id":     order.UserID,
			"tickets":     len(order.Tickets),
			"journey_ids": journeyIDs,
		})
		if err != nil {
			return err
		}
		return tx.InsertEvent(ctx, "order.created", order.ID, payload)
	})
	observability.DBTxDuration.Observe(time.Since(start).Seconds())
	return order, err
}

func (s *Service) invalidateJourneys(ctx context.Context, requests []domain.TicketRequest) {
	if s.cache == nil {
		return
	}
	seen := make(map[uuid.UUID]struct{})
	for _, req := range requests {
		if _, ok := seen[req.JourneyID]; ok {
			continue
		}
		seen[req.JourneyID] = struct{}{}
		if err := s.cache.Invalidate(ctx, req.JourneyID); err != nil {
			// The cache is advisory; a stale count cannot double-book.
			s.logger.WithError(err).WithField("journey_id", req.JourneyID).Warn("availability cache invalidate failed")
		}
	}
}

// AvailableSeats returns the free (cargo, seat) pairs of a journey,
// ordered by cargo then seat. Derived from committed tickets only.
func (s *Service) AvailableSeats(ctx context.Context, journeyID uuid.UUID) ([]domain.Place, error) {
	shape, err := s.store.JourneyCapacity(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	taken, err := s.store.TakenSeats(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	booked := make(map[domain.Place]struct{}, len(taken))
	for _, p := range taken {
		booked[p] = struct{}{}
	}

	free := make([]domain.Place, 0, shape.Capacity()-len(taken))
	for cargo := 1; cargo <= shape.CargoNum; cargo++ {
		for seat := 1; seat <= shape.PlacesInCargo; seat++ {
			p := domain.Place{Cargo: cargo, Seat: seat}
			if _, ok := booked[p]; !ok {
				free = append(free, p)
			}
		}
	}
	return free, nil
}

// TakenPlaces returns the committed (cargo, seat) pairs of a journey,
// ordered by cargo then seat. An unknown journey reports
// domain.ErrJourneyNotFound rather than an empty list.
func (s *Service) TakenPlaces(ctx context.Context, journeyID uuid.UUID) ([]domain.Place, error) {
	if _, err := s.store.JourneyCapacity(ctx, journeyID); err != nil {
		return nil, err
	}
	return s.store.TakenSeats(ctx, journeyID)
}

// AvailableCount returns the number of free seats on a journey. The
// count may be served from cache; it is advisory and never consulted
// by CreateOrder.
func (s *Service) AvailableCount(ctx context.Context, journeyID uuid.UUID) (int, error) {
	if s.cache != nil {
		count, ok, err := s.cache.GetCount(ctx, journeyID)
		if err != nil {
			s.logger.WithError(err).Warn("availability cache read failed")
		} else if ok {
			observability.AvailabilityCacheHits.WithLabelValues("hit").Inc()
			return count, nil
		}
		observability.AvailabilityCacheHits.WithLabelValues("miss").Inc()
	}

	shape, err := s.store.JourneyCapacity(ctx, journeyID)
	if err != nil {
		return 0, err
	}
	taken, err := s.store.TakenSeats(ctx, journeyID)
	if err != nil {
		return 0, err
	}
	count := shape.Capacity() - len(taken)

	if s.cache != nil {
		if err := s.cache.SetCount(ctx, journeyID, count); err != nil {
			s.logger.WithError(err).Warn("availability cache write failed")
		}
	}
	return count, nil
}
