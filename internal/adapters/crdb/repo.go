package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KolBohdan/train-station-api-service/internal/booking"
	"github.com/KolBohdan/train-station-api-service/internal/domain"
)

const (
	SerializationFailureCode = "40001"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the schema. Foreign keys cascade so that deleting a
// journey or an order removes its tickets, matching the deletion path
// the booking core relies on.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS stations (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			latitude FLOAT8 NOT NULL,
			longitude FLOAT8 NOT NULL
		);
		CREATE TABLE IF NOT EXISTS routes (
			id UUID PRIMARY KEY,
			source_id UUID NOT NULL REFERENCES stations (id) ON DELETE CASCADE,
			destination_id UUID NOT NULL REFERENCES stations (id) ON DELETE CASCADE,
			distance INT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS train_types (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trains (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			cargo_num INT NOT NULL CHECK (cargo_num > 0),
			places_in_cargo INT NOT NULL CHECK (places_in_cargo > 0),
			train_type_id UUID REFERENCES train_types (id) ON DELETE CASCADE,
			image_url TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS crews (
			id UUID PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS journeys (
			id UUID PRIMARY KEY,
			route_id UUID NOT NULL REFERENCES routes (id) ON DELETE CASCADE,
			train_id UUID NOT NULL REFERENCES trains (id) ON DELETE CASCADE,
			departure_time TIMESTAMPTZ NOT NULL,
			arrival_time TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS journey_crew (
			journey_id UUID NOT NULL REFERENCES journeys (id) ON DELETE CASCADE,
			crew_id UUID NOT NULL REFERENCES crews (id) ON DELETE CASCADE,
			PRIMARY KEY (journey_id, crew_id)
		);
		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS tickets (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
			journey_id UUID NOT NULL REFERENCES journeys (id) ON DELETE CASCADE,
			cargo INT NOT NULL,
			seat INT NOT NULL,
			UNIQUE (journey_id, cargo, seat)
		);
		CREATE TABLE IF NOT EXISTS outbox (
			id UUID PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			payload_json BYTES NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			published_at TIMESTAMPTZ,
			status TEXT NOT NULL DEFAULT 'NEW',
			dedupe_key TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

// WithinTx adapts WithTx to the booking.Store contract.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

// orderTx scopes the booking operations to one open transaction.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) JourneyCapacity(ctx context.Context, journeyID uuid.UUID) (domain.CapacityShape, error) {
	return journeyCapacity(ctx, t.tx, journeyID)
}

func (t *orderTx) InsertOrder(ctx context.Context, order domain.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, created_at)
		VALUES ($1, $2, $3)
	`, order.ID, order.UserID, order.CreatedAt)
	return err
}

// InsertTicket claims one (journey, cargo, seat) under the unique
// constraint. ON CONFLICT DO NOTHING plus the RowsAffected check turns
// a collision into SeatTakenError without failing the connection, so
// two requests in the same batch colliding with each other surface the
// same way as a race with a concurrent transaction.
func (t *orderTx) InsertTicket(ctx context.Context, ticket domain.Ticket) error {
	result, err := t.tx.Exec(ctx, `
		INSERT INTO tickets (id, order_id, journey_id, cargo, seat)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (journey_id, cargo, seat) DO NOTHING
	`, ticket.ID, ticket.OrderID, ticket.JourneyID, ticket.Cargo, ticket.Seat)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return &domain.SeatTakenError{JourneyID: ticket.JourneyID, Cargo: ticket.Cargo, Seat: ticket.Seat}
	}
	return nil
}

func (t *orderTx) InsertEvent(ctx context.Context, eventType string, aggregateID uuid.UUID, payload []byte) error {
	return insertOutbox(ctx, t.tx, OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "order",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     uuid.New().String(),
	})
}

func journeyCapacity(ctx context.Context, q querier, journeyID uuid.UUID) (domain.CapacityShape, error) {
	var shape domain.CapacityShape
	err := q.QueryRow(ctx, `
		SELECT t.cargo_num, t.places_in_cargo
		FROM journeys j
		JOIN trains t ON t.id = j.train_id
		WHERE j.id = $1
	`, journeyID).Scan(&shape.CargoNum, &shape.PlacesInCargo)
	if err == pgx.ErrNoRows {
		// Also covers a journey or train deleted mid-read: a missing
		// join row is a catalog miss, not a storage fault.
		return domain.CapacityShape{}, domain.ErrJourneyNotFound
	}
	if err != nil {
		return domain.CapacityShape{}, err
	}
	return shape, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JourneyCapacity is the pool-backed capacity catalog lookup used by
// the availability read path.
func (r *Repository) JourneyCapacity(ctx context.Context, journeyID uuid.UUID) (domain.CapacityShape, error) {
	return journeyCapacity(ctx, r.pool, journeyID)
}

// TakenSeats returns the committed ticket places for a journey, ordered
// by cargo then seat. Reads run outside any open booking transaction,
// so uncommitted inserts are never visible.
func (r *Repository) TakenSeats(ctx context.Context, journeyID uuid.UUID) ([]domain.Place, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cargo, seat FROM tickets
		WHERE journey_id = $1
		ORDER BY cargo, seat
	`, journeyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var places []domain.Place
	for rows.Next() {
		var p domain.Place
		if err := rows.Scan(&p.Cargo, &p.Seat); err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, created_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&order.ID, &order.UserID, &order.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, journey_id, cargo, seat
		FROM tickets WHERE order_id = $1
		ORDER BY cargo, seat
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t := domain.Ticket{OrderID: order.ID}
		if err := rows.Scan(&t.ID, &t.JourneyID, &t.Cargo, &t.Seat); err != nil {
			return nil, err
		}
		order.Tickets = append(order.Tickets, t)
	}
	return &order, rows.Err()
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *Repository) GetJourney(ctx context.Context, journeyID uuid.UUID) (*domain.Journey, error) {
	var j domain.Journey
	err := r.pool.QueryRow(ctx, `
		SELECT id, route_id, train_id, departure_time, arrival_time
		FROM journeys
		WHERE id = $1
	`, journeyID).Scan(&j.ID, &j.RouteID, &j.TrainID, &j.DepartureTime, &j.ArrivalTime)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrJourneyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJourneysBetween lists journeys departing inside [from, to). It
// backs the journey list endpoint and the availability worker's pick
// of journeys worth recomputing.
func (r *Repository) ListJourneysBetween(ctx context.Context, from, to time.Time) ([]domain.Journey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, route_id, train_id, departure_time, arrival_time
		FROM journeys
		WHERE departure_time >= $1 AND departure_time < $2
		ORDER BY departure_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journeys []domain.Journey
	for rows.Next() {
		var j domain.Journey
		if err := rows.Scan(&j.ID, &j.RouteID, &j.TrainID, &j.DepartureTime, &j.ArrivalTime); err != nil {
			return nil, err
		}
		journeys = append(journeys, j)
	}
	return journeys, rows.Err()
}
