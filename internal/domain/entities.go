package domain

import (
	"time"

	"github.com/google/uuid"
)

type Station struct {
	ID        uuid.UUID
	Name      string
	Latitude  float64
	Longitude float64
}

type Route struct {
	ID            uuid.UUID
	SourceID      uuid.UUID
	DestinationID uuid.UUID
	Distance      int
}

type Crew struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
}

type TrainType struct {
	ID   uuid.UUID
	Name string
}

// CapacityShape is the pair of bounds that defines the valid
// (cargo, seat) address space of a train.
type CapacityShape struct {
	CargoNum      int
	PlacesInCargo int
}

func (s CapacityShape) Capacity() int {
	return s.CargoNum * s.PlacesInCargo
}

type Train struct {
	ID            uuid.UUID
	Name          string
	CargoNum      int
	PlacesInCargo int
	TrainTypeID   uuid.UUID
	ImageURL      string
}

func (t Train) Shape() CapacityShape {
	return CapacityShape{CargoNum: t.CargoNum, PlacesInCargo: t.PlacesInCargo}
}

type Journey struct {
	ID            uuid.UUID
	RouteID       uuid.UUID
	TrainID       uuid.UUID
	DepartureTime time.Time
	ArrivalTime   time.Time
	CrewIDs       []uuid.UUID
}

type Order struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	Tickets   []Ticket
}

type Ticket struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	JourneyID uuid.UUID
	Cargo     int
	Seat      int
}

// Place addresses a single seat inside a train: cargo index first,
// then seat index within that cargo. Both are 1-based.
type Place struct {
	Cargo int `json:"cargo"`
	Seat  int `json:"seat"`
}

// TicketRequest is one desired seat in a booking call.
type TicketRequest struct {
	JourneyID uuid.UUID `json:"journey_id"`
	Cargo     int       `json:"cargo"`
	Seat      int       `json:"seat"`
}

func NewOrder(userID uuid.UUID) Order {
	return Order{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}
