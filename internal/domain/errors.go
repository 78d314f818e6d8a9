package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrJourneyNotFound      = errors.New("journey not found")
	ErrEmptyOrder           = errors.New("order must contain at least one ticket")
)

// FieldError names the dimension of a ticket request that fell outside
// the train's capacity shape.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError aggregates bounds failures for a whole booking batch,
// keyed by the index of the offending ticket request. A single request
// may carry failures for both dimensions.
type ValidationError struct {
	Items map[int][]FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid seat in %d ticket request(s)", len(e.Items))
}

func (e *ValidationError) Add(index int, fields []FieldError) {
	if e.Items == nil {
		e.Items = make(map[int][]FieldError)
	}
	e.Items[index] = append(e.Items[index], fields...)
}

func (e *ValidationError) Empty() bool {
	return len(e.Items) == 0
}

// SeatTakenError reports a uniqueness collision on (journey, cargo, seat),
// whether against a committed ticket or a sibling request in the same batch.
type SeatTakenError struct {
	JourneyID uuid.UUID `json:"journey_id"`
	Cargo     int       `json:"cargo"`
	Seat      int       `json:"seat"`
}

func (e *SeatTakenError) Error() string {
	return fmt.Sprintf("seat already taken: journey %s cargo %d seat %d", e.JourneyID, e.Cargo, e.Seat)
}
