package domain

import "fmt"

// ValidateSeat checks one (cargo, seat) pair against a train's capacity
// shape. It returns one FieldError per failing dimension, so a request
// that is out of range on both axes reports both. A nil result means
// the pair is bookable on a train of that shape. Pure, no side effects.
func ValidateSeat(cargo, seat int, shape CapacityShape) []FieldError {
	var fields []FieldError
	if cargo < 1 || cargo > shape.CargoNum {
		fields = append(fields, FieldError{
			Field:  "cargo",
			Reason: fmt.Sprintf("cargo must be in range [1, %d], got %d", shape.CargoNum, cargo),
		})
	}
	if seat < 1 || seat > shape.PlacesInCargo {
		fields = append(fields, FieldError{
			Field:  "seat",
			Reason: fmt.Sprintf("seat must be in range [1, %d], got %d", shape.PlacesInCargo, seat),
		})
	}
	return fields
}

// ValidateJourney rejects schedules that do not move forward in time.
func ValidateJourney(j Journey) error {
	if !j.ArrivalTime.After(j.DepartureTime) {
		return fmt.Errorf("arrival time %s must be after departure time %s",
			j.ArrivalTime.Format("2006-01-02 15:04"), j.DepartureTime.Format("2006-01-02 15:04"))
	}
	return nil
}
