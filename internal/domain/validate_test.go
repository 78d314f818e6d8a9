package domain

import (
	"strings"
	"testing"
	"time"
)

func TestValidateSeat(t *testing.T) {
	shape := CapacityShape{CargoNum: 2, PlacesInCargo: 3}

	if fields := ValidateSeat(1, 1, shape); fields != nil {
		t.Errorf("expected valid, got %v", fields)
	}
	if fields := ValidateSeat(2, 3, shape); fields != nil {
		t.Errorf("expected valid at upper bounds, got %v", fields)
	}

	fields := ValidateSeat(2, 4, shape)
	if len(fields) != 1 || fields[0].Field != "seat" {
		t.Errorf("expected single seat failure, got %v", fields)
	}
	if !strings.Contains(fields[0].Reason, "[1, 3]") {
		t.Errorf("reason should name the valid range, got %q", fields[0].Reason)
	}

	fields = ValidateSeat(3, 1, shape)
	if len(fields) != 1 || fields[0].Field != "cargo" {
		t.Errorf("expected single cargo failure, got %v", fields)
	}
}

func TestValidateSeat_BothDimensionsReported(t *testing.T) {
	shape := CapacityShape{CargoNum: 2, PlacesInCargo: 3}

	fields := ValidateSeat(0, 99, shape)
	if len(fields) != 2 {
		t.Fatalf("expected failures on both dimensions, got %v", fields)
	}
	if fields[0].Field != "cargo" || fields[1].Field != "seat" {
		t.Errorf("expected cargo then seat, got %v", fields)
	}
}

func TestValidateJourney(t *testing.T) {
	dep := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	j := Journey{DepartureTime: dep, ArrivalTime: dep.Add(2 * time.Hour)}
	if err := ValidateJourney(j); err != nil {
		t.Errorf("expected valid journey, got %v", err)
	}

	j.ArrivalTime = dep
	if err := ValidateJourney(j); err == nil {
		t.Error("expected error when arrival equals departure")
	}

	j.ArrivalTime = dep.Add(-time.Hour)
	if err := ValidateJourney(j); err == nil {
		t.Error("expected error when arrival precedes departure")
	}
}

func TestCapacityShape(t *testing.T) {
	shape := CapacityShape{CargoNum: 2, PlacesInCargo: 3}
	if got := shape.Capacity(); got != 6 {
		t.Errorf("expected capacity 6, got %d", got)
	}
}
