package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/KolBohdan/train-station-api-service/internal/domain"
)

// Catalog writes. The booking core only reads the catalog; these exist
// for the admin surface, seeding and tests.

func (r *Repository) CreateStation(ctx context.Context, s domain.Station) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stations (id, name, latitude, longitude)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.Name, s.Latitude, s.Longitude)
	return err
}

func (r *Repository) CreateRoute(ctx context.Context, route domain.Route) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO routes (id, source_id, destination_id, distance)
		VALUES ($1, $2, $3, $4)
	`, route.ID, route.SourceID, route.DestinationID, route.Distance)
	return err
}

func (r *Repository) CreateTrainType(ctx context.Context, tt domain.TrainType) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO train_types (id, name) VALUES ($1, $2)
	`, tt.ID, tt.Name)
	return err
}

func (r *Repository) CreateTrain(ctx context.Context, t domain.Train) error {
	var trainTypeID any
	if t.TrainTypeID != uuid.Nil {
		trainTypeID = t.TrainTypeID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trains (id, name, cargo_num, places_in_cargo, train_type_id, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.Name, t.CargoNum, t.PlacesInCargo, trainTypeID, t.ImageURL)
	return err
}

func (r *Repository) CreateCrew(ctx context.Context, c domain.Crew) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crews (id, first_name, last_name) VALUES ($1, $2, $3)
	`, c.ID, c.FirstName, c.LastName)
	return err
}

func (r *Repository) CreateJourney(ctx context.Context, j domain.Journey) error {
	if err := domain.ValidateJourney(j); err != nil {
		return err
	}
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO journeys (id, route_id, train_id, departure_time, arrival_time)
			VALUES ($1, $2, $3, $4, $5)
		`, j.ID, j.RouteID, j.TrainID, j.DepartureTime, j.ArrivalTime)
		if err != nil {
			return err
		}
		for _, crewID := range j.CrewIDs {
			_, err := tx.Exec(ctx, `
				INSERT INTO journey_crew (journey_id, crew_id) VALUES ($1, $2)
			`, j.ID, crewID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteJourney removes a journey; its tickets go with it via the
// schema's cascade.
func (r *Repository) DeleteJourney(ctx context.Context, journeyID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM journeys WHERE id = $1`, journeyID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrJourneyNotFound
	}
	return nil
}
