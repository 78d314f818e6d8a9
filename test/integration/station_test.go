package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/KolBohdan/train-station-api-service/internal/adapters/crdb"
	mongoadapter "github.com/KolBohdan/train-station-api-service/internal/adapters/mongo"
	"github.com/KolBohdan/train-station-api-service/internal/adapters/rabbit"
	redisadapter "github.com/KolBohdan/train-station-api-service/internal/adapters/redis"
	"github.com/KolBohdan/train-station-api-service/internal/booking"
	"github.com/KolBohdan/train-station-api-service/internal/config"
	"github.com/KolBohdan/train-station-api-service/internal/domain"
	httphandler "github.com/KolBohdan/train-station-api-service/internal/http"
	"github.com/KolBohdan/train-station-api-service/internal/idempotency"
	"github.com/KolBohdan/train-station-api-service/internal/observability"
	"github.com/KolBohdan/train-station-api-service/internal/ratelimit"
)

func TestIntegration_BookingFlow(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	dsn, err := crdbContainer.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}
	pool, err := pgxpool.New(ctx, dsn+"/station?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, `CREATE DATABASE IF NOT EXISTS station`); err != nil {
		t.Fatal(err)
	}
	repo := crdb.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	mongoEndpoint, err := mongoContainer.Endpoint(ctx, "mongodb")
	if err != nil {
		t.Fatal(err)
	}
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoEndpoint))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)

	redisEndpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	redisClient := redisclient.NewClient(&redisclient.Options{Addr: redisEndpoint})

	rabbitEndpoint, err := rabbitContainer.Endpoint(ctx, "amqp")
	if err != nil {
		t.Fatal(err)
	}
	rabbitConn, err := amqp.Dial(rabbitEndpoint + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	if _, err := rabbit.NewPublisher(rabbitConn); err != nil {
		t.Fatal(err)
	}

	logger := observability.NewLogger()
	cfg := &config.Config{AvailabilityTTL: 30 * time.Second, LookaheadWindow: 24 * time.Hour}
	mongoDB := mongoClient.Database("station")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)
	cache := redisadapter.NewCache(redisClient, cfg.AvailabilityTTL)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

	svc := booking.NewService(repo, cache, logger)
	handlers := httphandler.NewHandlers(cfg, svc, repo, idemp, catalog, audit, logger)
	router := httphandler.SetupRouter(handlers, logger, rl)
	server := httptest.NewServer(router)
	defer server.Close()

	// Seed a journey on a 2x3 train.
	src := domain.Station{ID: uuid.New(), Name: "Kyiv", Latitude: 50.44, Longitude: 30.52}
	dst := domain.Station{ID: uuid.New(), Name: "Odesa", Latitude: 46.48, Longitude: 30.72}
	if err := repo.CreateStation(ctx, src); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateStation(ctx, dst); err != nil {
		t.Fatal(err)
	}
	route := domain.Route{ID: uuid.New(), SourceID: src.ID, DestinationID: dst.ID, Distance: 480}
	if err := repo.CreateRoute(ctx, route); err != nil {
		t.Fatal(err)
	}
	train := domain.Train{ID: uuid.New(), Name: "Night Express", CargoNum: 2, PlacesInCargo: 3}
	if err := repo.CreateTrain(ctx, train); err != nil {
		t.Fatal(err)
	}
	if err := catalog.UpsertTrain(ctx, train, "express"); err != nil {
		t.Fatal(err)
	}
	dep := time.Now().Add(3 * time.Hour).UTC()
	journey := domain.Journey{ID: uuid.New(), RouteID: route.ID, TrainID: train.ID, DepartureTime: dep, ArrivalTime: dep.Add(7 * time.Hour)}
	if err := repo.CreateJourney(ctx, journey); err != nil {
		t.Fatal(err)
	}

	client := server.Client()
	userID := uuid.New()

	postOrder := func(idempKey string, tickets []map[string]interface{}) *http.Response {
		body, _ := json.Marshal(map[string]interface{}{
			"user_id": userID,
			"tickets": tickets,
		})
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/v1/orders", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempKey)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	availability := func() int {
		resp, err := client.Get(server.URL + "/v1/journeys/" + journey.ID.String() + "/availability")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("availability returned %d", resp.StatusCode)
		}
		var out struct {
			TicketsAvailable int `json:"tickets_available"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		return out.TicketsAvailable
	}

	if got := availability(); got != 6 {
		t.Fatalf("expected 6 seats before booking, got %d", got)
	}

	// Out-of-range seat is rejected with field-level detail.
	resp := postOrder(uuid.New().String(), []map[string]interface{}{
		{"journey_id": journey.ID, "cargo": 2, "seat": 4},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid seat, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if got := availability(); got != 6 {
		t.Fatalf("failed booking must not consume seats, got %d", got)
	}

	// A valid booking succeeds and drops availability to 5.
	resp = postOrder(uuid.New().String(), []map[string]interface{}{
		{"journey_id": journey.ID, "cargo": 1, "seat": 1},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := availability(); got != 5 {
		t.Fatalf("expected 5 seats after booking, got %d", got)
	}

	// The identical request with a fresh idempotency key collides.
	resp = postOrder(uuid.New().String(), []map[string]interface{}{
		{"journey_id": journey.ID, "cargo": 1, "seat": 1},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for the taken seat, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The journey list reports the seeded journey with its seat count.
	resp, err = client.Get(server.URL + "/v1/journeys")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 listing journeys, got %d", resp.StatusCode)
	}
	var listed struct {
		Journeys []struct {
			JourneyID        uuid.UUID `json:"journey_id"`
			TicketsAvailable int       `json:"tickets_available"`
		} `json:"journeys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(listed.Journeys) != 1 || listed.Journeys[0].JourneyID != journey.ID {
		t.Fatalf("unexpected journey list %+v", listed.Journeys)
	}
	if listed.Journeys[0].TicketsAvailable != 5 {
		t.Errorf("expected 5 seats in the listing, got %d", listed.Journeys[0].TicketsAvailable)
	}

	// The journey detail carries the claimed places.
	resp, err = client.Get(server.URL + "/v1/journeys/" + journey.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 fetching journey, got %d", resp.StatusCode)
	}
	var detail struct {
		TrainID     uuid.UUID      `json:"train_id"`
		TakenPlaces []domain.Place `json:"taken_places"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if detail.TrainID != train.ID {
		t.Errorf("expected train %s, got %s", train.ID, detail.TrainID)
	}
	if len(detail.TakenPlaces) != 1 || detail.TakenPlaces[0] != (domain.Place{Cargo: 1, Seat: 1}) {
		t.Errorf("unexpected taken places %+v", detail.TakenPlaces)
	}

	// The order read model shows the booked ticket.
	resp, err = client.Get(server.URL + "/v1/orders/" + created.OrderID.String())
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 fetching order, got %d", resp.StatusCode)
	}
	var fetched struct {
		Tickets []domain.Ticket `json:"tickets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(fetched.Tickets) != 1 || fetched.Tickets[0].Cargo != 1 || fetched.Tickets[0].Seat != 1 {
		t.Errorf("unexpected tickets %+v", fetched.Tickets)
	}

	// The train read model is served from mongo.
	resp, err = client.Get(server.URL + "/v1/trains/" + train.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 fetching train, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
