package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN         string
	MongoURI        string
	RedisAddr       string
	RabbitURL       string
	HTTPAddr        string
	AvailabilityTTL time.Duration
	LookaheadWindow time.Duration
	OTLPEndpoint    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	availabilityTTL, _ := time.ParseDuration(os.Getenv("AVAILABILITY_TTL"))
	if availabilityTTL == 0 {
		availabilityTTL = 30 * time.Second
	}

	lookahead, _ := time.ParseDuration(os.Getenv("LOOKAHEAD_WINDOW"))
	if lookahead == 0 {
		lookahead = 24 * time.Hour
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	return &Config{
		CRDBDSN:         os.Getenv("CRDB_DSN"),
		MongoURI:        os.Getenv("MONGO_URI"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RabbitURL:       os.Getenv("RABBIT_URL"),
		HTTPAddr:        httpAddr,
		AvailabilityTTL: availabilityTTL,
		LookaheadWindow: lookahead,
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
