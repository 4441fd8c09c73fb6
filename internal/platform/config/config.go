package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName   string
	HTTPPort      string
	PostgresDSN   string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSecret     string
	CloudinaryURL string

	IdempotencyRetention time.Duration
	MutationTimeout      time.Duration
	WorkerPollInterval   time.Duration
}

func Load() (Config, error) {
	if os.Getenv("ENV") != "prod" {
		_ = godotenv.Load()
	}

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "caritas"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "caritas.notifications"
	}

	return Config{
		ServiceName:   service,
		HTTPPort:      port,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		CloudinaryURL: os.Getenv("CLOUDINARY_URL"),

		IdempotencyRetention: envDuration("IDEMPOTENCY_RETENTION", 24*time.Hour),
		MutationTimeout:      envDuration("MUTATION_TIMEOUT", 20*time.Second),
		WorkerPollInterval:   envDuration("WORKER_POLL_INTERVAL", time.Minute),
	}, nil
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
