package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port     string
	MongoURI string
	MongoDB  string

	JWTSecret string

	AMQPURL      string
	AMQPExchange string
	OTLPEndpoint string
	Environment  string
	DebugRoutes  bool

	SweepInterval    time.Duration
	OfflineThreshold time.Duration
}

// Load reads configuration from the environment, with an optional .env file.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	return Config{
		Port:             getEnv("PORT", "8083"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          getEnv("MONGO_DB", "aiku"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "platform.events"),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		Environment:      getEnv("ENVIRONMENT", "development"),
		DebugRoutes:      getBoolEnv("DEBUG_ROUTES", false),
		SweepInterval:    getDurationEnv("PRESENCE_SWEEP_INTERVAL", 60*time.Second),
		OfflineThreshold: getDurationEnv("PRESENCE_OFFLINE_THRESHOLD", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
