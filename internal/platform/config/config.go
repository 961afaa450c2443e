package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server reads from the environment so main
// stays lean.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	// Detection tuning.
	RepeatWinnerThreshold  int
	PriceOutlierMultiplier float64

	// Community-detection collaborator. Empty URL disables the augmentation
	// step entirely.
	GraphServiceURL     string
	GraphServiceTimeout time.Duration

	// Optional infrastructure. Empty values disable the respective feature.
	RedisURL     string
	KafkaBrokers []string
	AuditTopic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                   envOr("TENDERWATCH_ADDR", ":8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		JWTSigningKey:          os.Getenv("JWT_SIGNING_KEY"),
		RepeatWinnerThreshold:  envInt("REPEAT_WINNER_THRESHOLD", 5),
		PriceOutlierMultiplier: envFloat("PRICE_OUTLIER_STD_MULTIPLIER", 3),
		GraphServiceURL:        os.Getenv("GRAPH_SERVICE_URL"),
		GraphServiceTimeout:    envDuration("GRAPH_SERVICE_TIMEOUT", 10*time.Second),
		RedisURL:               os.Getenv("REDIS_URL"),
		AuditTopic:             envOr("AUDIT_TOPIC", "tenderwatch.audit"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
