package config

import (
	"errors"
	"os"
)

type Config struct {
	Port string

	// Empty means the in-memory registry; set to a SQLite path to keep
	// the registry across restarts.
	DatabaseURL string

	StripeSecretKey string

	SentryDSN string
	LogLevel  string
}

func New() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "4242"
	}

	stripeSecretKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY environment variable is required")
	}

	return &Config{
		Port:            port,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StripeSecretKey: stripeSecretKey,
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
	}, nil
}
