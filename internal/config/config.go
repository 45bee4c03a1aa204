package config

import (
	"errors"
	"os"
	"strconv"
)

// MetadataPolicy controls how the callback handler treats success callbacks
// that arrive without Amount / MpesaReceiptNumber metadata items.
type MetadataPolicy string

const (
	// MetadataLenient records whatever the gateway sent, defaulting the
	// missing items to zero values.
	MetadataLenient MetadataPolicy = "lenient"
	// MetadataStrict rejects success callbacks with missing items.
	MetadataStrict MetadataPolicy = "strict"
)

// Config holds everything the process reads from the environment.
// It is loaded once in main; nothing else touches os.Getenv.
type Config struct {
	Port string

	DatabaseURL string

	// Daraja gateway
	DarajaBaseURL   string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	CallbackBaseURL string
	WebhookSecret   string

	JWTSecret string

	// 32-byte key, hex or raw, for encrypting payer phone numbers at rest.
	PhoneCipherKey string

	MetadataPolicy MetadataPolicy
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DarajaBaseURL:   getenv("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		ConsumerKey:     os.Getenv("DARAJA_CONSUMER_KEY"),
		ConsumerSecret:  os.Getenv("DARAJA_CONSUMER_SECRET"),
		ShortCode:       os.Getenv("DARAJA_SHORT_CODE"),
		PassKey:         os.Getenv("DARAJA_PASS_KEY"),
		CallbackBaseURL: os.Getenv("CALLBACK_BASE_URL"),
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
		JWTSecret:       getenv("JWT_SECRET", "dev-secret-please-change"),
		PhoneCipherKey:  os.Getenv("PHONE_CIPHER_KEY"),
		MetadataPolicy:  MetadataPolicy(getenv("CALLBACK_METADATA_POLICY", string(MetadataLenient))),
	}

	switch {
	case cfg.DatabaseURL == "":
		return nil, errors.New("DATABASE_URL not set")
	case cfg.ConsumerKey == "":
		return nil, errors.New("DARAJA_CONSUMER_KEY not set")
	case cfg.ConsumerSecret == "":
		return nil, errors.New("DARAJA_CONSUMER_SECRET not set")
	case cfg.ShortCode == "":
		return nil, errors.New("DARAJA_SHORT_CODE not set")
	case cfg.PassKey == "":
		return nil, errors.New("DARAJA_PASS_KEY not set")
	case cfg.CallbackBaseURL == "":
		return nil, errors.New("CALLBACK_BASE_URL not set")
	case cfg.WebhookSecret == "":
		return nil, errors.New("WEBHOOK_SECRET not set")
	case cfg.PhoneCipherKey == "":
		return nil, errors.New("PHONE_CIPHER_KEY not set")
	}

	if cfg.MetadataPolicy != MetadataLenient && cfg.MetadataPolicy != MetadataStrict {
		return nil, errors.New("CALLBACK_METADATA_POLICY must be lenient or strict")
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, errors.New("PORT must be numeric")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
