// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ascendancy-esports/tournament-backend/internal/engine"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	RoomTTL          time.Duration
	SweepInterval    time.Duration
	SideSelectPolicy engine.SidePolicy

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	RazorpayKeyID     string
	RazorpayKeySecret string

	FrontendOrigin string
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Port:              envOr("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:          envOr("SMTP_FROM", os.Getenv("SMTP_USER")),
		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		FrontendOrigin:    envOr("FRONTEND_ORIGIN", "http://localhost:5173"),
	}

	var err error
	if cfg.RoomTTL, err = durationOr("ROOM_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationOr("SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}

	smtpPort := envOr("SMTP_PORT", "587")
	if cfg.SMTPPort, err = strconv.Atoi(smtpPort); err != nil {
		return Config{}, fmt.Errorf("SMTP_PORT: %w", err)
	}

	switch policy := engine.SidePolicy(envOr("SIDE_SELECT_POLICY", string(engine.PolicyNonFirstPick))); policy {
	case engine.PolicyNonFirstPick, engine.PolicyFirstPick:
		cfg.SideSelectPolicy = policy
	default:
		return Config{}, fmt.Errorf("SIDE_SELECT_POLICY: unknown policy %q", policy)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
