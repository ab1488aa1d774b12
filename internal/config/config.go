// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the realtime service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// ReminderSweepHours is how often the interview-reminder cron fires.
	ReminderSweepHours int
	// ReminderWindowHours is how far ahead of the scheduled time a
	// reminder goes out.
	ReminderWindowHours int
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("REALTIME_PORT")
	if port == "" {
		port = "8083"
	}

	sweep := 1
	if s := os.Getenv("REMINDER_SWEEP_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("REMINDER_SWEEP_HOURS must be a positive integer, got %q", s)
		}
		sweep = v
	}

	window := 24
	if s := os.Getenv("REMINDER_WINDOW_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("REMINDER_WINDOW_HOURS must be a positive integer, got %q", s)
		}
		window = v
	}

	return &Config{
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		ReminderSweepHours:  sweep,
		ReminderWindowHours: window,
	}, nil
}
