package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type config struct {
	ListenAddr   string
	Scenario     string
	TickInterval time.Duration
	NoiseTraders int
	Seed         int64
	StartPrice   float64
	WhaleQty     float64
	WhaleTick    int
	AuthToken    string
	CORSOrigin   string
	Debug        bool
}

// loadConfig reads settings from the environment, with an optional .env file
// as a fallback. Environment variables win over file values.
func loadConfig() config {
	_ = godotenv.Load()

	return config{
		ListenAddr:   getEnv("LISTEN_ADDR", ":8080"),
		Scenario:     getEnv("SCENARIO", "flash_crash"),
		TickInterval: time.Duration(parseIntEnv("TICK_INTERVAL_MS", 100)) * time.Millisecond,
		NoiseTraders: int(parseIntEnv("NOISE_TRADERS", 50)),
		Seed:         parseIntEnv("SEED", 1),
		StartPrice:   parseFloatEnv("START_PRICE", 100),
		WhaleQty:     parseFloatEnv("WHALE_QTY", 50000),
		WhaleTick:    int(parseIntEnv("WHALE_TICK", 500)),
		AuthToken:    os.Getenv("AUTH_TOKEN"),
		CORSOrigin:   getEnv("CORS_ORIGIN", "*"),
		Debug:        getEnv("DEBUG", "") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
