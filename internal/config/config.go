package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI (empty key disables the AI scheduling path)
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int
	AIScheduleTimeout    time.Duration

	// Scheduling engine
	SweepInterval         time.Duration
	ScheduleDaysAhead     int
	Location              *time.Location
	GenerateRatePerMinute int

	// Logging
	LogLevel string
	LogFile  string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		RedisURL:              mustGetEnv("REDIS_URL"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		AIScheduleTimeout:     time.Duration(getEnvAsIntOrDefault("AI_SCHEDULE_TIMEOUT_SECONDS", 20)) * time.Second,
		SweepInterval:         time.Duration(getEnvAsIntOrDefault("SWEEP_INTERVAL_MINUTES", 5)) * time.Minute,
		ScheduleDaysAhead:     getEnvAsIntOrDefault("SCHEDULE_DAYS_AHEAD", 14),
		Location:              getEnvAsLocation("TIMEZONE", time.UTC),
		GenerateRatePerMinute: getEnvAsIntOrDefault("GENERATE_RATE_LIMIT_PER_MINUTE", 5),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:               getEnvOrDefault("LOG_FILE", ""),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// AIEnabled reports whether the Gemini scheduling path is configured.
func (c *Config) AIEnabled() bool {
	return c.GeminiAPIKey != ""
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvAsLocation(key string, defaultLoc *time.Location) *time.Location {
	val := os.Getenv(key)
	if val == "" {
		return defaultLoc
	}
	loc, err := time.LoadLocation(val)
	if err != nil {
		return defaultLoc
	}
	return loc
}
