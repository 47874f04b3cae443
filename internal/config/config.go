package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Autosave transports understood by the exam client.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// Config holds all application configuration for the exam client and the
// development exam server.
type Config struct {
	LogLevel  string `validate:"required"`
	LogFormat string `validate:"oneof=pretty json"`
	// LogFile receives client logs; empty means stderr. The terminal UI owns stdout.
	LogFile string

	// ─── Exam client ───────────────────────────────────────────────────
	ExamPageURL       string `validate:"required,url"`
	AutosaveTransport string `validate:"oneof=http ws"`
	// AutosaveWSURL overrides the WebSocket endpoint derived from the save URL.
	AutosaveWSURL    string        `validate:"omitempty,url"`
	TickInterval     time.Duration `validate:"gt=0"`
	AutosaveInterval time.Duration `validate:"gt=0"`
	WarningThreshold int           `validate:"gte=0"`
	HTTPTimeout      time.Duration `validate:"gte=0"`

	// ─── Development exam server ───────────────────────────────────────
	ServerPort   string `validate:"required,numeric"`
	GinMode      string `validate:"oneof=debug release test"`
	RedisURL     string
	ExamDuration time.Duration `validate:"gt=0"`
	QuestionFile string
	SaveRate     int `validate:"gte=0"`
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		LogFile:           getEnv("LOG_FILE", ""),
		ExamPageURL:       getEnv("EXAM_PAGE_URL", "http://localhost:8080/exam"),
		AutosaveTransport: strings.ToLower(getEnv("AUTOSAVE_TRANSPORT", TransportHTTP)),
		AutosaveWSURL:     getEnv("AUTOSAVE_WS_URL", ""),
		TickInterval:      time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		AutosaveInterval:  time.Duration(getEnvInt("AUTOSAVE_INTERVAL_SECONDS", 30)) * time.Second,
		WarningThreshold:  getEnvInt("WARNING_THRESHOLD_SECONDS", 60),
		HTTPTimeout:       time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		RedisURL:          getEnv("REDIS_URL", ""),
		ExamDuration:      time.Duration(getEnvInt("EXAM_DURATION_MINUTES", 20)) * time.Minute,
		QuestionFile:      getEnv("QUESTION_FILE", ""),
		SaveRate:          getEnvInt("SAVE_RATE_PER_MINUTE", 30),
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
