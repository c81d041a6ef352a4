// Package config provides environment-based configuration for the commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runstream configuration.
type Config struct {
	// Consumer settings
	Endpoint      string
	Transport     string // "sse" or "ws"
	JournalDSN    string
	MaxBuffer     int
	RetryAttempts int

	// Timeouts
	TaskTimeout time.Duration

	// Replay server settings
	ServerPort  int
	ScriptSteps int
	ScriptDelay time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Endpoint:      getEnv("RUNSTREAM_ENDPOINT", "http://localhost:8090/stream"),
		Transport:     getEnv("RUNSTREAM_TRANSPORT", "sse"),
		JournalDSN:    getEnv("RUNSTREAM_JOURNAL", ""),
		MaxBuffer:     getEnvInt("RUNSTREAM_MAX_BUFFER", 1<<20),
		RetryAttempts: getEnvInt("RUNSTREAM_RETRY_ATTEMPTS", 1),
		TaskTimeout:   time.Duration(getEnvInt("RUNSTREAM_TASK_TIMEOUT_MS", 300000)) * time.Millisecond,
		ServerPort:    getEnvInt("RUNSTREAM_SERVER_PORT", 8090),
		ScriptSteps:   getEnvInt("RUNSTREAM_SCRIPT_STEPS", 3),
		ScriptDelay:   time.Duration(getEnvInt("RUNSTREAM_SCRIPT_DELAY_MS", 50)) * time.Millisecond,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
