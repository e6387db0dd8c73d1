package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	DataDir        string
	Redis          RedisConfig

	// Session lifecycle.
	ScheduleGrace time.Duration // how far in the past a scheduled start may lie
	IdleWindow    time.Duration // active rooms with no relay traffic for this long are ended
	SignalTTL     time.Duration // undelivered signals older than this are garbage

	// Relay limits.
	MaxSignalBytes int

	// Recordings.
	RetentionWindow   time.Duration
	LateUploadGrace   time.Duration
	StorageQuotaBytes int64
	MaxRecordingBytes int64

	// Whether new rooms gate guests through the waiting room by default.
	WaitingRoomDefault bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

func Load() *Config {
	// Optional .env file; real environments set variables directly.
	_ = godotenv.Load()

	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		DataDir:        getEnv("DATA_DIR", "./data"),
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		ScheduleGrace:      getDuration("SCHEDULE_GRACE", 5*time.Minute),
		IdleWindow:         getDuration("IDLE_WINDOW", 30*time.Minute),
		SignalTTL:          getDuration("SIGNAL_TTL", time.Hour),
		MaxSignalBytes:     getInt("MAX_SIGNAL_BYTES", 64*1024),
		RetentionWindow:    getDuration("RECORDING_RETENTION", 30*24*time.Hour),
		LateUploadGrace:    getDuration("LATE_UPLOAD_GRACE", time.Hour),
		StorageQuotaBytes:  getInt64("STORAGE_QUOTA_BYTES", 5<<30),
		MaxRecordingBytes:  getInt64("MAX_RECORDING_BYTES", 1<<30),
		WaitingRoomDefault: getBool("WAITING_ROOM_DEFAULT", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
