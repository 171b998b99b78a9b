package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	EventStore    EventStoreConfig
	Auth          AuthConfig
	Video         VideoConfig
	Chatbot       ChatbotConfig
	Notifications NotificationConfig
	HISSync       HISSyncConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for EventStoreDB.
type EventStoreConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
	// Enabled controls whether the event bus is wired at all
	Enabled bool
}

type AuthConfig struct {
	JWTSecret string
	// TokenTTL is the lifetime of issued access tokens
	TokenTTL time.Duration
}

// VideoConfig holds the settings for the external real-time media SDK.
// The server only brokers channel identifiers; media never touches it.
type VideoConfig struct {
	AppID string
}

// ChatbotConfig holds settings for the external LLM chat service.
type ChatbotConfig struct {
	URL     string
	APIKey  string
	Model   string
	Enabled bool
}

// NotificationConfig tunes the notification worker pool and reminder job.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	// ReminderCron is a cron expression for the daily reminder sweep
	ReminderCron string
	Enabled      bool
}

// HISSyncConfig configures the partner-hospital roster import adapter.
type HISSyncConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	PollInterval time.Duration
	// DoctorTable is the roster table in the partner HIS
	DoctorTable string
	// SourceCode identifies the partner hospital in imported records
	SourceCode string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "doctorry"),
			Password: getEnv("DB_PASSWORD", "doctorry"),
			Database: getEnv("DB_NAME", "doctorry"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
			Enabled:  getEnvBool("EVENTSTORE_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Video: VideoConfig{
			AppID: getEnv("VIDEO_APP_ID", ""),
		},
		Chatbot: ChatbotConfig{
			URL:     getEnv("CHATBOT_URL", "http://localhost:5000"),
			APIKey:  getEnv("CHATBOT_API_KEY", ""),
			Model:   getEnv("CHATBOT_MODEL", "gpt-4o-mini"),
			Enabled: getEnvBool("CHATBOT_ENABLED", true),
		},
		Notifications: NotificationConfig{
			Workers:      getEnvInt("NOTIFICATION_WORKERS", 4),
			BufferSize:   getEnvInt("NOTIFICATION_BUFFER", 1000),
			ReminderCron: getEnv("REMINDER_CRON", "0 18 * * *"),
			Enabled:      getEnvBool("NOTIFICATIONS_ENABLED", true),
		},
		HISSync: HISSyncConfig{
			Enabled:      getEnvBool("HIS_SYNC_ENABLED", false),
			Host:         getEnv("HIS_DB_HOST", "localhost"),
			Port:         getEnvInt("HIS_DB_PORT", 1433),
			User:         getEnv("HIS_DB_USER", ""),
			Password:     getEnv("HIS_DB_PASSWORD", ""),
			Database:     getEnv("HIS_DB_NAME", ""),
			SSLMode:      getEnv("HIS_DB_SSLMODE", "disable"),
			PollInterval: getEnvDuration("HIS_POLL_INTERVAL", 15*time.Minute),
			DoctorTable:  getEnv("HIS_DOCTOR_TABLE", "dbo.Physicians"),
			SourceCode:   getEnv("HIS_SOURCE_CODE", "PARTNER-001"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
