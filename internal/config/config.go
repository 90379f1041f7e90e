package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Revision RevisionConfig
	Workflow WorkflowConfig
	Auth     AuthConfig
	Otel     OtelConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	DeliveryLogPath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	SessionBackend     string // "memory" or "redis"
}

type DatabaseConfig struct {
	Connection string // empty disables the document archive
}

type RevisionConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

type WorkflowConfig struct {
	SelectionAdvanceDelay time.Duration
	CompletionResetDelay  time.Duration
	MaxUploadBytes        int
	AllowedExtensions     []string
	SessionTTL            time.Duration
	IncludeQualityChecks  bool
	CatalogPath           string
}

type AuthConfig struct {
	JWTSecret string
}

type OtelConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.json"),
			DeliveryLogPath:    getEnv("DELIVERY_LOG_FILE_PATH", "delivery.log.json"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			SessionBackend:     getEnv("SESSION_BACKEND", "memory"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Revision: RevisionConfig{
			BaseURL:  getEnv("REVISION_SERVICE_URL", "http://localhost:8000"),
			APIToken: getEnv("REVISION_SERVICE_TOKEN", ""),
			Timeout:  getEnvAsDuration("REVISION_SERVICE_TIMEOUT", 2*time.Minute),
		},
		Workflow: WorkflowConfig{
			SelectionAdvanceDelay: getEnvAsDuration("WORKFLOW_SELECTION_DELAY", 800*time.Millisecond),
			CompletionResetDelay:  getEnvAsDuration("WORKFLOW_RESET_DELAY", 3*time.Second),
			MaxUploadBytes:        getEnvAsInt("WORKFLOW_MAX_UPLOAD_BYTES", 10*1024*1024),
			AllowedExtensions:     getEnvAsList("WORKFLOW_ALLOWED_EXTENSIONS", []string{".pdf", ".docx", ".doc", ".txt", ".md"}),
			SessionTTL:            getEnvAsDuration("WORKFLOW_SESSION_TTL", 24*time.Hour),
			IncludeQualityChecks:  getEnvAsBool("WORKFLOW_INCLUDE_QUALITY_CHECKS", true),
			CatalogPath:           getEnv("WORKFLOW_CATALOG_PATH", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Otel: OtelConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-editorial-be"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("800ms", "2m") or plain seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
