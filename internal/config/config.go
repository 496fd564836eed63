package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Import   ImportConfig
	Parser   ParserConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	UploadDir          string
	ProgressTopic      string
}

type DatabaseConfig struct {
	Connection string
}

// ImportConfig bounds the import pipeline. The limits are configuration, not
// hard-coded in the pipeline itself.
type ImportConfig struct {
	MaxDocumentBytes  int64
	AllowedMimeTypes  []string
	MaxTextChars      int
	ExtractorProvider string // "poppler" or "ocr"
	OCRBaseURL        string
	RemoteTimeoutSecs int // bound for EventStore remote backend calls
}

type ParserConfig struct {
	BaseURL     string
	TimeoutSecs int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
			ProgressTopic:      getEnv("IMPORT_PROGRESS_TOPIC_NAME", "IMPORT_PROGRESS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Import: ImportConfig{
			MaxDocumentBytes:  getEnvAsInt64("IMPORT_MAX_DOCUMENT_BYTES", 10*1024*1024),
			AllowedMimeTypes:  getEnvAsList("IMPORT_ALLOWED_MIME_TYPES", "application/pdf"),
			MaxTextChars:      getEnvAsInt("IMPORT_MAX_TEXT_CHARS", 60000),
			ExtractorProvider: getEnv("EXTRACTOR_PROVIDER", "poppler"),
			OCRBaseURL:        getEnv("OCR_BASE_URL", "http://localhost:8900"),
			RemoteTimeoutSecs: getEnvAsInt("STORE_REMOTE_TIMEOUT_SECONDS", 10),
		},
		Parser: ParserConfig{
			BaseURL:     getEnv("PARSER_BASE_URL", "http://localhost:8800"),
			TimeoutSecs: getEnvAsInt("PARSER_TIMEOUT_SECONDS", 60),
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

func getEnvAsInt64(key string, fallback int64) int64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseInt(strValue, 10, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
