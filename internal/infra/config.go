package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the upstream image-edit endpoint. The reference deployment
// proxies OpenAI's images/edits route with the dall-e-2 model.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "dall-e-2"
	DefaultOpenAISize    = "1024x1024"
	DefaultMaxImageBytes = 4 * 1024 * 1024
	DefaultPromptPolicy  = "emphatic"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAISize        string
	OpenAISendQuality bool
	PromptPolicy      string
	CORSOrigins       []string
	MaxImageBytes     int64
	GeoIPDBPath       string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A missing OPENAI_API_KEY does not abort startup:
// the age-face handler reports CONFIG_ERROR per request, so the capabilities
// route stays reachable on a misconfigured deployment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		OpenAIModel:       getEnv("OPENAI_MODEL", DefaultOpenAIModel),
		OpenAISize:        getEnv("OPENAI_SIZE", DefaultOpenAISize),
		OpenAISendQuality: getEnvBool("OPENAI_SEND_QUALITY", false),
		PromptPolicy:      getEnv("PROMPT_POLICY", DefaultPromptPolicy),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "*")),
		MaxImageBytes:     int64(getEnvInt("MAX_IMAGE_BYTES", DefaultMaxImageBytes)),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
