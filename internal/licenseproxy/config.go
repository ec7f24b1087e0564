package licenseproxy

import (
	"os"
	"strings"
	"time"
)

// DefaultUpstreamURL is the LemonSqueezy license activation endpoint.
const DefaultUpstreamURL = "https://api.lemonsqueezy.com/v1/licenses/activate"

// Config holds the proxy settings. Secrets come from the environment only.
type Config struct {
	Port           string
	InternalAPIKey string // bearer token desktop clients must present
	UpstreamAPIKey string // LemonSqueezy API key
	UpstreamURL    string
	AllowedOrigins []string
	Timeout        time.Duration
}

// ConfigFromEnv reads the proxy settings from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		InternalAPIKey: os.Getenv("INTERNAL_API_KEY"),
		UpstreamAPIKey: os.Getenv("LEMON_SQUEEZY_API_KEY"),
		UpstreamURL:    getEnv("LEMON_SQUEEZY_ACTIVATE_URL", DefaultUpstreamURL),
		Timeout:        15 * time.Second,
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	if d, err := time.ParseDuration(os.Getenv("UPSTREAM_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
