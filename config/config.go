package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is reported by the CLI and the health endpoint.
const Version = "0.1.0"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	Crawl     CrawlConfig
	Extract   ExtractConfig
	Export    ExportConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Log       LogConfig
}

// ServerConfig controls the optional job API server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the scripted-browser fetch mode.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// DisableImages blocks image requests on the browser tab.
	DisableImages bool // default: true

	// BlockTrackers fails requests to well-known analytics and ad hosts.
	BlockTrackers bool // default: true

	// Stealth injects the stealth script before every navigation.
	Stealth bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration // default: 30s
}

// FetchConfig controls the network fetch mode.
type FetchConfig struct {
	// Timeout is the per-request HTTP deadline.
	Timeout time.Duration // default: 15s

	// UserAgent is sent with every request in both modes.
	UserAgent string

	// RequestsPerSecond throttles outgoing requests; 0 disables throttling.
	RequestsPerSecond float64 // default: 0

	// Burst is the limiter burst when throttling is on.
	Burst int // default: 1
}

// CrawlConfig controls the discovery and extraction pools.
type CrawlConfig struct {
	DiscoveryWorkers  int // default: 5
	ExtractionWorkers int // default: 10
	MaxProducts       int // default: 50
	MaxPages          int // default: 5
}

// ExtractConfig controls field extraction.
type ExtractConfig struct {
	// ReadabilityFallback fills an empty description from the article excerpt.
	ReadabilityFallback bool // default: false
}

// ExportConfig controls export defaults for the CLI.
type ExportConfig struct {
	Format    string // "xlsx", "csv" or "markdown"; default: "xlsx"
	OutputDir string // default: "."
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// JobsConfig controls the in-memory job store.
type JobsConfig struct {
	// TTL is how long a finished job is kept before it is swept.
	TTL time.Duration // default: 1h

	// MaxRunning caps concurrent scrape jobs; extra submissions are rejected.
	MaxRunning int // default: 2
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// DefaultUserAgent is the desktop Chrome string sent when none is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SHELFSCAN_HOST", "127.0.0.1"),
			Port: envIntOr("SHELFSCAN_PORT", 8080),
			Mode: envOr("SHELFSCAN_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:          envBoolOr("SHELFSCAN_HEADLESS", true),
			NoSandbox:         envBoolOr("SHELFSCAN_NO_SANDBOX", true),
			DisableImages:     envBoolOr("SHELFSCAN_DISABLE_IMAGES", true),
			BlockTrackers:     envBoolOr("SHELFSCAN_BLOCK_TRACKERS", true),
			Stealth:           envBoolOr("SHELFSCAN_STEALTH", false),
			BrowserBin:        os.Getenv("SHELFSCAN_BROWSER_BIN"),
			NavigationTimeout: envDurationOr("SHELFSCAN_NAV_TIMEOUT", 30*time.Second),
		},
		Fetch: FetchConfig{
			Timeout:           envDurationOr("SHELFSCAN_FETCH_TIMEOUT", 15*time.Second),
			UserAgent:         envOr("SHELFSCAN_USER_AGENT", DefaultUserAgent),
			RequestsPerSecond: envFloatOr("SHELFSCAN_FETCH_RPS", 0),
			Burst:             envIntOr("SHELFSCAN_FETCH_BURST", 1),
		},
		Crawl: CrawlConfig{
			DiscoveryWorkers:  envIntOr("SHELFSCAN_DISCOVERY_WORKERS", 5),
			ExtractionWorkers: envIntOr("SHELFSCAN_EXTRACTION_WORKERS", 10),
			MaxProducts:       envIntOr("SHELFSCAN_MAX_PRODUCTS", 50),
			MaxPages:          envIntOr("SHELFSCAN_MAX_PAGES", 5),
		},
		Extract: ExtractConfig{
			ReadabilityFallback: envBoolOr("SHELFSCAN_READABILITY_FALLBACK", false),
		},
		Export: ExportConfig{
			Format:    strings.ToLower(envOr("SHELFSCAN_EXPORT_FORMAT", "xlsx")),
			OutputDir: envOr("SHELFSCAN_OUTPUT_DIR", "."),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SHELFSCAN_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SHELFSCAN_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SHELFSCAN_RATE_RPS", 1.0),
			Burst:             envIntOr("SHELFSCAN_RATE_BURST", 3),
		},
		Jobs: JobsConfig{
			TTL:        envDurationOr("SHELFSCAN_JOB_TTL", time.Hour),
			MaxRunning: envIntOr("SHELFSCAN_MAX_RUNNING_JOBS", 2),
		},
		Log: LogConfig{
			Level:  envOr("SHELFSCAN_LOG_LEVEL", "info"),
			Format: envOr("SHELFSCAN_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
