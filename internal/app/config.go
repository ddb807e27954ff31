package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr           string
	RequestTimeout     time.Duration
	LogLevel           string
	LogFormat          string
	UserAgent          string
	CatalogBaseURL     string
	RedisURL           string
	RedisKeyPrefix     string
	MongoURI           string
	MongoDatabase      string
	CacheTTL           time.Duration
	CacheStaleGrace    time.Duration
	CacheMaxEntries    int
	CacheDisabled      bool
	RateLimitRPS       int
	RateLimitBurst     int
	WarmBookIDs        []string
	WarmInterval       time.Duration
	WarmMaxConcurrent  int
	ImageProxyMaxBytes int64
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout:     time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 10)) * time.Second,
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:          getEnv("WATCH_USER_AGENT", "drama-watch/1.0"),
		CatalogBaseURL:     getEnv("CATALOG_BASE_URL", "https://api.dramabox.com"),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisKeyPrefix:     getEnv("REDIS_KEY_PREFIX", "dramawatch:"),
		MongoURI:           getEnv("MONGO_URI", ""),
		MongoDatabase:      getEnv("MONGO_DB", "dramawatch"),
		CacheTTL:           time.Duration(getEnvInt("WATCH_CACHE_TTL_MINUTES", 5)) * time.Minute,
		CacheStaleGrace:    time.Duration(getEnvInt("WATCH_CACHE_STALE_MINUTES", 30)) * time.Minute,
		CacheMaxEntries:    getEnvInt("WATCH_CACHE_MAX_ENTRIES", 512),
		CacheDisabled:      getEnvBool("WATCH_CACHE_DISABLED", false),
		RateLimitRPS:       getEnvInt("RATE_LIMIT_RPS", 50),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
		WarmBookIDs:        getEnvList("WATCH_WARM_BOOK_IDS"),
		WarmInterval:       time.Duration(getEnvInt("WATCH_WARM_INTERVAL_MINUTES", 10)) * time.Minute,
		WarmMaxConcurrent:  getEnvInt("WATCH_WARM_MAX_CONCURRENT", 4),
		ImageProxyMaxBytes: int64(getEnvInt("IMAGE_PROXY_MAX_MB", 5)) * 1024 * 1024,
	}
}

// ProgressEnabled reports whether playback progress persistence is configured.
func (c Config) ProgressEnabled() bool {
	return strings.TrimSpace(c.MongoURI) != ""
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		items = append(items, value)
	}
	return items
}
