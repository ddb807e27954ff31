package app

import (
	"os"
	"testing"
	"time"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// Clear all env vars that LoadConfig reads so we get pure defaults.
	envVars := []string{
		"HTTP_ADDR", "CATALOG_TIMEOUT_SECONDS", "LOG_LEVEL", "LOG_FORMAT",
		"WATCH_USER_AGENT", "CATALOG_BASE_URL",
		"REDIS_URL", "REDIS_KEY_PREFIX", "MONGO_URI", "MONGO_DB",
		"WATCH_CACHE_TTL_MINUTES", "WATCH_CACHE_STALE_MINUTES",
		"WATCH_CACHE_MAX_ENTRIES", "WATCH_CACHE_DISABLED",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"WATCH_WARM_BOOK_IDS", "WATCH_WARM_INTERVAL_MINUTES",
		"WATCH_WARM_MAX_CONCURRENT", "IMAGE_PROXY_MAX_MB",
	}
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":8080"},
		{"RequestTimeout", cfg.RequestTimeout, 10 * time.Second},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"UserAgent", cfg.UserAgent, "drama-watch/1.0"},
		{"CatalogBaseURL", cfg.CatalogBaseURL, "https://api.dramabox.com"},
		{"RedisURL", cfg.RedisURL, ""},
		{"RedisKeyPrefix", cfg.RedisKeyPrefix, "dramawatch:"},
		{"MongoURI", cfg.MongoURI, ""},
		{"MongoDatabase", cfg.MongoDatabase, "dramawatch"},
		{"CacheTTL", cfg.CacheTTL, 5 * time.Minute},
		{"CacheStaleGrace", cfg.CacheStaleGrace, 30 * time.Minute},
		{"CacheMaxEntries", cfg.CacheMaxEntries, 512},
		{"CacheDisabled", cfg.CacheDisabled, false},
		{"RateLimitRPS", cfg.RateLimitRPS, 50},
		{"RateLimitBurst", cfg.RateLimitBurst, 100},
		{"WarmInterval", cfg.WarmInterval, 10 * time.Minute},
		{"WarmMaxConcurrent", cfg.WarmMaxConcurrent, 4},
		{"ImageProxyMaxBytes", cfg.ImageProxyMaxBytes, int64(5 * 1024 * 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	if len(cfg.WarmBookIDs) != 0 {
		t.Errorf("WarmBookIDs: got %v, want nil/empty", cfg.WarmBookIDs)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	setEnvs(t, map[string]string{
		"HTTP_ADDR":                   ":9090",
		"CATALOG_TIMEOUT_SECONDS":     "3",
		"LOG_LEVEL":                   "DEBUG",
		"LOG_FORMAT":                  "JSON",
		"WATCH_USER_AGENT":            "custom-agent/2.0",
		"CATALOG_BASE_URL":            "https://mirror.example.com",
		"REDIS_URL":                   "redis://redis:6379/0",
		"REDIS_KEY_PREFIX":            "dw-test:",
		"MONGO_URI":                   "mongodb://remote:27017",
		"MONGO_DB":                    "mydb",
		"WATCH_CACHE_TTL_MINUTES":     "2",
		"WATCH_CACHE_STALE_MINUTES":   "15",
		"WATCH_CACHE_MAX_ENTRIES":     "64",
		"WATCH_CACHE_DISABLED":        "true",
		"RATE_LIMIT_RPS":              "10",
		"RATE_LIMIT_BURST":            "25",
		"WATCH_WARM_BOOK_IDS":         "41000110906, 42",
		"WATCH_WARM_INTERVAL_MINUTES": "30",
		"WATCH_WARM_MAX_CONCURRENT":   "2",
		"IMAGE_PROXY_MAX_MB":          "20",
	})

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":9090"},
		{"RequestTimeout", cfg.RequestTimeout, 3 * time.Second},
		{"LogLevel", cfg.LogLevel, "debug"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"UserAgent", cfg.UserAgent, "custom-agent/2.0"},
		{"CatalogBaseURL", cfg.CatalogBaseURL, "https://mirror.example.com"},
		{"RedisURL", cfg.RedisURL, "redis://redis:6379/0"},
		{"RedisKeyPrefix", cfg.RedisKeyPrefix, "dw-test:"},
		{"MongoURI", cfg.MongoURI, "mongodb://remote:27017"},
		{"MongoDatabase", cfg.MongoDatabase, "mydb"},
		{"CacheTTL", cfg.CacheTTL, 2 * time.Minute},
		{"CacheStaleGrace", cfg.CacheStaleGrace, 15 * time.Minute},
		{"CacheMaxEntries", cfg.CacheMaxEntries, 64},
		{"CacheDisabled", cfg.CacheDisabled, true},
		{"RateLimitRPS", cfg.RateLimitRPS, 10},
		{"RateLimitBurst", cfg.RateLimitBurst, 25},
		{"WarmInterval", cfg.WarmInterval, 30 * time.Minute},
		{"WarmMaxConcurrent", cfg.WarmMaxConcurrent, 2},
		{"ImageProxyMaxBytes", cfg.ImageProxyMaxBytes, int64(20 * 1024 * 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	wantBooks := []string{"41000110906", "42"}
	if len(cfg.WarmBookIDs) != len(wantBooks) {
		t.Fatalf("WarmBookIDs: got %d entries, want %d", len(cfg.WarmBookIDs), len(wantBooks))
	}
	for i, got := range cfg.WarmBookIDs {
		if got != wantBooks[i] {
			t.Errorf("WarmBookIDs[%d]: got %q, want %q", i, got, wantBooks[i])
		}
	}
}

func TestGetEnvIntInvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback int
		want     int
	}{
		{"empty string", "", 42, 42},
		{"not a number", "abc", 42, 42},
		{"negative number", "-5", 42, 42},
		{"zero rejected", "0", 42, 42},
		{"valid positive", "100", 42, 100},
		{"whitespace around number", "  50  ", 42, 50},
		{"float", "3.14", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envVal)
			got := getEnvInt("TEST_INT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvInt(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback bool
		want     bool
	}{
		{"empty uses fallback true", "", true, true},
		{"empty uses fallback false", "", false, false},
		{"one", "1", false, true},
		{"true", "true", false, true},
		{"yes uppercase", "YES", false, true},
		{"on mixed case", "On", false, true},
		{"zero", "0", true, false},
		{"false", "false", true, false},
		{"no", "No", true, false},
		{"off uppercase", "OFF", true, false},
		{"garbage uses fallback", "banana", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.envVal)
			got := getEnvBool("TEST_BOOL_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"single value", "41000110906", []string{"41000110906"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"values with spaces", " a , b , c ", []string{"a", "b", "c"}},
		{"trailing comma", "a,b,", []string{"a", "b"}},
		{"empty entries filtered", "a,,b,,c", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_LIST_VAR", tt.input)
			got := getEnvList("TEST_LIST_VAR")
			if tt.want == nil {
				if got != nil {
					t.Errorf("getEnvList(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("getEnvList(%q) returned %d elements, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("getEnvList(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestProgressEnabled(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want bool
	}{
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"configured", "mongodb://localhost:27017", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{MongoURI: tt.uri}
			if got := cfg.ProgressEnabled(); got != tt.want {
				t.Errorf("ProgressEnabled() with %q = %v, want %v", tt.uri, got, tt.want)
			}
		})
	}
}
