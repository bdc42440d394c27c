package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout applied by the router

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DatabasePath  string // sqlite DSN of the durable store (ex: /data/linkmetrics.db)
	ProvidersFile string // optional YAML with provider endpoints and concurrency, empty = built-in defaults

	// Cache tier
	CacheBackend      string        // "redis" | "memory"
	CacheTTL          time.Duration // lifetime of a resolved value
	CacheNegativeTTL  time.Duration // lifetime of a confirmed-absent marker
	MemoryCacheSize   int           // entries kept by the in-memory tier
	CacheFlushOnStart bool          // drop every redis cache entry on startup

	// Aggregation and background jobs
	MaxConcurrency  int           // concurrent provider branches per aggregation
	RefreshInterval time.Duration // interval of the refresh-all run (default: 24h)
	GCInterval      time.Duration // interval of the metric pruner (default: 24h)
	MetricRetention time.Duration // persisted metric values older than this are pruned
	CacheWarmup     bool          // resolve every linked service once on startup

	// Redis
	RedisAddr             string        // ex: "localhost:6379", required when CacheBackend=redis
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to specific IP ranges (e.g. "10.0.0.0/8, 1.2.3.4")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	// Rate limit of the /api routes
	RateLimitBurst     int
	RateLimitPerMinute int
	RateLimitEntries   int
}

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LINKMETRICS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LINKMETRICS_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("LINKMETRICS_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("LINKMETRICS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKMETRICS_PRETTY_LOG", true),

		// Store and providers
		DatabasePath:  requireEnv("LINKMETRICS_DATABASE_PATH"),
		ProvidersFile: getenv("LINKMETRICS_PROVIDERS_FILE", ""),

		// Cache
		CacheBackend:      strings.ToLower(getenv("LINKMETRICS_CACHE_BACKEND", CacheBackendRedis)),
		CacheTTL:          mustDuration("LINKMETRICS_CACHE_TTL", time.Hour),
		CacheNegativeTTL:  mustDuration("LINKMETRICS_CACHE_NEGATIVE_TTL", 5*time.Minute),
		MemoryCacheSize:   getenvInt("LINKMETRICS_MEMORY_CACHE_SIZE", 10000),
		CacheFlushOnStart: mustBool("LINKMETRICS_CACHE_FLUSH_ON_START", false),

		// Jobs
		MaxConcurrency:  getenvInt("LINKMETRICS_MAX_CONCURRENCY", 8),
		RefreshInterval: mustDuration("LINKMETRICS_REFRESH_INTERVAL", 24*time.Hour),
		GCInterval:      mustDuration("LINKMETRICS_GC_INTERVAL", 24*time.Hour),
		MetricRetention: mustDuration("LINKMETRICS_METRIC_RETENTION", 30*24*time.Hour),
		CacheWarmup:     mustBool("LINKMETRICS_CACHE_WARMUP", true),

		// Redis settings
		RedisAddr:             getenv("LINKMETRICS_REDIS_ADDR", ""),
		RedisUser:             getenv("LINKMETRICS_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("LINKMETRICS_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("LINKMETRICS_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("LINKMETRICS_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("LINKMETRICS_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("LINKMETRICS_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("LINKMETRICS_TRUST_PROXY", false),

		RateLimitBurst:     getenvInt("LINKMETRICS_RATE_LIMIT_BURST", 30),
		RateLimitPerMinute: getenvInt("LINKMETRICS_RATE_LIMIT_PER_MIN", 120),
		RateLimitEntries:   getenvInt("LINKMETRICS_RATE_LIMIT_ENTRIES", 10000),
	}

	switch cfg.CacheBackend {
	case CacheBackendRedis:
		if cfg.RedisAddr == "" {
			panic("❌ FATAL: LINKMETRICS_REDIS_ADDR is required when LINKMETRICS_CACHE_BACKEND=redis")
		}
		// Validate Redis password configuration
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: LINKMETRICS_REDIS_PASSWORD is required when LINKMETRICS_REDIS_PASSWORD_REQUIRED=true")
		}
	case CacheBackendMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: Invalid LINKMETRICS_CACHE_BACKEND %q (want redis or memory)", cfg.CacheBackend))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
