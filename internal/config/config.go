package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const redacted = "***REDACTED***"

type Config struct {
	ListenPort      string        // ex: ":8000"
	ShutdownTimeout time.Duration // ex: 10s
	RequestTimeout  time.Duration // per-request budget for list/stats/proxy routes

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage
	DBPath     string // SQLite database file
	VectorDir  string // chromem persistence directory
	BackupDir  string // daily snapshots
	BackupKeep int    // snapshots kept after rotation
	BackupSpec string // cron expression for the backup job

	// Crawling
	SitesFile      string        // optional sites.yaml override (empty = embedded)
	CrawlInterval  time.Duration // time between crawl cycles
	InitialDelay   time.Duration // delay before the first cycle
	Timezone       string        // IANA zone used for created_at and cron
	BrowserEnabled bool          // false => dynamic sources are skipped
	ChromePath     string        // optional Chrome executable

	// Query service
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	EmbeddingModel   string
	AnthropicAPIKey  string
	LLMModel         string
	AnswerCacheTTL   time.Duration
	SearchRateBurst  int
	SearchRatePerMin int

	// Redis (optional, empty address disables it)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	// Auth
	JWTSecret         string
	JWTTTL            time.Duration
	CrawlRequiresAuth bool

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict /readyz and /infra to these networks
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("HOTDEAL_LISTEN_PORT", ":8000"),
		ShutdownTimeout: mustDuration("HOTDEAL_SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:  mustDuration("HOTDEAL_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("HOTDEAL_LOG_LEVEL", "info"),
		PrettyLog: mustBool("HOTDEAL_PRETTY_LOG", true),

		// Storage
		DBPath:     getenv("HOTDEAL_DB_PATH", "./data/hotdeals.db"),
		VectorDir:  getenv("HOTDEAL_VECTOR_DIR", "./data/vectors"),
		BackupDir:  getenv("HOTDEAL_BACKUP_DIR", "./data/backups"),
		BackupKeep: getenvInt("HOTDEAL_BACKUP_KEEP", 7),
		BackupSpec: getenv("HOTDEAL_BACKUP_SPEC", "0 4 * * *"),

		// Crawling
		SitesFile:      getenv("HOTDEAL_SITES_FILE", ""),
		CrawlInterval:  mustDuration("HOTDEAL_CRAWL_INTERVAL", 30*time.Minute),
		InitialDelay:   mustDuration("HOTDEAL_INITIAL_DELAY", 5*time.Second),
		Timezone:       getenv("HOTDEAL_TIMEZONE", "Asia/Seoul"),
		BrowserEnabled: mustBool("HOTDEAL_BROWSER_ENABLED", true),
		ChromePath:     getenv("HOTDEAL_CHROME_PATH", ""),

		// Query service
		EmbeddingAPIKey:  getenv("HOTDEAL_EMBEDDING_API_KEY", ""),
		EmbeddingBaseURL: getenv("HOTDEAL_EMBEDDING_BASE_URL", ""),
		EmbeddingModel:   getenv("HOTDEAL_EMBEDDING_MODEL", ""),
		AnthropicAPIKey:  getenv("HOTDEAL_ANTHROPIC_API_KEY", ""),
		LLMModel:         getenv("HOTDEAL_LLM_MODEL", ""),
		AnswerCacheTTL:   mustDuration("HOTDEAL_ANSWER_CACHE_TTL", 10*time.Minute),
		SearchRateBurst:  getenvInt("HOTDEAL_SEARCH_RATE_BURST", 5),
		SearchRatePerMin: getenvInt("HOTDEAL_SEARCH_RATE_PER_MIN", 20),

		// Redis settings
		RedisAddr:           getenv("HOTDEAL_REDIS_ADDR", ""),
		RedisUser:           getenv("HOTDEAL_REDIS_USERNAME", ""),
		RedisPassword:       getenv("HOTDEAL_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("HOTDEAL_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Auth
		JWTSecret:         getenv("HOTDEAL_JWT_SECRET", ""),
		JWTTTL:            mustDuration("HOTDEAL_JWT_TTL", 7*24*time.Hour),
		CrawlRequiresAuth: mustBool("HOTDEAL_CRAWL_REQUIRES_AUTH", false),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("HOTDEAL_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("HOTDEAL_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("HOTDEAL_TRUST_PROXY", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid HOTDEAL_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.CrawlInterval < time.Minute {
		return fmt.Errorf("HOTDEAL_CRAWL_INTERVAL must be at least 1m, got %s", c.CrawlInterval)
	}
	if c.BackupKeep < 1 {
		return fmt.Errorf("HOTDEAL_BACKUP_KEEP must be positive, got %d", c.BackupKeep)
	}
	if c.CrawlRequiresAuth && c.JWTSecret == "" {
		return fmt.Errorf("HOTDEAL_JWT_SECRET is required when HOTDEAL_CRAWL_REQUIRES_AUTH=true")
	}
	return nil
}

// Location returns the configured time zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{&cp.RedisPassword, &cp.RedisUser, &cp.JWTSecret, &cp.EmbeddingAPIKey, &cp.AnthropicAPIKey} {
		if *s != "" {
			*s = redacted
		}
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
