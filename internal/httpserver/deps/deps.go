package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/hotdeals/internal/auth"
	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/state"
	redisstore "github.com/MrSnakeDoc/hotdeals/internal/store/redis"
	"github.com/MrSnakeDoc/hotdeals/internal/store/sqlite"
)

// DealReader is the read side of the deal store.
type DealReader interface {
	List(ctx context.Context, q sqlite.ListQuery) ([]domain.StoredDeal, int, error)
	Stats(ctx context.Context) ([]sqlite.SourceCount, error)
	Ping(ctx context.Context) error
}

// Crawler runs a crawl cycle on demand.
type Crawler interface {
	RunOnce(ctx context.Context) (domain.CrawlReport, error)
	Running() bool
}

// Answerer answers free-text questions.
type Answerer interface {
	Answer(ctx context.Context, question string) domain.Answer
}

// UsageStore exposes Redis health and query usage.
type UsageStore interface {
	Ping(ctx context.Context) error
	TopQueries(ctx context.Context, n int) ([]redisstore.QueryCount, error)
}

// VectorCounter reports the size of the vector index.
type VectorCounter interface {
	Count() int
}

type Deps struct {
	Logger                 logger.Logger
	StartTime              time.Time
	Version                string
	Commit                 string
	BuildDate              string
	GoVersion              string
	TimeNow                func() time.Time   // for testing, defaults to time.Now
	AllowedHosts           []string           // Host headers allowed to access the API
	AllowedCIDRS           []string           // IPs allowed to access readyz/infra endpoints
	TrustProxy             bool               // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Deals                  DealReader         // SQLite deal store
	Crawler                Crawler            // Crawl pipeline (crawl-now)
	Query                  Answerer           // RAG query service
	State                  *state.MemoryState // Last crawl report and per-source health
	Usage                  UsageStore         // Redis store (nil when Redis is disabled)
	Vectors                VectorCounter      // Vector index (nil when embeddings are disabled)
	Auth                   *auth.JWTManager   // Token validation (nil when no secret is configured)
	CrawlRequiresAuth      bool               // Gate crawl-now behind a bearer token
	ImageClient            *http.Client       // Client used by the image proxy (nil builds a public-only one)
	ImageProxyAllowPrivate bool               // Let the image proxy reach loopback and private hosts (tests only)
	UserAgent              string             // User-Agent sent upstream by the image proxy
	RequestTimeout         time.Duration      // Default per-route timeout
	CrawlTimeout           time.Duration      // Timeout of crawl-now
	AnswerTimeout          time.Duration      // Timeout of the AI search
	SearchRateBurst        int                // AI search burst per client IP
	SearchRatePerMin       int                // AI search refill per client IP
	NextCrawl              func() time.Time   // Next scheduled crawl (nil when no scheduler)
}

// Now returns the current time through TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
