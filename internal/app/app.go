package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/hotdeals/internal/auth"
	"github.com/MrSnakeDoc/hotdeals/internal/backup"
	"github.com/MrSnakeDoc/hotdeals/internal/config"
	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/llm/claude"
	"github.com/MrSnakeDoc/hotdeals/internal/llm/openai"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/pipeline"
	"github.com/MrSnakeDoc/hotdeals/internal/rag"
	"github.com/MrSnakeDoc/hotdeals/internal/redis"
	"github.com/MrSnakeDoc/hotdeals/internal/scheduler"
	"github.com/MrSnakeDoc/hotdeals/internal/scraper"
	"github.com/MrSnakeDoc/hotdeals/internal/sources"
	"github.com/MrSnakeDoc/hotdeals/internal/state"
	redisstore "github.com/MrSnakeDoc/hotdeals/internal/store/redis"
	"github.com/MrSnakeDoc/hotdeals/internal/store/sqlite"
	"github.com/MrSnakeDoc/hotdeals/internal/vector"
	"github.com/MrSnakeDoc/hotdeals/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	loc         *time.Location
	deals       *sqlite.Store
	redisClient *goredis.Client
	cache       *redisstore.Store // nil when Redis is disabled
	vectors     *vector.Index     // nil when embeddings are disabled
	state       *state.MemoryState
	pipeline    *pipeline.Pipeline
	backup      *backup.Manager
	auth        *auth.JWTManager // nil when no secret is configured
	scheduler   *scheduler.Scheduler
	server      *httpserver.Server
}

// New wires every component. Nothing runs until Run (or a one-shot command)
// is called.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: log,
		loc:    cfg.Location(),
		state:  state.NewMemoryState(),
	}

	deals, err := sqlite.Open(ctx, cfg.DBPath, a.loc, log)
	if err != nil {
		return nil, fmt.Errorf("opening deal store: %w", err)
	}
	a.deals = deals

	if err := a.initRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.initVectors(); err != nil {
		a.Close()
		return nil, err
	}

	file, err := sources.NewLoader(cfg.SitesFile).Load()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading sites: %w", err)
	}

	var renderer scraper.Renderer
	if cfg.BrowserEnabled {
		renderer = scraper.NewChromeRenderer(cfg.ChromePath, file.UserAgent, log)
	}
	adapters := scraper.Build(file, &http.Client{}, renderer, log)
	log.Info("source adapters ready", logger.Int("adapters", len(adapters)))

	a.pipeline = pipeline.New(a.pipelineOptions(pipeline.NewAggregator(adapters, a.state, log)))
	a.backup = backup.NewManager(deals, cfg.BackupDir, cfg.BackupKeep, a.loc, log)

	if cfg.JWTSecret != "" {
		a.auth, err = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating token manager: %w", err)
		}
	}

	a.scheduler, err = scheduler.New(scheduler.Options{
		Pipeline:     a.pipeline,
		Backup:       a.backup,
		Interval:     cfg.CrawlInterval,
		InitialDelay: cfg.InitialDelay,
		BackupSpec:   cfg.BackupSpec,
		Location:     a.loc,
		Logger:       log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	query, err := a.queryService()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.server = httpserver.New(cfg, log, a.deps(query, file.UserAgent))
	return a, nil
}

func (a *App) initRedis(ctx context.Context) error {
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           a.cfg.RedisAddr,
		User:           a.cfg.RedisUser,
		Password:       a.cfg.RedisPassword,
		RedisDB:        a.cfg.RedisDB,
		DialTimeout:    a.cfg.RedisDT,
		ReadTimeout:    a.cfg.RedisRT,
		WriteTimeout:   a.cfg.RedisWT,
		PoolSize:       a.cfg.RedisPoolSize,
		ConnectTimeout: a.cfg.RedisConnectTimeout,
		RetryInterval:  a.cfg.RedisRetryInterval,
		MaxWait:        a.cfg.RedisMaxWait,
		PingTimeout:    a.cfg.RedisPingTimeout,
		WarnThreshold:  a.cfg.RedisWarnThreshold,
	}, a.logger)
	switch {
	case errors.Is(err, redis.ErrDisabled):
		a.logger.Info("redis not configured, answer cache and state mirror disabled")
		return nil
	case err != nil:
		return fmt.Errorf("connecting to redis: %w", err)
	}

	a.redisClient = client
	a.cache = redisstore.NewStore(client, a.cfg.AnswerCacheTTL)

	syncer := scheduler.NewStateSyncer(a.cache, a.state, a.logger)
	if err := syncer.Sync(ctx); err != nil {
		a.logger.Warn("failed to restore crawl state from redis", logger.Error(err))
	}
	return nil
}

func (a *App) initVectors() error {
	if a.cfg.EmbeddingAPIKey == "" {
		a.logger.Info("embedding key not set, semantic search disabled")
		return nil
	}
	embedder, err := openai.NewEmbeddingService(openai.Config{
		APIKey:  a.cfg.EmbeddingAPIKey,
		BaseURL: a.cfg.EmbeddingBaseURL,
		Model:   a.cfg.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	a.vectors, err = vector.Open(a.cfg.VectorDir, embedder, a.logger)
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}
	a.logger.Info("vector index ready",
		logger.String("model", embedder.ModelName()),
		logger.Int("documents", a.vectors.Count()))
	return nil
}

// pipelineOptions leaves the optional collaborators unset instead of
// wrapping nil pointers in interfaces.
func (a *App) pipelineOptions(collector pipeline.Collector) pipeline.Options {
	opts := pipeline.Options{
		Collector: collector,
		Store:     a.deals,
		State:     a.state,
		Location:  a.loc,
		Logger:    a.logger,
	}
	if a.vectors != nil {
		opts.Indexer = a.vectors
	}
	if a.cache != nil {
		opts.Cache = a.cache
		opts.Mirror = a.cache
	}
	return opts
}

func (a *App) queryService() (*rag.Service, error) {
	opts := rag.Options{
		Keywords: a.deals,
		Log:      a.logger,
	}
	if a.vectors != nil {
		opts.Vectors = a.vectors
	}
	if a.cache != nil {
		opts.Cache = a.cache
	}
	if a.cfg.AnthropicAPIKey != "" {
		gen, err := claude.NewGenerator(claude.Config{
			APIKey: a.cfg.AnthropicAPIKey,
			Model:  a.cfg.LLMModel,
		})
		if err != nil {
			return nil, fmt.Errorf("creating generator: %w", err)
		}
		opts.Generator = gen
		a.logger.Info("answer generator ready", logger.String("model", gen.ModelName()))
	} else {
		a.logger.Warn("anthropic key not set, AI search answers with an apology")
	}
	return rag.NewService(opts), nil
}

func (a *App) deps(query deps.Answerer, userAgent string) deps.Deps {
	d := deps.Deps{
		Logger:            a.logger,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		AllowedHosts:      a.cfg.AllowedHosts,
		AllowedCIDRS:      a.cfg.AllowedCIDRS,
		TrustProxy:        a.cfg.TrustProxy,
		Deals:             a.deals,
		Crawler:           a.pipeline,
		Query:             query,
		State:             a.state,
		Auth:              a.auth,
		CrawlRequiresAuth: a.cfg.CrawlRequiresAuth,
		UserAgent:         userAgent,
		RequestTimeout:    a.cfg.RequestTimeout,
		SearchRateBurst:   a.cfg.SearchRateBurst,
		SearchRatePerMin:  a.cfg.SearchRatePerMin,
		NextCrawl:         a.scheduler.NextCrawl,
	}
	if a.cache != nil {
		d.Usage = a.cache
	}
	if a.vectors != nil {
		d.Vectors = a.vectors
	}
	return d
}

// Run serves HTTP and runs the scheduler until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting %s on %s", version.String(), a.cfg.ListenPort)
	defer a.Close()

	a.scheduler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if runErr == nil {
		a.logger.Info("✅ hotdeals stopped cleanly")
	}
	return runErr
}

// CrawlOnce runs a single crawl cycle outside the scheduler.
func (a *App) CrawlOnce(ctx context.Context) (domain.CrawlReport, error) {
	return a.pipeline.RunOnce(ctx)
}

// Backup writes one rotated backup now.
func (a *App) Backup(ctx context.Context) (string, error) {
	return a.backup.Run(ctx)
}

// Close releases the stores. It is safe to call more than once.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
		a.redisClient = nil
	}
	if a.deals != nil {
		if err := a.deals.Close(); err != nil {
			a.logger.Warnf("failed to close database: %v", err)
		}
		a.deals = nil
	}
}
