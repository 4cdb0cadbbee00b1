package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/store/sqlite"
)

// ErrCycleInProgress is returned when a cycle is requested while one runs.
var ErrCycleInProgress = errors.New("crawl cycle already in progress")

// DefaultCycleTimeout bounds one full cycle.
const DefaultCycleTimeout = 10 * time.Minute

// Collector produces the records of one cycle.
type Collector interface {
	Run(ctx context.Context) []domain.DealRecord
}

// DealStore persists a batch.
type DealStore interface {
	Upsert(ctx context.Context, records []domain.DealRecord) (sqlite.UpsertResult, []domain.StoredDeal, error)
}

// Indexer appends newly inserted deals to the vector index.
type Indexer interface {
	Add(ctx context.Context, deals []domain.StoredDeal) (int, error)
}

// CacheFlusher drops cached answers once new deals exist.
type CacheFlusher interface {
	FlushAnswers(ctx context.Context) error
}

// StateMirror persists the crawl state outside the process.
type StateMirror interface {
	SaveCrawlState(ctx context.Context, report domain.CrawlReport, health []domain.SourceHealth) error
}

// Tracker holds the in-process crawl state.
type Tracker interface {
	SetLastReport(r domain.CrawlReport)
	SourceHealth() []domain.SourceHealth
}

// Options wires a Pipeline. Indexer, Cache, Mirror and State may be nil.
type Options struct {
	Collector Collector
	Store     DealStore
	Indexer   Indexer
	Cache     CacheFlusher
	Mirror    StateMirror
	State     Tracker
	Timeout   time.Duration
	Location  *time.Location
	Logger    logger.Logger
}

// Pipeline runs crawl cycles, never two at once.
type Pipeline struct {
	collector Collector
	store     DealStore
	indexer   Indexer
	cache     CacheFlusher
	mirror    StateMirror
	state     Tracker
	timeout   time.Duration
	loc       *time.Location
	logger    logger.Logger

	running atomic.Bool
	now     func() time.Time
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCycleTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Pipeline{
		collector: opts.Collector,
		store:     opts.Store,
		indexer:   opts.Indexer,
		cache:     opts.Cache,
		mirror:    opts.Mirror,
		state:     opts.State,
		timeout:   opts.Timeout,
		loc:       opts.Location,
		logger:    opts.Logger.Named("pipeline"),
		now:       time.Now,
	}
}

// Running reports whether a cycle is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// RunOnce executes one cycle. It returns ErrCycleInProgress without doing
// anything when another cycle holds the guard. Only a failed batch commit is
// returned as an error; indexing and cache problems are recorded in the
// report.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.CrawlReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Warn("crawl cycle skipped, previous one still running")
		return domain.CrawlReport{}, ErrCycleInProgress
	}
	defer p.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	report := domain.CrawlReport{StartedAt: p.now().In(p.loc)}
	p.logger.Info("crawl cycle started")

	records := p.collector.Run(ctx)
	report.Fetched = len(records)

	res, inserted, err := p.store.Upsert(ctx, records)
	if err != nil {
		report.Error = err.Error()
		p.finish(ctx, &report)
		return report, fmt.Errorf("persist batch: %w", err)
	}
	report.Inserted, report.Updated, report.Failed = res.Inserted, res.Updated, res.Failed

	if len(inserted) > 0 {
		p.index(ctx, &report, inserted)
		p.flushAnswers(ctx)
	}

	p.finish(ctx, &report)
	return report, nil
}

func (p *Pipeline) index(ctx context.Context, report *domain.CrawlReport, deals []domain.StoredDeal) {
	if p.indexer == nil {
		return
	}
	n, err := p.indexer.Add(ctx, deals)
	report.Indexed = n
	if err != nil {
		// rows stay committed; these deals are simply absent from semantic search
		report.IndexError = err.Error()
		p.logger.Error("indexing new deals failed",
			logger.Int("indexed", n),
			logger.Int("pending", len(deals)-n),
			logger.Error(err))
	}
}

func (p *Pipeline) flushAnswers(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.FlushAnswers(ctx); err != nil {
		p.logger.Warn("failed to flush answer cache", logger.Error(err))
	}
}

func (p *Pipeline) finish(ctx context.Context, report *domain.CrawlReport) {
	report.FinishedAt = p.now().In(p.loc)

	p.logger.Info("crawl cycle completed",
		logger.Int("fetched", report.Fetched),
		logger.Int("inserted", report.Inserted),
		logger.Int("updated", report.Updated),
		logger.Int("failed", report.Failed),
		logger.Int("indexed", report.Indexed),
		logger.Duration("took", report.Duration()))

	if p.state == nil {
		return
	}
	p.state.SetLastReport(*report)

	// Update Redis mirror (best effort)
	if p.mirror != nil {
		if err := p.mirror.SaveCrawlState(ctx, *report, p.state.SourceHealth()); err != nil {
			p.logger.Warn("failed to save crawl state to redis", logger.Error(err))
		}
	}
}
