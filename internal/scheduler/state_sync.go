package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/state"
)

// StateLoader reads the crawl state mirrored to Redis.
type StateLoader interface {
	LoadCrawlState(ctx context.Context) (*domain.CrawlReport, []domain.SourceHealth, error)
}

// StateSyncer restores the crawl state from Redis into memory on startup
type StateSyncer struct {
	store  StateLoader
	state  *state.MemoryState
	logger logger.Logger
}

// NewStateSyncer creates a new state syncer
func NewStateSyncer(store StateLoader, st *state.MemoryState, log logger.Logger) *StateSyncer {
	return &StateSyncer{
		store:  store,
		state:  st,
		logger: log,
	}
}

// Sync loads the last crawl report and source health from Redis
func (rs *StateSyncer) Sync(ctx context.Context) error {
	rs.logger.Info("syncing crawl state from redis to memory")

	report, health, err := rs.store.LoadCrawlState(ctx)
	if err != nil {
		return err
	}

	if report == nil && len(health) == 0 {
		rs.logger.Info("no crawl state found in redis")
		return nil
	}

	rs.state.Restore(report, health)

	rs.logger.Info("synced crawl state from redis",
		logger.Bool("report", report != nil),
		logger.Int("sources", len(health)))

	return nil
}
