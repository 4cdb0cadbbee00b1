// Package pipeline runs one crawl cycle: fetch every source, upsert the
// merged batch, index what is new and publish the outcome.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/scraper"
	"github.com/MrSnakeDoc/hotdeals/internal/sources"
)

// HealthRecorder receives the outcome of every adapter run.
type HealthRecorder interface {
	RecordSource(src domain.Source, kind string, records int, took time.Duration, err error)
}

// Aggregator fans out over the adapters. Static adapters run concurrently,
// dynamic ones strictly one at a time so only one browser is alive.
type Aggregator struct {
	static  []scraper.Adapter
	dynamic []scraper.Adapter
	health  HealthRecorder
	logger  logger.Logger
}

// NewAggregator splits adapters by kind. health may be nil.
func NewAggregator(adapters []scraper.Adapter, health HealthRecorder, log logger.Logger) *Aggregator {
	a := &Aggregator{health: health, logger: log.Named("aggregator")}
	for _, ad := range adapters {
		if ad.Kind() == sources.KindDynamic {
			a.dynamic = append(a.dynamic, ad)
		} else {
			a.static = append(a.static, ad)
		}
	}
	return a
}

// Run fetches every source and returns the merged records in no particular
// order. A failing adapter contributes nothing.
func (a *Aggregator) Run(ctx context.Context) []domain.DealRecord {
	results := make([][]domain.DealRecord, len(a.static)+len(a.dynamic))

	var g errgroup.Group
	for i, ad := range a.static {
		g.Go(func() error {
			results[i] = a.runOne(ctx, ad)
			return nil
		})
	}
	_ = g.Wait()

	for i, ad := range a.dynamic {
		if ctx.Err() != nil {
			break
		}
		results[len(a.static)+i] = a.runOne(ctx, ad)
	}

	var merged []domain.DealRecord
	for _, r := range results {
		merged = append(merged, r...)
	}

	a.logger.Info("aggregation completed",
		logger.Int("sources", len(results)),
		logger.Int("records", len(merged)))

	return merged
}

func (a *Aggregator) runOne(ctx context.Context, ad scraper.Adapter) (recs []domain.DealRecord) {
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			recs, err = nil, fmt.Errorf("%s adapter panicked: %v", ad.Source(), r)
		}
		if err != nil {
			a.logger.Warn("source failed",
				logger.String("source", string(ad.Source())),
				logger.Error(err))
		}
		if a.health != nil {
			a.health.RecordSource(ad.Source(), string(ad.Kind()), len(recs), time.Since(start), err)
		}
	}()

	if s, ok := ad.(scraper.Scraper); ok {
		recs, err = s.Scrape(ctx)
		if err != nil {
			recs = nil
		}
		return recs
	}
	return ad.Fetch(ctx)
}
