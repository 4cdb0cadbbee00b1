// Package scraper implements the source adapters: one per community site,
// fetching the list page either over plain HTTP or through a headless browser
// and extracting DealRecords with the site's selector strategies.
package scraper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/sources"
)

// Adapter fetches the current list page of one site.
//
// Fetch never fails: transient errors and panics are logged and yield an
// empty slice.
type Adapter interface {
	Source() domain.Source
	Kind() sources.Kind
	Fetch(ctx context.Context) []domain.DealRecord
}

// Scraper is implemented by adapters that can also report why a fetch came
// back empty. The aggregator uses it to record per-source health.
type Scraper interface {
	Scrape(ctx context.Context) ([]domain.DealRecord, error)
}

// Build creates adapters for every enabled site. Dynamic sites are skipped
// when renderer is nil (browser disabled).
func Build(file sources.File, client *http.Client, renderer Renderer, log logger.Logger) []Adapter {
	adapters := make([]Adapter, 0, len(file.Sites))
	for _, site := range file.Enabled() {
		switch site.Kind {
		case sources.KindStatic:
			adapters = append(adapters, NewStatic(site, file.UserAgent, client, log))
		case sources.KindDynamic:
			if renderer == nil {
				log.Warn("browser disabled, skipping dynamic source",
					logger.String("source", string(site.Source)),
				)
				continue
			}
			adapters = append(adapters, NewDynamic(site, renderer, log))
		}
	}
	return adapters
}

// fetchSafely logs the error from scrape and returns an empty result instead.
func fetchSafely(
	ctx context.Context,
	log logger.Logger,
	src domain.Source,
	scrape func(context.Context) ([]domain.DealRecord, error),
) []domain.DealRecord {
	recs, err := scrape(ctx)
	if err != nil {
		log.Warn("fetch failed",
			logger.String("source", string(src)),
			logger.Error(err),
		)
		return nil
	}
	return recs
}

// recoverScrape turns a panic inside scrape into an error.
func recoverScrape(src domain.Source, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s adapter panicked: %v", src, r)
	}
}
