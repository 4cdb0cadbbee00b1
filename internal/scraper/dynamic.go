package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/sources"
)

// Renderer loads a page in a browser and returns the DOM once one of the
// waitFor selectors is visible. Selectors are tried in order, each bounded by
// waitTimeout.
type Renderer interface {
	Render(ctx context.Context, url string, waitFor []string, waitTimeout time.Duration) (string, error)
}

// DynamicAdapter scrapes a board whose list is built by client-side script.
type DynamicAdapter struct {
	site      sources.Site
	renderer  Renderer
	extractor *Extractor
	log       logger.Logger
}

func NewDynamic(site sources.Site, renderer Renderer, log logger.Logger) *DynamicAdapter {
	return &DynamicAdapter{
		site:      site,
		renderer:  renderer,
		extractor: NewExtractor(site),
		log:       log.Named(string(site.Source)),
	}
}

func (a *DynamicAdapter) Source() domain.Source { return a.site.Source }
func (a *DynamicAdapter) Kind() sources.Kind    { return sources.KindDynamic }

func (a *DynamicAdapter) Fetch(ctx context.Context) []domain.DealRecord {
	return fetchSafely(ctx, a.log, a.site.Source, a.Scrape)
}

// Scrape renders the list page and extracts it, returning the cause on failure.
func (a *DynamicAdapter) Scrape(ctx context.Context) (recs []domain.DealRecord, err error) {
	defer recoverScrape(a.site.Source, &err)

	ctx, cancel := context.WithTimeout(ctx, a.site.Timeout)
	defer cancel()

	waitFor := a.site.WaitFor
	if len(waitFor) == 0 {
		waitFor = a.site.Rows
	}

	html, err := a.renderer.Render(ctx, a.site.ListURL, waitFor, a.site.WaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", a.site.ListURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	recs = a.extractor.Extract(doc)
	a.log.Debug("extracted rendered page",
		logger.String("url", a.site.ListURL),
		logger.Int("records", len(recs)),
	)
	return recs, nil
}
