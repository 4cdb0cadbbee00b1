package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/sources"
	"github.com/MrSnakeDoc/hotdeals/internal/utils"
)

const (
	maxPageBytes          = 5 << 20
	detailFetchConcurrent = 4
)

// StaticAdapter fetches a server-rendered list page with one GET.
type StaticAdapter struct {
	site      sources.Site
	userAgent string
	client    *http.Client
	extractor *Extractor
	log       logger.Logger
}

// NewStatic creates a static adapter. A nil client selects http.DefaultClient;
// the per-site timeout is applied through the request context.
func NewStatic(site sources.Site, userAgent string, client *http.Client, log logger.Logger) *StaticAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &StaticAdapter{
		site:      site,
		userAgent: userAgent,
		client:    client,
		extractor: NewExtractor(site),
		log:       log.Named(string(site.Source)),
	}
}

func (a *StaticAdapter) Source() domain.Source { return a.site.Source }
func (a *StaticAdapter) Kind() sources.Kind    { return sources.KindStatic }

func (a *StaticAdapter) Fetch(ctx context.Context) []domain.DealRecord {
	return fetchSafely(ctx, a.log, a.site.Source, a.Scrape)
}

// Scrape fetches and extracts the list page, returning the cause on failure.
func (a *StaticAdapter) Scrape(ctx context.Context) (recs []domain.DealRecord, err error) {
	defer recoverScrape(a.site.Source, &err)

	doc, err := a.document(ctx, a.site.ListURL, a.site.Timeout)
	if err != nil {
		return nil, err
	}

	recs = a.extractor.Extract(doc)
	if len(a.site.DetailThumbnail) > 0 {
		a.fillThumbnails(ctx, recs)
	}

	a.log.Debug("extracted list page",
		logger.String("url", a.site.ListURL),
		logger.Int("records", len(recs)),
	)
	return recs, nil
}

// fillThumbnails visits the post page of every record without a thumbnail.
// Failures leave the thumbnail empty.
func (a *StaticAdapter) fillThumbnails(ctx context.Context, recs []domain.DealRecord) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchConcurrent)

	for i := range recs {
		if recs[i].Thumbnail != "" {
			continue
		}
		g.Go(func() error {
			doc, err := a.document(gctx, recs[i].Link, a.site.DetailTimeout)
			if err != nil {
				a.log.Debug("detail page fetch failed",
					logger.String("link", recs[i].Link),
					logger.Error(err),
				)
				return nil
			}
			recs[i].Thumbnail = domain.AbsoluteURL(recs[i].Link, firstImage(doc, a.site.DetailThumbnail))
			return nil
		})
	}
	_ = g.Wait()
}

func (a *StaticAdapter) document(ctx context.Context, url string, timeout time.Duration) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8")
	req.Header.Set("Referer", a.site.Source.Referer())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer utils.MustClose(resp.Body, "response body", a.log)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	// Several boards still serve EUC-KR.
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
