package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
)

// SaveCrawlState stores the latest report and per-source health (bulk operation)
func (s *Store) SaveCrawlState(ctx context.Context, report domain.CrawlReport, health []domain.SourceHealth) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, KeyLastReport, data, DefaultReportTTL)

	for _, h := range health {
		hd, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("failed to marshal health of %s: %w", h.Source, err)
		}
		pipe.HSet(ctx, KeySourceHealth, string(h.Source), hd)
	}
	pipe.Expire(ctx, KeySourceHealth, DefaultReportTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save crawl state: %w", err)
	}
	return nil
}

// LoadCrawlState retrieves the persisted report (nil when absent) and health.
// Entries that fail to decode are skipped.
func (s *Store) LoadCrawlState(ctx context.Context) (*domain.CrawlReport, []domain.SourceHealth, error) {
	var report *domain.CrawlReport

	data, err := s.client.Get(ctx, KeyLastReport).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// no cycle persisted yet
	case err != nil:
		return nil, nil, fmt.Errorf("failed to get report: %w", err)
	default:
		var r domain.CrawlReport
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		report = &r
	}

	raw, err := s.client.HGetAll(ctx, KeySourceHealth).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get source health: %w", err)
	}

	health := make([]domain.SourceHealth, 0, len(raw))
	for _, v := range raw {
		var h domain.SourceHealth
		if err := json.Unmarshal([]byte(v), &h); err != nil {
			// Skip entries that couldn't be decoded
			continue
		}
		health = append(health, h)
	}

	return report, health, nil
}
