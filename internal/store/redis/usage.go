package redis

import (
	"context"
	"fmt"
)

// QueryCount is how often a normalized question was asked.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// IncrementQuery increments the ask counter for a question
func (s *Store) IncrementQuery(ctx context.Context, question string) error {
	q := NormalizeQuestion(question)
	if q == "" {
		return nil
	}
	if err := s.client.ZIncrBy(ctx, KeyQueryUsage, 1, q).Err(); err != nil {
		return fmt.Errorf("failed to increment query usage: %w", err)
	}
	return nil
}

// TopQueries retrieves the n most asked questions, most asked first
func (s *Store) TopQueries(ctx context.Context, n int) ([]QueryCount, error) {
	if n <= 0 {
		return []QueryCount{}, nil
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, KeyQueryUsage, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get query usage: %w", err)
	}

	out := make([]QueryCount, 0, len(zs))
	for _, z := range zs {
		q, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, QueryCount{Query: q, Count: int64(z.Score)})
	}
	return out, nil
}
