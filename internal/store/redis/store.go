package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultAnswerTTL is the default TTL for cached answers
	DefaultAnswerTTL = 10 * time.Minute
	// DefaultReportTTL bounds how long a crawl snapshot survives without refresh
	DefaultReportTTL = 7 * 24 * time.Hour
)

// Store handles Redis operations for the answer cache and crawl state.
type Store struct {
	client    *redis.Client
	answerTTL time.Duration
}

// NewStore creates a new Redis store. A zero answerTTL selects DefaultAnswerTTL.
func NewStore(client *redis.Client, answerTTL time.Duration) *Store {
	if answerTTL <= 0 {
		answerTTL = DefaultAnswerTTL
	}
	return &Store{
		client:    client,
		answerTTL: answerTTL,
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
