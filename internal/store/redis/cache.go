package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
)

// CacheAnswer stores the answer to question for the store's answer TTL
func (s *Store) CacheAnswer(ctx context.Context, question string, answer domain.Answer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	if err := s.client.Set(ctx, AnswerKey(question), data, s.answerTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache answer: %w", err)
	}
	return nil
}

// GetCachedAnswer retrieves a cached answer. ok is false on a cache miss.
func (s *Store) GetCachedAnswer(ctx context.Context, question string) (answer domain.Answer, ok bool, err error) {
	data, err := s.client.Get(ctx, AnswerKey(question)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Answer{}, false, nil // Cache miss
		}
		return domain.Answer{}, false, fmt.Errorf("failed to get cached answer: %w", err)
	}
	if err := json.Unmarshal(data, &answer); err != nil {
		return domain.Answer{}, false, fmt.Errorf("failed to unmarshal answer: %w", err)
	}
	return answer, true, nil
}

// FlushAnswers removes all cached answers. Called after a cycle inserted new
// deals so stale "nothing found" replies do not linger.
func (s *Store) FlushAnswers(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixAnswer+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete answer key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush answers: %w", err)
	}
	return nil
}
