package redis

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// KeyPrefixAnswer is the prefix for cached answers
	KeyPrefixAnswer = "hotdeals:answer:"
	// KeyLastReport holds the JSON of the latest crawl report
	KeyLastReport = "hotdeals:crawl:last"
	// KeySourceHealth is a hash of source -> health JSON
	KeySourceHealth = "hotdeals:crawl:health"
	// KeyQueryUsage is a sorted set of normalized questions by ask count
	KeyQueryUsage = "hotdeals:queries"
)

// NormalizeQuestion lowercases and collapses whitespace so trivially
// different spellings share a cache entry.
func NormalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// AnswerKey returns the Redis key for a cached answer. Questions are hashed
// to keep keys bounded.
func AnswerKey(question string) string {
	sum := sha256.Sum256([]byte(NormalizeQuestion(question)))
	return KeyPrefixAnswer + hex.EncodeToString(sum[:16])
}
