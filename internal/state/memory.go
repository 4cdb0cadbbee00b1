package state

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
)

// MemoryState keeps the latest crawl report and per-source health in memory.
// The redis mirror is restored into it on startup.
type MemoryState struct {
	mu         sync.RWMutex
	health     map[domain.Source]*domain.SourceHealth // Source -> latest outcome
	lastReport *domain.CrawlReport
	cycles     int64 // Completed cycles since process start
}

// NewMemoryState creates an empty state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		health: make(map[domain.Source]*domain.SourceHealth),
	}
}

// RecordSource stores the outcome of one adapter run.
func (s *MemoryState) RecordSource(src domain.Source, kind string, records int, took time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	h, ok := s.health[src]
	if !ok {
		h = &domain.SourceHealth{Source: src, Name: src.DisplayName()}
		s.health[src] = h
	}

	h.Kind = kind
	h.LastRun = now
	h.Records = records
	h.DurationMS = took.Milliseconds()
	h.Error = ""

	switch {
	case err != nil:
		h.Error = err.Error()
		h.ConsecutiveFailures++
	case records == 0:
		h.ConsecutiveFailures++
	default:
		h.LastSuccess = now
		h.ConsecutiveFailures = 0
	}
}

// SourceHealth returns the health of every source seen so far, in the
// canonical source order.
func (s *MemoryState) SourceHealth() []domain.SourceHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SourceHealth, 0, len(s.health))
	for _, src := range domain.AllSources() {
		if h, ok := s.health[src]; ok {
			out = append(out, *h)
		}
	}
	return out
}

// SetLastReport records a finished cycle.
func (s *MemoryState) SetLastReport(r domain.CrawlReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastReport = &r
	s.cycles++
}

// LastReport returns the latest cycle report, if any.
func (s *MemoryState) LastReport() (domain.CrawlReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastReport == nil {
		return domain.CrawlReport{}, false
	}
	return *s.lastReport, true
}

// Cycles returns the number of cycles completed since start.
func (s *MemoryState) Cycles() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cycles
}

// Restore seeds the state from a persisted snapshot. It only fills what the
// process has not produced itself yet.
func (s *MemoryState) Restore(report *domain.CrawlReport, health []domain.SourceHealth) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastReport == nil && report != nil {
		r := *report
		s.lastReport = &r
	}
	for _, h := range health {
		if _, ok := s.health[h.Source]; ok || !h.Source.Valid() {
			continue
		}
		h := h
		s.health[h.Source] = &h
	}
}
