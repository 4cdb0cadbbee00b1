package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/scraper"
	"github.com/MrSnakeDoc/hotdeals/internal/sources"
	"github.com/MrSnakeDoc/hotdeals/internal/state"
)

// fakeAdapter implements both Adapter and Scraper.
type fakeAdapter struct {
	src  domain.Source
	kind sources.Kind
	fn   func(ctx context.Context) ([]domain.DealRecord, error)
}

func (f *fakeAdapter) Source() domain.Source { return f.src }
func (f *fakeAdapter) Kind() sources.Kind    { return f.kind }
func (f *fakeAdapter) Scrape(ctx context.Context) ([]domain.DealRecord, error) {
	return f.fn(ctx)
}
func (f *fakeAdapter) Fetch(ctx context.Context) []domain.DealRecord {
	recs, _ := f.fn(ctx)
	return recs
}

// fetchOnly implements only Adapter.
type fetchOnly struct {
	src  domain.Source
	kind sources.Kind
	fn   func() []domain.DealRecord
}

func (f *fetchOnly) Source() domain.Source                     { return f.src }
func (f *fetchOnly) Kind() sources.Kind                        { return f.kind }
func (f *fetchOnly) Fetch(context.Context) []domain.DealRecord { return f.fn() }

func records(src domain.Source, n int) []domain.DealRecord {
	out := make([]domain.DealRecord, n)
	for i := range out {
		out[i] = domain.DealRecord{
			Source: src,
			Title:  fmt.Sprintf("%s deal %d", src, i),
			Link:   fmt.Sprintf("https://example.com/%s/%d", src, i),
		}
	}
	return out
}

func returning(recs []domain.DealRecord) func(context.Context) ([]domain.DealRecord, error) {
	return func(context.Context) ([]domain.DealRecord, error) { return recs, nil }
}

func links(recs []domain.DealRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Link
	}
	sort.Strings(out)
	return out
}

func TestAggregatorSurvivesFailingAdapters(t *testing.T) {
	st := state.NewMemoryState()
	adapters := []scraper.Adapter{
		&fakeAdapter{src: domain.SourcePpomppu, kind: sources.KindStatic, fn: returning(records(domain.SourcePpomppu, 2))},
		&fakeAdapter{src: domain.SourceRuliweb, kind: sources.KindStatic, fn: func(context.Context) ([]domain.DealRecord, error) {
			return nil, errors.New("connection reset")
		}},
		&fetchOnly{src: domain.SourceZod, kind: sources.KindStatic, fn: func() []domain.DealRecord {
			panic("nil map")
		}},
		&fakeAdapter{src: domain.SourceQuasarzone, kind: sources.KindDynamic, fn: func(context.Context) ([]domain.DealRecord, error) {
			panic("browser crashed")
		}},
		&fakeAdapter{src: domain.SourceFmkorea, kind: sources.KindDynamic, fn: returning(records(domain.SourceFmkorea, 1))},
	}
	agg := NewAggregator(adapters, st, logger.NewNop())

	var got []domain.DealRecord
	require.NotPanics(t, func() { got = agg.Run(context.Background()) })

	want := append(records(domain.SourcePpomppu, 2), records(domain.SourceFmkorea, 1)...)
	assert.Equal(t, links(want), links(got))

	health := st.SourceHealth()
	require.Len(t, health, 5)
	byName := map[domain.Source]domain.SourceHealth{}
	for _, h := range health {
		byName[h.Source] = h
	}
	assert.True(t, byName[domain.SourcePpomppu].Healthy())
	assert.Equal(t, "connection reset", byName[domain.SourceRuliweb].Error)
	assert.Contains(t, byName[domain.SourceZod].Error, "panicked")
	assert.Contains(t, byName[domain.SourceQuasarzone].Error, "panicked")
	assert.Equal(t, "dynamic", byName[domain.SourceFmkorea].Kind)
	assert.Equal(t, 1, byName[domain.SourceFmkorea].Records)
}

func TestAggregatorRunsStaticConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)

	// each static adapter only succeeds if the other one is in flight too
	rendezvous := func(src domain.Source) func(context.Context) ([]domain.DealRecord, error) {
		return func(context.Context) ([]domain.DealRecord, error) {
			arrived.Done()
			done := make(chan struct{})
			go func() { arrived.Wait(); close(done) }()
			select {
			case <-done:
				return records(src, 1), nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("ran alone")
			}
		}
	}

	agg := NewAggregator([]scraper.Adapter{
		&fakeAdapter{src: domain.SourcePpomppu, kind: sources.KindStatic, fn: rendezvous(domain.SourcePpomppu)},
		&fakeAdapter{src: domain.SourceRuliweb, kind: sources.KindStatic, fn: rendezvous(domain.SourceRuliweb)},
	}, nil, logger.NewNop())

	assert.Len(t, agg.Run(context.Background()), 2)
}

func TestAggregatorRunsDynamicOneAtATime(t *testing.T) {
	var inflight, peak atomic.Int32
	var order []domain.Source
	var mu sync.Mutex

	browser := func(src domain.Source) func(context.Context) ([]domain.DealRecord, error) {
		return func(context.Context) ([]domain.DealRecord, error) {
			n := inflight.Add(1)
			defer inflight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			mu.Lock()
			order = append(order, src)
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			return records(src, 1), nil
		}
	}

	agg := NewAggregator([]scraper.Adapter{
		&fakeAdapter{src: domain.SourceQuasarzone, kind: sources.KindDynamic, fn: browser(domain.SourceQuasarzone)},
		&fakeAdapter{src: domain.SourceFmkorea, kind: sources.KindDynamic, fn: browser(domain.SourceFmkorea)},
	}, nil, logger.NewNop())

	assert.Len(t, agg.Run(context.Background()), 2)
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, []domain.Source{domain.SourceQuasarzone, domain.SourceFmkorea}, order)
}
