package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/state"
	redisstore "github.com/MrSnakeDoc/hotdeals/internal/store/redis"
)

func TestStateSyncerRestoresMirror(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewStore(client, 0)

	started := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveCrawlState(ctx,
		domain.CrawlReport{StartedAt: started, FinishedAt: started.Add(time.Minute), Inserted: 4},
		[]domain.SourceHealth{{Source: domain.SourceRuliweb, Name: "루리웹", Records: 20}},
	))

	st := state.NewMemoryState()
	require.NoError(t, NewStateSyncer(store, st, logger.NewNop()).Sync(ctx))

	report, ok := st.LastReport()
	require.True(t, ok)
	assert.Equal(t, 4, report.Inserted)
	assert.True(t, report.StartedAt.Equal(started))

	health := st.SourceHealth()
	require.Len(t, health, 1)
	assert.Equal(t, domain.SourceRuliweb, health[0].Source)
}

func TestStateSyncerEmptyRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st := state.NewMemoryState()
	require.NoError(t, NewStateSyncer(redisstore.NewStore(client, 0), st, logger.NewNop()).Sync(context.Background()))

	_, ok := st.LastReport()
	assert.False(t, ok)
}
