package vector

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

// keywordEmbedder maps each text onto one axis per keyword.
type keywordEmbedder struct {
	keywords []string
	calls    atomic.Int32
	err      error
}

func (e *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(e.keywords)+1)
		for j, k := range e.keywords {
			if strings.Contains(t, k) {
				v[j] = 1
			}
		}
		v[len(e.keywords)] = 0.1
		out[i] = v
	}
	return out, nil
}

func storedDeal(id int64, src domain.Source, title, price string) domain.StoredDeal {
	return domain.StoredDeal{
		ID: id,
		DealRecord: domain.DealRecord{
			Source: src,
			Title:  title,
			Price:  price,
			Link:   "https://example.com/" + title,
		},
	}
}

func TestContent(t *testing.T) {
	d := domain.DealRecord{Source: domain.SourcePpomppu, Title: "삼성 TV 50인치", Price: "500,000원"}
	assert.Equal(t, "[뽐뿌] 삼성 TV 50인치 - 가격: 500,000원", Content(d))
}

func TestAddAndSearch(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"모니터", "키보드", "SSD"}}
	idx, err := NewInMemory(emb, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	n, err := idx.Add(ctx, []domain.StoredDeal{
		storedDeal(1, domain.SourcePpomppu, "LG 모니터", "199,000원"),
		storedDeal(2, domain.SourceZod, "기계식 키보드", "59,000원"),
		storedDeal(3, domain.SourceRuliweb, "삼성 SSD 1TB", "89,000원"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, idx.Count())

	hits, err := idx.Search(ctx, "모니터 추천", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "LG 모니터", hits[0].Title)
	assert.Equal(t, domain.SourcePpomppu, hits[0].Source)
	assert.Equal(t, "199,000원", hits[0].Price)
	assert.Equal(t, "https://example.com/LG 모니터", hits[0].Link)
	assert.Equal(t, "[뽐뿌] LG 모니터 - 가격: 199,000원", hits[0].Content)

	hits, err = idx.Search(ctx, "아무거나", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3, "k is clamped to the collection size")
}

func TestAddIsAppendOnly(t *testing.T) {
	idx, err := NewInMemory(&keywordEmbedder{keywords: []string{"x"}}, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	d := storedDeal(1, domain.SourceZod, "x", "1원")
	_, err = idx.Add(ctx, []domain.StoredDeal{d})
	require.NoError(t, err)
	_, err = idx.Add(ctx, []domain.StoredDeal{d})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Count())
}

func TestSearchEmptyCollectionSkipsEmbedder(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"x"}}
	idx, err := NewInMemory(emb, logger.NewNop())
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), "x", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Zero(t, emb.calls.Load())
}

func TestAddPropagatesEmbedderErrors(t *testing.T) {
	emb := &keywordEmbedder{err: errors.New("quota exceeded")}
	idx, err := NewInMemory(emb, logger.NewNop())
	require.NoError(t, err)

	n, err := idx.Add(context.Background(), []domain.StoredDeal{storedDeal(1, domain.SourceZod, "x", "1원")})
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Zero(t, idx.Count())
}

func TestOpenPersists(t *testing.T) {
	dir := t.TempDir()
	emb := &keywordEmbedder{keywords: []string{"모니터"}}

	idx, err := Open(dir, emb, logger.NewNop())
	require.NoError(t, err)
	_, err = idx.Add(context.Background(), []domain.StoredDeal{storedDeal(1, domain.SourceZod, "모니터", "1원")})
	require.NoError(t, err)

	reopened, err := Open(dir, emb, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
}

func TestNewRequiresEmbedder(t *testing.T) {
	_, err := NewInMemory(nil, logger.NewNop())
	assert.Error(t, err)
}
