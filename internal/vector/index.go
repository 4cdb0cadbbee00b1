// Package vector keeps the semantic index of deals in an on-disk chromem-go
// collection. Documents are appended for newly inserted deals only and are
// never updated or pruned.
package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

const (
	// CollectionName is the chromem collection holding deal documents.
	CollectionName = "hotdeals"
	// embedBatchSize bounds the number of texts sent per embedding request.
	embedBatchSize = 64
)

// Metadata keys stored with every document.
const (
	MetaLink   = "link"
	MetaSource = "source"
	MetaPrice  = "price"
	MetaTitle  = "title"
	MetaDealID = "deal_id"
)

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is one semantic match.
type Hit struct {
	Link       string
	Source     domain.Source
	Title      string
	Price      string
	Content    string
	Similarity float32
}

// Index appends deal documents and answers similarity queries.
type Index struct {
	collection *chromem.Collection
	embedder   Embedder
	log        logger.Logger
}

// Open loads (or creates) the persistent collection under dir.
func Open(dir string, embedder Embedder, log logger.Logger) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, true)
	if err != nil {
		return nil, fmt.Errorf("open vector store %s: %w", dir, err)
	}
	return newIndex(db, embedder, log)
}

// NewInMemory creates a non-persistent index.
func NewInMemory(embedder Embedder, log logger.Logger) (*Index, error) {
	return newIndex(chromem.NewDB(), embedder, log)
}

func newIndex(db *chromem.DB, embedder Embedder, log logger.Logger) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("vector index needs an embedder")
	}
	embed := func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := embedder.EmbedBatch(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
		}
		return vecs[0], nil
	}

	c, err := db.GetOrCreateCollection(CollectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	return &Index{
		collection: c,
		embedder:   embedder,
		log:        log.Named("vector"),
	}, nil
}

// Content renders the text embedded for a deal: "[뽐뿌] title - 가격: price".
func Content(d domain.DealRecord) string {
	return fmt.Sprintf("[%s] %s - 가격: %s", d.Source.DisplayName(), d.Title, d.Price)
}

// Add embeds and appends one document per deal. It returns how many were
// written; on error nothing from the failing batch is stored.
func (i *Index) Add(ctx context.Context, deals []domain.StoredDeal) (int, error) {
	added := 0
	for start := 0; start < len(deals); start += embedBatchSize {
		end := min(start+embedBatchSize, len(deals))
		batch := deals[start:end]

		texts := make([]string, len(batch))
		for j, d := range batch {
			texts[j] = Content(d.DealRecord)
		}

		vecs, err := i.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return added, fmt.Errorf("embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return added, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(batch))
		}

		docs := make([]chromem.Document, len(batch))
		for j, d := range batch {
			docs[j] = chromem.Document{
				ID:        uuid.NewString(),
				Content:   texts[j],
				Embedding: vecs[j],
				Metadata: map[string]string{
					MetaLink:   d.Link,
					MetaSource: string(d.Source),
					MetaPrice:  d.Price,
					MetaTitle:  d.Title,
					MetaDealID: strconv.FormatInt(d.ID, 10),
				},
			}
		}

		if err := i.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return added, fmt.Errorf("add documents: %w", err)
		}
		added += len(docs)
	}

	if added > 0 {
		i.log.Debug("indexed deals", logger.Int("count", added), logger.Int("total", i.Count()))
	}
	return added, nil
}

// Search returns up to k documents most similar to query. An empty
// collection returns nothing without calling the embedder.
func (i *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	n := i.collection.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}
	k = min(k, n)

	vecs, err := i.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vecs))
	}

	res, err := i.collection.QueryEmbedding(ctx, vecs[0], k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]Hit, 0, len(res))
	for _, r := range res {
		hits = append(hits, Hit{
			Link:       r.Metadata[MetaLink],
			Source:     domain.Source(r.Metadata[MetaSource]),
			Title:      r.Metadata[MetaTitle],
			Price:      r.Metadata[MetaPrice],
			Content:    r.Content,
			Similarity: r.Similarity,
		})
	}
	return hits, nil
}

// Count returns the number of stored documents.
func (i *Index) Count() int {
	return i.collection.Count()
}
