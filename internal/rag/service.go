// Package rag answers free-text questions about stored deals with hybrid
// retrieval (vector similarity plus title keywords) and a generative model.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/vector"
)

// Fixed replies.
const (
	NothingFound = "관련된 핫딜 정보를 찾을 수 없습니다."
	Apology      = "죄송합니다. 답변을 생성하는 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."
)

// DefaultTopK is how many results each retrieval stage contributes.
const DefaultTopK = 5

// ErrNoGenerator is logged when no model is configured.
var ErrNoGenerator = errors.New("no generative model configured")

const systemPrompt = `당신은 한국 커뮤니티 핫딜 정보를 안내하는 친절한 쇼핑 도우미입니다.
아래 [핫딜 목록]에 있는 정보만 사용해 답변하세요.
- 상품을 언급할 때는 반드시 출처 사이트와 가격을 함께 적으세요.
- 목록에 없는 상품, 가격, 할인 정보는 지어내지 마세요.
- 목록으로 답할 수 없는 질문이면 관련 정보가 없다고 솔직하게 말하세요.
- 한국어로 간결하게 답변하세요.`

// VectorSearcher returns semantic matches.
type VectorSearcher interface {
	Search(ctx context.Context, query string, k int) ([]vector.Hit, error)
}

// KeywordSearcher returns deals whose title contains every token, newest first.
type KeywordSearcher interface {
	SearchTitle(ctx context.Context, tokens []string, limit int) ([]domain.StoredDeal, error)
}

// Generator produces the answer text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// AnswerCache stores finished answers keyed by question.
type AnswerCache interface {
	GetCachedAnswer(ctx context.Context, question string) (domain.Answer, bool, error)
	CacheAnswer(ctx context.Context, question string, answer domain.Answer) error
	IncrementQuery(ctx context.Context, question string) error
}

// Options wires the service. Vectors, Generator and Cache may be nil.
type Options struct {
	Vectors   VectorSearcher
	Keywords  KeywordSearcher
	Generator Generator
	Cache     AnswerCache
	TopK      int
	Log       logger.Logger
}

// Service answers questions.
type Service struct {
	vectors   VectorSearcher
	keywords  KeywordSearcher
	generator Generator
	cache     AnswerCache
	topK      int
	log       logger.Logger
}

// NewService creates a query service.
func NewService(opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Service{
		vectors:   opts.Vectors,
		keywords:  opts.Keywords,
		generator: opts.Generator,
		cache:     opts.Cache,
		topK:      opts.TopK,
		log:       opts.Log.Named("rag"),
	}
}

// candidate is one retrieved deal, whichever stage produced it.
type candidate struct {
	Title  string
	Link   string
	Source domain.Source
	Price  string
}

// Answer runs the retrieval and synthesis stages. It never returns an error:
// model failures surface as Apology in the answer text.
func (s *Service) Answer(ctx context.Context, question string) domain.Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{Answer: NothingFound, Sources: []domain.SourceRef{}}
	}

	if s.cache != nil {
		if err := s.cache.IncrementQuery(ctx, question); err != nil {
			s.log.Debug("query usage not recorded", logger.Error(err))
		}
		if cached, ok, err := s.cache.GetCachedAnswer(ctx, question); err != nil {
			s.log.Warn("answer cache read failed", logger.Error(err))
		} else if ok {
			s.log.Debug("answer served from cache", logger.String("question", question))
			return cached
		}
	}

	merged := merge(s.semantic(ctx, question), s.keyword(ctx, question))
	if len(merged) == 0 {
		answer := domain.Answer{Answer: NothingFound, Sources: []domain.SourceRef{}}
		s.store(ctx, question, answer)
		return answer
	}

	refs := make([]domain.SourceRef, len(merged))
	for i, c := range merged {
		refs[i] = domain.SourceRef{Title: c.Title, Link: c.Link}
	}

	text, err := s.generate(ctx, question, merged)
	if err != nil {
		s.log.Error("answer generation failed",
			logger.String("question", question),
			logger.Int("context", len(merged)),
			logger.Error(err))
		return domain.Answer{Answer: Apology, Sources: refs}
	}

	answer := domain.Answer{Answer: text, Sources: refs}
	s.store(ctx, question, answer)
	return answer
}

func (s *Service) semantic(ctx context.Context, question string) []candidate {
	if s.vectors == nil {
		return nil
	}
	hits, err := s.vectors.Search(ctx, question, s.topK)
	if err != nil {
		// keyword results still answer the question
		s.log.Warn("semantic retrieval failed", logger.Error(err))
		return nil
	}
	out := make([]candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, candidate{Title: h.Title, Link: h.Link, Source: h.Source, Price: h.Price})
	}
	return out
}

func (s *Service) keyword(ctx context.Context, question string) []candidate {
	if s.keywords == nil {
		return nil
	}
	deals, err := s.keywords.SearchTitle(ctx, strings.Fields(question), s.topK)
	if err != nil {
		s.log.Warn("keyword retrieval failed", logger.Error(err))
		return nil
	}
	out := make([]candidate, 0, len(deals))
	for _, d := range deals {
		out = append(out, candidate{Title: d.Title, Link: d.Link, Source: d.Source, Price: d.Price})
	}
	return out
}

func (s *Service) generate(ctx context.Context, question string, merged []candidate) (string, error) {
	if s.generator == nil {
		return "", ErrNoGenerator
	}
	text, err := s.generator.Generate(ctx, systemPrompt, buildPrompt(question, merged))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty answer")
	}
	return text, nil
}

func (s *Service) store(ctx context.Context, question string, answer domain.Answer) {
	if s.cache == nil {
		return
	}
	if err := s.cache.CacheAnswer(ctx, question, answer); err != nil {
		s.log.Warn("answer cache write failed", logger.Error(err))
	}
}

// merge unions the result sets in order, keeping the first candidate seen
// for each link.
func merge(sets ...[]candidate) []candidate {
	seen := make(map[string]struct{})
	var out []candidate
	for _, set := range sets {
		for _, c := range set {
			if c.Link == "" {
				continue
			}
			if _, dup := seen[c.Link]; dup {
				continue
			}
			seen[c.Link] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// buildPrompt renders the context block followed by the question.
func buildPrompt(question string, merged []candidate) string {
	var b strings.Builder
	b.WriteString("[핫딜 목록]\n")
	for i, c := range merged {
		fmt.Fprintf(&b, "%d. [%s] %s - 가격: %s (%s)\n", i+1, c.Source.DisplayName(), c.Title, c.Price, c.Link)
	}
	b.WriteString("\n[질문]\n")
	b.WriteString(question)
	return b.String()
}
