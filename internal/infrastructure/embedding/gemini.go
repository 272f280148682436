// Package embedding produces query and chunk vectors with the Gemini
// embedding API.
package embedding

import (
	"context"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

const (
	DefaultModel = "text-embedding-004"
	// maxBatch is the service limit for batchEmbedContents.
	maxBatch = 100
)

// backend is the remote call surface, split out for tests.
type backend interface {
	embedOne(ctx context.Context, text string, task genai.TaskType) ([]float32, error)
	embedBatch(ctx context.Context, texts []string, task genai.TaskType) ([][]float32, error)
	close() error
}

type geminiBackend struct {
	client *genai.Client
	model  string
}

func (g *geminiBackend) embedOne(ctx context.Context, text string, task genai.TaskType) ([]float32, error) {
	em := g.client.EmbeddingModel(g.model)
	em.TaskType = task
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "empty embedding")
	}
	return res.Embedding.Values, nil
}

func (g *geminiBackend) embedBatch(ctx context.Context, texts []string, task genai.TaskType) ([][]float32, error) {
	em := g.client.EmbeddingModel(g.model)
	em.TaskType = task
	b := em.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e != nil {
			out[i] = e.Values
		}
	}
	return out, nil
}

func (g *geminiBackend) close() error { return g.client.Close() }

// Embedder implements search.Embedder. Every vector is checked against the
// configured dimension so a model change cannot silently corrupt the index.
type Embedder struct {
	backend   backend
	dimension int
	timeout   time.Duration
	logger    logging.Logger
}

func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger logging.Logger) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeValidation, "embedding api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to create embedding client")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return newEmbedder(&geminiBackend{client: client, model: model}, cfg.Dimension, cfg.Timeout, logger), nil
}

func newEmbedder(b backend, dimension int, timeout time.Duration, logger logging.Logger) *Embedder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if dimension == 0 {
		dimension = 768
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Embedder{backend: b, dimension: dimension, timeout: timeout, logger: logger.Named("embedder")}
}

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.InvalidParam("query text is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	v, err := e.backend.embedOne(ctx, text, genai.TaskTypeRetrievalQuery)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "query embedding failed")
	}
	if err := e.check(v); err != nil {
		return nil, err
	}
	return v, nil
}

// EmbedDocuments embeds texts in service-sized batches, preserving order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	vecs, err := e.backend.embedBatch(ctx, texts, genai.TaskTypeRetrievalDocument)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "document embedding failed")
	}
	if len(vecs) != len(texts) {
		return nil, errors.Newf(errors.ErrCodeEmbeddingFailed, "got %d embeddings for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if err := e.check(v); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("Embedded batch",
		logging.Int("count", len(texts)),
		logging.Duration("elapsed", time.Since(start)))
	return vecs, nil
}

func (e *Embedder) check(v []float32) error {
	if len(v) != e.dimension {
		return errors.Newf(errors.ErrCodeEmbeddingFailed, "embedding dimension %d, want %d", len(v), e.dimension)
	}
	return nil
}

func (e *Embedder) Close() error { return e.backend.close() }

var _ search.Embedder = (*Embedder)(nil)

//Personal.AI order the ending
