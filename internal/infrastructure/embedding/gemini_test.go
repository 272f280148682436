package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/config"
	apperrors "github.com/sagerock/ai-law-research/pkg/errors"
)

type fakeBackend struct {
	dim     int
	batches []int
	tasks   []genai.TaskType
	err     error
	shortBy int
	closed  bool
}

func (f *fakeBackend) vec(seed int) []float32 {
	v := make([]float32, f.dim)
	v[0] = float32(seed)
	return v
}

func (f *fakeBackend) embedOne(_ context.Context, _ string, task genai.TaskType) ([]float32, error) {
	f.tasks = append(f.tasks, task)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec(1), nil
}

func (f *fakeBackend) embedBatch(_ context.Context, texts []string, task genai.TaskType) ([][]float32, error) {
	f.tasks = append(f.tasks, task)
	f.batches = append(f.batches, len(texts))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts)-f.shortBy)
	for i := range out {
		out[i] = f.vec(len(f.batches)*1000 + i)
	}
	return out, nil
}

func (f *fakeBackend) close() error {
	f.closed = true
	return nil
}

func TestEmbedQuery(t *testing.T) {
	b := &fakeBackend{dim: 4}
	e := newEmbedder(b, 4, 0, nil)

	v, err := e.EmbedQuery(context.Background(), "qualified immunity")
	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Equal(t, []genai.TaskType{genai.TaskTypeRetrievalQuery}, b.tasks)

	_, err = e.EmbedQuery(context.Background(), "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))
}

func TestEmbedQuery_DimensionMismatch(t *testing.T) {
	e := newEmbedder(&fakeBackend{dim: 3}, 4, 0, nil)
	_, err := e.EmbedQuery(context.Background(), "x")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingFailed))
}

func TestEmbedDocuments_Batches(t *testing.T) {
	b := &fakeBackend{dim: 2}
	e := newEmbedder(b, 2, 0, nil)

	texts := make([]string, 230)
	for i := range texts {
		texts[i] = "chunk"
	}
	vecs, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 230)
	assert.Equal(t, []int{100, 100, 30}, b.batches)
	assert.Equal(t, float32(1000), vecs[0][0])
	assert.Equal(t, float32(3029), vecs[229][0])
	assert.Equal(t, genai.TaskTypeRetrievalDocument, b.tasks[0])
}

func TestEmbedDocuments_Errors(t *testing.T) {
	e := newEmbedder(&fakeBackend{dim: 2, shortBy: 1}, 2, 0, nil)
	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingFailed))

	e = newEmbedder(&fakeBackend{dim: 2, err: errors.New("quota")}, 2, 0, nil)
	_, err = e.EmbedDocuments(context.Background(), []string{"a"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingFailed))
}

func TestEmbedDocuments_Empty(t *testing.T) {
	b := &fakeBackend{dim: 2}
	vecs, err := newEmbedder(b, 2, 0, nil).EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Empty(t, b.batches)
}

func TestNewEmbedder_RequiresKey(t *testing.T) {
	_, err := NewEmbedder(context.Background(), config.EmbeddingConfig{}, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestClose(t *testing.T) {
	b := &fakeBackend{dim: 2}
	require.NoError(t, newEmbedder(b, 2, 0, nil).Close())
	assert.True(t, b.closed)
}

//Personal.AI order the ending
