package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vectors map[string][]float64
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	s.calls++
	vec, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return vec, nil
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float64{1, 0}, []float64{-1, 0}), 1e-9)

	// Mismatched or degenerate vectors score zero instead of panicking.
	assert.Zero(t, cosine([]float64{1, 0}, []float64{1}))
	assert.Zero(t, cosine(nil, nil))
	assert.Zero(t, cosine([]float64{0, 0}, []float64{1, 1}))
}

func TestNewIndexEmbedsMissingVectors(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"Jak často používat krém?": {0, 1},
	}}
	entries := []QAEntry{
		{Question: "Co je SPF?", Answer: "Ochranný faktor.", Embedding: []float64{1, 0}},
		{Question: "Jak často používat krém?", Answer: "Dvakrát denně."},
	}

	idx, err := NewIndex(context.Background(), entries, embedder, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.calls)
	assert.Len(t, idx.entries[1].Embedding, 2)
}

func TestNewIndexEmptyCorpus(t *testing.T) {
	_, err := NewIndex(context.Background(), nil, &stubEmbedder{}, 5)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestSearchRanksByCosineAndTruncates(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"dotaz": {1, 0},
	}}
	entries := []QAEntry{
		{Question: "daleko", Answer: "a", Embedding: []float64{0, 1}},
		{Question: "blízko", Answer: "b", Embedding: []float64{1, 0.1}},
		{Question: "střed", Answer: "c", Embedding: []float64{1, 1}},
	}

	idx, err := NewIndex(context.Background(), entries, embedder, 2)
	require.NoError(t, err)

	matches, err := idx.Search(context.Background(), embedder, "dotaz")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "blízko", matches[0].Entry.Question)
	assert.Equal(t, "střed", matches[1].Entry.Question)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestSearchEmbedFailure(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{"q": {1}}}
	idx, err := NewIndex(context.Background(), []QAEntry{{Question: "q", Answer: "a", Embedding: []float64{1}}}, embedder, 1)
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), embedder, "neznámý")
	assert.Error(t, err)
}
