package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
)

var ErrEmptyCorpus = errors.New("empty qa corpus")

// QAEntry is one curated question/answer pair. Embedding may be precomputed
// in the corpus file; missing vectors are computed once at startup.
type QAEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Embedding []float64 `json:"embedding,omitempty"`
}

type Match struct {
	Entry QAEntry
	Score float64
}

type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type openAIEmbedder struct {
	client openai.Client
	model  string
}

func NewEmbedder(client openai.Client, model string) EmbedderInterface {
	return &openAIEmbedder{client: client, model: model}
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embed: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// Index is an in-memory similarity index over the QA corpus. Read-only after
// construction.
type Index struct {
	entries []QAEntry
	topK    int
}

func LoadCorpus(path string) ([]QAEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read qa corpus %s: %w", path, err)
	}
	var entries []QAEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse qa corpus %s: %w", path, err)
	}
	return entries, nil
}

// NewIndex fills in any missing embeddings through the embedder and returns
// a searchable index.
func NewIndex(ctx context.Context, entries []QAEntry, embedder EmbedderInterface, topK int) (*Index, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCorpus
	}
	if topK < 1 {
		topK = 1
	}
	for i := range entries {
		if len(entries[i].Embedding) > 0 {
			continue
		}
		vec, err := embedder.Embed(ctx, entries[i].Question)
		if err != nil {
			return nil, fmt.Errorf("embed corpus entry %d: %w", i, err)
		}
		entries[i].Embedding = vec
	}
	return &Index{entries: entries, topK: topK}, nil
}

func (idx *Index) Search(ctx context.Context, embedder EmbedderInterface, query string) ([]Match, error) {
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(idx.entries))
	for _, entry := range idx.entries {
		matches = append(matches, Match{Entry: entry, Score: cosine(vec, entry.Embedding)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if len(matches) > idx.topK {
		matches = matches[:idx.topK]
	}
	return matches, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
