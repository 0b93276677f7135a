package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"carebot/internal/providers"
	"carebot/internal/structures"
)

const specialistSystemPrompt = `Jsi odborná poradkyně pro péči o pleť. Odpovídáš česky, stručně a věcně.
Odpovídej pouze na základě dodaných podkladů. Pokud podklady odpověď neobsahují, řekni, že odpověď neznáš, a doporuč konzultaci s dermatologem.`

// FallbackAnswer is sent when the specialist cannot produce an answer.
const FallbackAnswer = "Omlouvám se, na tuto otázku nyní neumím odpovědět. Pokračujte prosím ve vyplňování dotazníku."

// Specialist answers off-topic user questions grounded on the most similar
// entries of the QA corpus.
type Specialist struct {
	client   openai.Client
	embedder EmbedderInterface
	index    *Index
	model    string
	logger   providers.Logger
}

func NewSpecialist(conf *structures.Config, logger providers.Logger) (SpecialistInterface, error) {
	if !conf.Specialist.Enabled {
		logger.Infof(providers.TypeGate, "Specialist disabled, using fallback answers")
		return &noopSpecialist{}, nil
	}

	entries, err := LoadCorpus(conf.Specialist.QAFile)
	if err != nil {
		return nil, err
	}

	client := openai.NewClient()
	embedder := NewEmbedder(client, conf.Specialist.EmbeddingModel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	index, err := NewIndex(ctx, entries, embedder, conf.Specialist.TopK)
	if err != nil {
		return nil, err
	}

	logger.Infof(providers.TypeGate, "Specialist ready with %d QA entries", len(entries))
	return &Specialist{
		client:   client,
		embedder: embedder,
		index:    index,
		model:    conf.Specialist.Model,
		logger:   logger,
	}, nil
}

func (s *Specialist) Answer(ctx context.Context, question string) (string, error) {
	matches, err := s.index.Search(ctx, s.embedder, question)
	if err != nil {
		return "", fmt.Errorf("search qa corpus: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Podklady:\n")
	for i, m := range matches {
		fmt.Fprintf(&sb, "%d. Otázka: %s\n   Odpověď: %s\n", i+1, m.Entry.Question, m.Entry.Answer)
	}
	fmt.Fprintf(&sb, "\nDotaz uživatele: %s", question)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(specialistSystemPrompt),
			openai.UserMessage(sb.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("specialist completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("specialist completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

type noopSpecialist struct{}

func (*noopSpecialist) Answer(context.Context, string) (string, error) {
	return FallbackAnswer, nil
}
