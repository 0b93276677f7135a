package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"carebot/internal/providers"
	"carebot/internal/structures"
)

const classifierSystemPrompt = `Jsi klasifikátor zpráv pro dotazníkového bota o péči o pleť.
Uživatel právě vyplňuje dotazník. Dostaneš aktuální otázku dotazníku (pokud nějaká je) a zprávu uživatele.
Rozhodni, zda zpráva je odpověď na tuto otázku, nebo vlastní dotaz mimo dotazník (např. otázka na kosmetiku, pleť, produkty).
Odpověz právě jedním slovem: ANSWER pokud jde o odpověď na dotazník, QUESTION pokud jde o dotaz uživatele.`

// Classifier asks the chat model whether a message is a questionnaire answer
// or a user question. The same text can be either depending on the question
// it arrived under, so verdicts are cached per question and message text; a
// model failure falls back to the configured verdict instead of blocking the
// user.
type Classifier struct {
	client   openai.Client
	model    string
	timeout  time.Duration
	fallback Verdict
	cache    providers.CacheProviderInterface
	metrics  providers.MetricsProviderInterface
	logger   providers.Logger
}

func NewClassifier(conf *structures.Config, cache providers.CacheProviderInterface, metrics providers.MetricsProviderInterface, logger providers.Logger) GateInterface {
	if !conf.Classifier.Enabled {
		logger.Infof(providers.TypeGate, "Classifier disabled, all messages treated as answers")
		return &noopGate{}
	}

	fallback := VerdictAnswer
	if conf.Classifier.FailMode == "closed" {
		fallback = VerdictSupport
	}

	return &Classifier{
		client:   openai.NewClient(),
		model:    conf.Classifier.Model,
		timeout:  conf.Classifier.Timeout * time.Second,
		fallback: fallback,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

func (c *Classifier) Classify(ctx context.Context, questionText, text string) Verdict {
	key := verdictKey(questionText, text)
	if raw, ok := c.cache.Get(key); ok {
		return Verdict(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierSystemPrompt),
			openai.UserMessage(classifierInput(questionText, text)),
		},
		Temperature: openai.Float(0),
	})
	c.metrics.ObserveClassifierDuration(time.Since(start))

	if err != nil {
		c.metrics.IncClassifierFailures()
		c.logger.Warnf(providers.TypeGate, "Classifier failed, falling back to %s: %s", c.fallback, err)
		return c.fallback
	}
	if len(resp.Choices) == 0 {
		c.metrics.IncClassifierFailures()
		c.logger.Warnf(providers.TypeGate, "Classifier returned no choices, falling back to %s", c.fallback)
		return c.fallback
	}

	verdict := parseVerdict(resp.Choices[0].Message.Content)
	c.cache.Set(key, []byte(verdict))
	return verdict
}

// verdictKey separates question and message with a byte neither can
// contain, so two context/text pairs never collide in the cache.
func verdictKey(questionText, text string) string {
	return "verdict:" + questionText + "\x00" + text
}

func classifierInput(questionText, text string) string {
	if questionText == "" {
		return "Zpráva uživatele: " + text
	}
	return "Aktuální otázka: " + questionText + "\nZpráva uživatele: " + text
}

// parseVerdict treats anything that is not clearly a user question as an
// answer; misrouting an answer into support is worse than the reverse.
func parseVerdict(content string) Verdict {
	switch strings.ToUpper(strings.TrimSpace(content)) {
	case "QUESTION":
		return VerdictSupport
	default:
		return VerdictAnswer
	}
}

type noopGate struct{}

func (*noopGate) Classify(context.Context, string, string) Verdict {
	return VerdictAnswer
}
