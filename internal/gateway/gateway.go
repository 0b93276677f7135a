// Package gateway decides what an incoming free-text message is. The
// classifier separates questionnaire answers from off-topic questions, the
// specialist answers the off-topic ones from a curated QA corpus.
package gateway

import "context"

type Verdict string

const (
	// VerdictAnswer routes the message into the questionnaire flow.
	VerdictAnswer Verdict = "answer"
	// VerdictSupport routes the message to the specialist.
	VerdictSupport Verdict = "support"
)

type GateInterface interface {
	// Classify judges text against the question the user is currently
	// answering. questionText is empty when no question is on the table.
	Classify(ctx context.Context, questionText, text string) Verdict
}

type SpecialistInterface interface {
	Answer(ctx context.Context, question string) (string, error)
}
