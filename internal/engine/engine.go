// Package engine drives the questionnaire. All progress transitions go
// through here; the transport only translates chat updates into engine calls
// and replies back into messages.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carebot/internal/answers"
	"carebot/internal/catalog"
	"carebot/internal/gateway"
	"carebot/internal/providers"
	"carebot/internal/store"
)

type EngineInterface interface {
	Start(ctx context.Context, userID int64, profile store.UserProfile) ([]Reply, error)
	HandleText(ctx context.Context, userID int64, text string) ([]Reply, error)
	HandlePhoto(ctx context.Context, userID int64, photo store.PhotoUpload) ([]Reply, error)
	HandleButton(ctx context.Context, userID int64, action, token string) ([]Reply, error)
	Skip(ctx context.Context, userID int64) ([]Reply, error)
	Restart(ctx context.Context, userID int64) ([]Reply, error)
	Results(ctx context.Context, userID int64) ([]Reply, error)
	BindPrompt(ctx context.Context, userID int64, token, messageRef string) error
}

type Engine struct {
	store      store.ProgressStore
	catalog    *catalog.Catalog
	gate       gateway.GateInterface
	specialist gateway.SpecialistInterface
	metrics    providers.MetricsProviderInterface
	logger     providers.Logger
	locks      *userLocks
}

func NewEngine(
	progressStore store.ProgressStore,
	cat *catalog.Catalog,
	gate gateway.GateInterface,
	specialist gateway.SpecialistInterface,
	metrics providers.MetricsProviderInterface,
	logger providers.Logger,
) EngineInterface {
	return &Engine{
		store:      progressStore,
		catalog:    cat,
		gate:       gate,
		specialist: specialist,
		metrics:    metrics,
		logger:     logger,
		locks:      newUserLocks(),
	}
}

func (e *Engine) Start(ctx context.Context, userID int64, profile store.UserProfile) ([]Reply, error) {
	defer e.observe("start")()
	unlock := e.locks.Lock(userID)
	defer unlock()

	if err := e.store.UpsertUser(ctx, userID, profile); err != nil {
		return nil, err
	}
	progress, err := e.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case progress.Completed:
		return []Reply{{Text: textAlreadyCompleted}}, nil

	case progress.WaitingForFollowup:
		return []Reply{
			{Text: textContinue},
			{Text: e.catalog.FollowupPrompt(progress.FollowupQuestionIndex)},
		}, nil

	case progress.CurrentQuestionIndex > 0 || progress.HasAnswers:
		prompt, err := e.questionReply(ctx, userID, progress.CurrentQuestionIndex)
		if err != nil {
			return nil, err
		}
		return []Reply{{Text: textContinue}, prompt}, nil

	default:
		prompt, err := e.questionReply(ctx, userID, 0)
		if err != nil {
			return nil, err
		}
		return []Reply{{Text: textWelcome}, prompt}, nil
	}
}

func (e *Engine) HandleText(ctx context.Context, userID int64, text string) ([]Reply, error) {
	defer e.observe("text")()
	unlock := e.locks.Lock(userID)
	defer unlock()

	progress, err := e.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if progress.Completed {
		return []Reply{{Text: textAlreadyCompleted}}, nil
	}

	// Nothing recorded and no prompt pending means the user never began;
	// free text must not land on question 1.
	if progress.CurrentQuestionIndex == 0 && !progress.WaitingForFollowup && !progress.HasAnswers {
		token, err := e.store.PendingPromptToken(ctx, userID)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return e.beforeStartLocked(ctx, userID, text)
		}
	}

	// The gate runs before validation so an off-topic question never gets
	// stored as an answer.
	if e.gate.Classify(ctx, e.gateContext(progress), text) == gateway.VerdictSupport {
		return e.routeToSpecialist(ctx, userID, text)
	}

	return e.answerLocked(ctx, userID, progress, text)
}

// beforeStartLocked handles free text from a user with no questionnaire on
// the table. An affirmative word begins the questionnaire, an off-topic
// question still reaches the specialist, anything else gets a begin hint.
func (e *Engine) beforeStartLocked(ctx context.Context, userID int64, text string) ([]Reply, error) {
	if answers.IsAffirmative(text) {
		prompt, err := e.questionReply(ctx, userID, 0)
		if err != nil {
			return nil, err
		}
		return []Reply{{Text: textWelcome}, prompt}, nil
	}
	if e.gate.Classify(ctx, "", text) == gateway.VerdictSupport {
		return e.routeToSpecialist(ctx, userID, text)
	}
	return []Reply{{Text: textBeginHint}}, nil
}

// gateContext is the question text the user is currently answering. While a
// follow-up is pending, the follow-up text rides along with its question.
func (e *Engine) gateContext(progress store.UserProgress) string {
	index := progress.CurrentQuestionIndex
	if progress.WaitingForFollowup {
		index = progress.FollowupQuestionIndex
	}
	question, err := e.catalog.Get(index)
	if err != nil {
		return ""
	}
	if progress.WaitingForFollowup {
		return question.Text() + " " + e.catalog.FollowupPrompt(index)
	}
	return question.Text()
}

// answerLocked records a validated answer and moves the questionnaire
// forward. Callers hold the user lock.
func (e *Engine) answerLocked(ctx context.Context, userID int64, progress store.UserProgress, text string) ([]Reply, error) {
	if progress.WaitingForFollowup {
		return e.acceptFollowup(ctx, userID, progress.FollowupQuestionIndex, text)
	}

	question, err := e.catalog.Get(progress.CurrentQuestionIndex)
	if err != nil {
		return nil, err
	}

	value, rejection := answers.Validate(question, text)
	if rejection != nil {
		e.metrics.IncAnswersRejected(string(rejection.Reason))
		return []Reply{{Text: rejection.Message}}, nil
	}

	if err := e.store.RecordAnswer(ctx, userID, question.Index(), question.Text(), value, store.KindText); err != nil {
		return nil, err
	}
	e.metrics.IncAnswersAccepted(string(question.Kind()))

	if yn, ok := question.(catalog.YesNoQuestion); ok && yn.HasFollowup && value == answers.CanonicalAffirm {
		if err := e.store.EnterFollowupWait(ctx, userID, question.Index()); err != nil {
			return nil, err
		}
		// No prompt token accompanies the follow-up, so the previous
		// question's buttons must stop working here.
		if err := e.store.ClearPendingPrompt(ctx, userID); err != nil {
			return nil, err
		}
		return []Reply{{Text: e.catalog.FollowupPrompt(question.Index())}}, nil
	}

	return e.advance(ctx, userID, question.Index()+1)
}

func (e *Engine) HandlePhoto(ctx context.Context, userID int64, photo store.PhotoUpload) ([]Reply, error) {
	defer e.observe("photo")()
	unlock := e.locks.Lock(userID)
	defer unlock()

	progress, err := e.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if progress.Completed {
		return []Reply{{Text: textAlreadyCompleted}}, nil
	}
	if progress.WaitingForFollowup {
		e.metrics.IncAnswersRejected("unexpected_photo")
		return []Reply{{Text: textUnexpectedPhoto}}, nil
	}

	question, err := e.catalog.Get(progress.CurrentQuestionIndex)
	if err != nil {
		return nil, err
	}
	if _, ok := question.(catalog.PhotoQuestion); !ok {
		e.metrics.IncAnswersRejected("unexpected_photo")
		return []Reply{{Text: textUnexpectedPhoto}}, nil
	}

	if err := e.store.RecordPhoto(ctx, userID, question.Index(), question.Text(), photo); err != nil {
		return nil, err
	}
	e.metrics.IncAnswersAccepted(string(catalog.KindPhoto))

	return e.advance(ctx, userID, question.Index()+1)
}

func (e *Engine) HandleButton(ctx context.Context, userID int64, action, token string) ([]Reply, error) {
	defer e.observe("button")()
	unlock := e.locks.Lock(userID)
	defer unlock()

	current, err := e.store.PendingPromptToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == "" || current != token {
		e.metrics.IncStaleInteractions()
		return []Reply{{Text: textStaleButton}}, nil
	}

	switch action {
	case ActionSkip:
		return e.skipLocked(ctx, userID)
	case ActionYes, ActionNo:
		progress, err := e.store.GetProgress(ctx, userID)
		if err != nil {
			return nil, err
		}
		if progress.Completed {
			return []Reply{{Text: textAlreadyCompleted}}, nil
		}
		value := answers.CanonicalAffirm
		if action == ActionNo {
			value = answers.CanonicalNegate
		}
		return e.answerLocked(ctx, userID, progress, value)
	default:
		e.logger.Warnf(providers.TypeBot, "Unknown button action %q from user %d", action, userID)
		return []Reply{{Text: textStaleButton}}, nil
	}
}

func (e *Engine) Skip(ctx context.Context, userID int64) ([]Reply, error) {
	defer e.observe("skip")()
	unlock := e.locks.Lock(userID)
	defer unlock()
	return e.skipLocked(ctx, userID)
}

// skipLocked stores the skip sentinel for the pending question. A skipped
// yes/no question never enters its follow-up; a skip while waiting for a
// follow-up skips only the follow-up.
func (e *Engine) skipLocked(ctx context.Context, userID int64) ([]Reply, error) {
	progress, err := e.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if progress.Completed {
		return []Reply{{Text: textAlreadyCompleted}}, nil
	}

	if progress.WaitingForFollowup {
		if err := e.store.RecordFollowup(ctx, userID, progress.FollowupQuestionIndex, store.Skipped); err != nil {
			return nil, err
		}
		replies, err := e.advance(ctx, userID, progress.FollowupQuestionIndex+1)
		if err != nil {
			return nil, err
		}
		return append([]Reply{{Text: textQuestionSkipped}}, replies...), nil
	}

	question, err := e.catalog.Get(progress.CurrentQuestionIndex)
	if err != nil {
		return nil, err
	}

	kind := store.KindText
	if _, ok := question.(catalog.PhotoQuestion); ok {
		kind = store.KindPhoto
	}
	if err := e.store.RecordAnswer(ctx, userID, question.Index(), question.Text(), store.Skipped, kind); err != nil {
		return nil, err
	}

	replies, err := e.advance(ctx, userID, question.Index()+1)
	if err != nil {
		return nil, err
	}
	return append([]Reply{{Text: textQuestionSkipped}}, replies...), nil
}

func (e *Engine) Restart(ctx context.Context, userID int64) ([]Reply, error) {
	defer e.observe("restart")()
	unlock := e.locks.Lock(userID)
	defer unlock()

	if err := e.store.ResetProgress(ctx, userID); err != nil {
		return nil, err
	}
	e.logger.Infof(providers.TypeBot, "User %d restarted the questionnaire", userID)

	prompt, err := e.questionReply(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	return []Reply{{Text: textRestarted}, prompt}, nil
}

func (e *Engine) Results(ctx context.Context, userID int64) ([]Reply, error) {
	defer e.observe("results")()
	unlock := e.locks.Lock(userID)
	defer unlock()

	records, err := e.store.UserAnswers(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []Reply{{Text: textNoResults}}, nil
	}

	// Earliest record per question wins; later re-answers stay in the
	// record but do not change what the user sees.
	first := make(map[int]store.AnswerRecord)
	for _, rec := range records {
		if _, ok := first[rec.QuestionIndex]; !ok {
			first[rec.QuestionIndex] = rec
		}
	}

	var sb strings.Builder
	sb.WriteString("📋 *Vaše odpovědi:*\n")
	for i := 0; i < e.catalog.Total(); i++ {
		rec, ok := first[i]
		if !ok {
			continue
		}
		value := escapeMarkdown(rec.Value)
		if rec.Value == store.Skipped {
			value = "(přeskočeno)"
		}
		fmt.Fprintf(&sb, "\n*%d.* %s\n%s", i+1, escapeMarkdown(rec.QuestionText), value)
		if rec.FollowupValue != nil && *rec.FollowupValue != store.Skipped {
			fmt.Fprintf(&sb, "\n_Doplnění: %s_", escapeMarkdown(*rec.FollowupValue))
		}
		sb.WriteString("\n")
	}
	replies := []Reply{{Text: sb.String()}}

	photos, err := e.store.UserPhotos(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, photo := range photos {
		replies = append(replies, Reply{Photo: photo.FileID})
	}
	return replies, nil
}

func (e *Engine) BindPrompt(ctx context.Context, userID int64, token, messageRef string) error {
	return e.store.BindPromptMessage(ctx, userID, token, messageRef)
}

// advance issues the prompt for the next question or completes the
// questionnaire when none is left.
func (e *Engine) advance(ctx context.Context, userID int64, nextIndex int) ([]Reply, error) {
	if nextIndex >= e.catalog.Total() {
		if err := e.store.MarkCompleted(ctx, userID); err != nil {
			return nil, err
		}
		e.logger.Infof(providers.TypeBot, "User %d completed the questionnaire", userID)
		return []Reply{{Text: textCompleted}}, nil
	}
	prompt, err := e.questionReply(ctx, userID, nextIndex)
	if err != nil {
		return nil, err
	}
	return []Reply{prompt}, nil
}

// questionReply mints a prompt token and persists it before the prompt is
// handed to the transport, so a crash between store and send leaves at worst
// an unanswered token, never an unverifiable button.
func (e *Engine) questionReply(ctx context.Context, userID int64, index int) (Reply, error) {
	text, err := e.catalog.Prompt(index)
	if err != nil {
		return Reply{}, err
	}
	question, err := e.catalog.Get(index)
	if err != nil {
		return Reply{}, err
	}

	token := uuid.NewString()
	if err := e.store.SetPendingPrompt(ctx, userID, token); err != nil {
		return Reply{}, err
	}

	reply := Reply{Text: text, PromptToken: token}
	if _, ok := question.(catalog.YesNoQuestion); ok {
		reply.Buttons = []Button{
			{Text: "Ano", Data: ActionYes + ":" + token},
			{Text: "Ne", Data: ActionNo + ":" + token},
		}
	}
	if !question.Required() {
		reply.Buttons = append(reply.Buttons, Button{Text: "Přeskočit ⏭", Data: ActionSkip + ":" + token})
	}
	return reply, nil
}

func (e *Engine) acceptFollowup(ctx context.Context, userID int64, questionIndex int, text string) ([]Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		e.metrics.IncAnswersRejected(string(answers.ReasonEmptyAnswer))
		return []Reply{{Text: "Prosím, zadejte odpověď"}}, nil
	}
	if err := e.store.RecordFollowup(ctx, userID, questionIndex, text); err != nil {
		return nil, err
	}
	e.metrics.IncAnswersAccepted("followup")
	return e.advance(ctx, userID, questionIndex+1)
}

func (e *Engine) routeToSpecialist(ctx context.Context, userID int64, text string) ([]Reply, error) {
	e.metrics.IncExternalRoutes()
	e.logger.Debugf(providers.TypeGate, "Routing message of user %d to specialist", userID)

	answer, err := e.specialist.Answer(ctx, text)
	if err != nil {
		e.logger.Errorf(providers.TypeGate, "Specialist failed for user %d: %s", userID, err)
		answer = gateway.FallbackAnswer
	}
	return []Reply{{Text: answer + textSupportSuffix}}, nil
}

func (e *Engine) observe(kind string) func() {
	e.metrics.IncEvents(kind)
	start := time.Now()
	return func() {
		e.metrics.ObserveTransitionDuration(time.Since(start))
	}
}
