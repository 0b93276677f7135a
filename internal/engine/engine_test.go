package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebot/internal/catalog"
	"carebot/internal/gateway"
	"carebot/internal/store"
	"carebot/internal/testutil"
)

const testCatalogJSON = `[
	{"text": "Kolik je vám let?", "type": "text"},
	{"text": "Kouříte?", "type": "yes_no", "has_followup": true, "followup_text": "Kolik cigaret denně?"},
	{"text": "Jaký je váš typ pleti?", "type": "choice", "choices": ["Suchá", "Mastná", "Smíšená"], "required": false},
	{"text": "Jak hodnotíte stav své pleti?", "type": "scale", "scale_min": 1, "scale_max": 5},
	{"text": "Nahrajte fotografii pleti", "type": "photo", "required": false}
]`

type stubGate struct {
	support  map[string]bool
	contexts []string
}

func (s *stubGate) Classify(_ context.Context, questionText, text string) gateway.Verdict {
	s.contexts = append(s.contexts, questionText)
	if s.support[text] {
		return gateway.VerdictSupport
	}
	return gateway.VerdictAnswer
}

type stubSpecialist struct {
	answer string
	err    error
	calls  int
}

func (s *stubSpecialist) Answer(context.Context, string) (string, error) {
	s.calls++
	return s.answer, s.err
}

type mockMetrics struct {
	events      map[string]int
	accepted    map[string]int
	rejected    map[string]int
	routes      int
	stale       int
	transitions int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		events:   make(map[string]int),
		accepted: make(map[string]int),
		rejected: make(map[string]int),
	}
}

func (m *mockMetrics) IncRequestsTotal(string, int)                 {}
func (m *mockMetrics) ObserveRequestDuration(string, time.Duration) {}
func (m *mockMetrics) IncCacheHits()                                {}
func (m *mockMetrics) IncCacheMisses()                              {}
func (m *mockMetrics) IncEvents(kind string)                        { m.events[kind]++ }
func (m *mockMetrics) IncAnswersAccepted(qt string)                 { m.accepted[qt]++ }
func (m *mockMetrics) IncAnswersRejected(reason string)             { m.rejected[reason]++ }
func (m *mockMetrics) IncExternalRoutes()                           { m.routes++ }
func (m *mockMetrics) IncClassifierFailures()                       {}
func (m *mockMetrics) IncStaleInteractions()                        { m.stale++ }
func (m *mockMetrics) ObserveClassifierDuration(time.Duration)      {}
func (m *mockMetrics) ObserveTransitionDuration(time.Duration)      { m.transitions++ }

type fixture struct {
	engine     EngineInterface
	store      *testutil.MemoryStore
	gate       *stubGate
	specialist *stubSpecialist
	metrics    *mockMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalogJSON))
	require.NoError(t, err)

	f := &fixture{
		store:      testutil.NewMemoryStore(),
		gate:       &stubGate{support: make(map[string]bool)},
		specialist: &stubSpecialist{answer: "Doporučuji SPF 50."},
		metrics:    newMockMetrics(),
	}
	f.engine = NewEngine(f.store, cat, f.gate, f.specialist, f.metrics, &testutil.MockLogger{})
	return f
}

func (f *fixture) progress(t *testing.T, userID int64) store.UserProgress {
	t.Helper()
	p, err := f.store.GetProgress(context.Background(), userID)
	require.NoError(t, err)
	return p
}

func TestStartFreshUser(t *testing.T) {
	f := newFixture(t)

	replies, err := f.engine.Start(context.Background(), 1, store.UserProfile{Username: "jana"})
	require.NoError(t, err)

	require.Len(t, replies, 2)
	assert.Equal(t, textWelcome, replies[0].Text)
	assert.Contains(t, replies[1].Text, "Otázka 1/5")
	assert.NotEmpty(t, replies[1].PromptToken)
	// Question 0 is required, no skip button.
	assert.Empty(t, replies[1].Buttons)
}

func TestStartResumesInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	_, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)

	replies, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, textContinue, replies[0].Text)
	assert.Contains(t, replies[1].Text, "Otázka 2/5")
}

func TestFullHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)

	replies, err := f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Otázka 2/5")

	// Affirmative yes/no with a follow-up holds the flow on the follow-up.
	replies, err = f.engine.HandleText(ctx, 1, "ano")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "Kolik cigaret denně?", replies[0].Text)
	assert.True(t, f.progress(t, 1).WaitingForFollowup)

	replies, err = f.engine.HandleText(ctx, 1, "10 cigaret")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Otázka 3/5")
	assert.False(t, f.progress(t, 1).WaitingForFollowup)

	// Choice by 1-based numeral. Optional question carries a skip button.
	assert.NotEmpty(t, replies[0].Buttons)
	replies, err = f.engine.HandleText(ctx, 1, "2")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Otázka 4/5")

	replies, err = f.engine.HandleText(ctx, 1, "4")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Otázka 5/5")

	replies, err = f.engine.HandlePhoto(ctx, 1, store.PhotoUpload{FileID: "f-1", FileSize: 100})
	require.NoError(t, err)
	assert.Equal(t, textCompleted, replies[0].Text)

	p := f.progress(t, 1)
	assert.True(t, p.Completed)

	records, err := f.store.UserAnswers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "Ano", records[1].Value)
	require.NotNil(t, records[1].FollowupValue)
	assert.Equal(t, "10 cigaret", *records[1].FollowupValue)
	assert.Equal(t, "Mastná", records[2].Value)
}

func TestNegativeYesNoSkipsFollowup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	_, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)

	replies, err := f.engine.HandleText(ctx, 1, "ne")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Otázka 3/5")
	assert.False(t, f.progress(t, 1).WaitingForFollowup)
}

func TestRejectionKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	_, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)

	replies, err := f.engine.HandleText(ctx, 1, "možná")
	require.NoError(t, err)
	assert.Equal(t, "Prosím, odpovězte 'Ano' nebo 'Ne'", replies[0].Text)
	assert.Equal(t, 1, f.progress(t, 1).CurrentQuestionIndex)
	assert.Equal(t, 1, f.metrics.rejected["ambiguous_yes_no"])
}

func TestTextOnPhotoQuestionReprompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	for _, msg := range []string{"30", "ne", "1", "3"} {
		_, err = f.engine.HandleText(ctx, 1, msg)
		require.NoError(t, err)
	}

	replies, err := f.engine.HandleText(ctx, 1, "tady je fotka")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Očekávám fotografii")
	assert.Equal(t, 4, f.progress(t, 1).CurrentQuestionIndex)
}

func TestPhotoOnTextQuestionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)

	replies, err := f.engine.HandlePhoto(ctx, 1, store.PhotoUpload{FileID: "f"})
	require.NoError(t, err)
	assert.Equal(t, textUnexpectedPhoto, replies[0].Text)
	assert.Equal(t, 0, f.progress(t, 1).CurrentQuestionIndex)
}

func TestSkipBypassesFollowup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	_, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)

	// Skipping the yes/no question must not enter its follow-up.
	replies, err := f.engine.Skip(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, textQuestionSkipped, replies[0].Text)
	assert.Contains(t, replies[1].Text, "Otázka 3/5")
	assert.False(t, f.progress(t, 1).WaitingForFollowup)

	records, err := f.store.UserAnswers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, store.Skipped, records[1].Value)
}

func TestSkipWhileWaitingSkipsOnlyFollowup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	_, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)
	_, err = f.engine.HandleText(ctx, 1, "ano")
	require.NoError(t, err)

	replies, err := f.engine.Skip(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, textQuestionSkipped, replies[0].Text)
	assert.Contains(t, replies[1].Text, "Otázka 3/5")

	records, err := f.store.UserAnswers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ano", records[1].Value)
	require.NotNil(t, records[1].FollowupValue)
	assert.Equal(t, store.Skipped, *records[1].FollowupValue)
}

func TestSkipButtonWithCurrentToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	replies, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	token := replies[1].PromptToken

	replies, err = f.engine.HandleButton(ctx, 1, ActionSkip, token)
	require.NoError(t, err)
	assert.Equal(t, textQuestionSkipped, replies[0].Text)
	assert.Equal(t, 1, f.progress(t, 1).CurrentQuestionIndex)
}

func TestYesNoPromptCarriesButtons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	replies, err := f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)

	token := replies[0].PromptToken
	require.NotEmpty(t, token)
	require.Len(t, replies[0].Buttons, 2)
	assert.Equal(t, "Ano", replies[0].Buttons[0].Text)
	assert.Equal(t, ActionYes+":"+token, replies[0].Buttons[0].Data)
	assert.Equal(t, "Ne", replies[0].Buttons[1].Text)
	assert.Equal(t, ActionNo+":"+token, replies[0].Buttons[1].Data)
}

func TestNoButtonAnswersQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	replies, err := f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)
	token := replies[0].PromptToken

	replies, err = f.engine.HandleButton(ctx, 1, ActionNo, token)
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Otázka 3/5")

	records, err := f.store.UserAnswers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ne", records[1].Value)
}

func TestYesButtonEntersFollowupAndGoesStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	replies, err := f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)
	token := replies[0].PromptToken

	replies, err = f.engine.HandleButton(ctx, 1, ActionYes, token)
	require.NoError(t, err)
	assert.Equal(t, "Kolik cigaret denně?", replies[0].Text)
	assert.True(t, f.progress(t, 1).WaitingForFollowup)

	// The follow-up has no prompt token, so a second press must be stale.
	replies, err = f.engine.HandleButton(ctx, 1, ActionYes, token)
	require.NoError(t, err)
	assert.Equal(t, textStaleButton, replies[0].Text)
	assert.Equal(t, 1, f.metrics.stale)
}

func TestStaleButtonRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	replies, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	oldToken := replies[1].PromptToken

	// Answering mints a new token, the old button goes stale.
	_, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)

	replies, err = f.engine.HandleButton(ctx, 1, ActionSkip, oldToken)
	require.NoError(t, err)
	assert.Equal(t, textStaleButton, replies[0].Text)
	assert.Equal(t, 1, f.metrics.stale)
	assert.Equal(t, 1, f.progress(t, 1).CurrentQuestionIndex)
}

func TestTextBeforeStartIsNotRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No /start, no prompt on the table. The message must not land on
	// question 1 as an answer.
	replies, err := f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)
	assert.Equal(t, textBeginHint, replies[0].Text)

	records, err := f.store.UserAnswers(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, f.progress(t, 1).CurrentQuestionIndex)
}

func TestAffirmativeTextBeginsQuestionnaire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	replies, err := f.engine.HandleText(ctx, 1, "ano")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, textWelcome, replies[0].Text)
	assert.Contains(t, replies[1].Text, "Otázka 1/5")

	// The affirmative only began the questionnaire, it is not an answer.
	records, err := f.store.UserAnswers(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, records)

	replies, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Otázka 2/5")
}

func TestSupportRoutingBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gate.support["Jaký krém doporučujete?"] = true

	replies, err := f.engine.HandleText(ctx, 1, "Jaký krém doporučujete?")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Doporučuji SPF 50.")
	assert.Equal(t, 1, f.specialist.calls)
}

func TestGateSeesCurrentQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	_, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)

	_, err = f.engine.HandleText(ctx, 1, "ano")
	require.NoError(t, err)
	require.Len(t, f.gate.contexts, 2)
	assert.Equal(t, "Kolik je vám let?", f.gate.contexts[0])
	assert.Equal(t, "Kouříte?", f.gate.contexts[1])

	// While the follow-up is pending the gate sees both texts.
	_, err = f.engine.HandleText(ctx, 1, "10 cigaret")
	require.NoError(t, err)
	require.Len(t, f.gate.contexts, 3)
	assert.Contains(t, f.gate.contexts[2], "Kouříte?")
	assert.Contains(t, f.gate.contexts[2], "Kolik cigaret denně?")
}

func TestSupportRouting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gate.support["Jaký krém doporučujete?"] = true

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)

	replies, err := f.engine.HandleText(ctx, 1, "Jaký krém doporučujete?")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Doporučuji SPF 50.")
	assert.Equal(t, 1, f.specialist.calls)
	assert.Equal(t, 1, f.metrics.routes)
	// The questionnaire did not move.
	assert.Equal(t, 0, f.progress(t, 1).CurrentQuestionIndex)
}

func TestSupportRoutingSpecialistFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gate.support["dotaz"] = true
	f.specialist.err = errors.New("api down")

	replies, err := f.engine.HandleText(ctx, 1, "dotaz")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, gateway.FallbackAnswer)
}

func TestCompletedUserGetsStaticReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	for _, msg := range []string{"30", "ne", "1", "3"} {
		_, err = f.engine.HandleText(ctx, 1, msg)
		require.NoError(t, err)
	}
	_, err = f.engine.Skip(ctx, 1)
	require.NoError(t, err)
	require.True(t, f.progress(t, 1).Completed)

	replies, err := f.engine.HandleText(ctx, 1, "ještě něco")
	require.NoError(t, err)
	assert.Equal(t, textAlreadyCompleted, replies[0].Text)

	replies, err = f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	assert.Equal(t, textAlreadyCompleted, replies[0].Text)
}

func TestRestartResetsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, 1, store.UserProfile{})
	require.NoError(t, err)
	_, err = f.engine.HandleText(ctx, 1, "30")
	require.NoError(t, err)

	replies, err := f.engine.Restart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, textRestarted, replies[0].Text)
	assert.Contains(t, replies[1].Text, "Otázka 1/5")

	p := f.progress(t, 1)
	assert.Equal(t, 0, p.CurrentQuestionIndex)
	assert.False(t, p.HasAnswers)
}

func TestResultsShowsEarliestAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.RecordAnswer(ctx, 1, 0, "Kolik je vám let?", "30", store.KindText))
	require.NoError(t, f.store.RecordAnswer(ctx, 1, 0, "Kolik je vám let?", "31", store.KindText))

	replies, err := f.engine.Results(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "30")
	assert.NotContains(t, replies[0].Text, "31")
}

func TestResultsEscapesMarkdownInValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.RecordAnswer(ctx, 1, 0, "Kolik je vám let?", "30_let *asi*", store.KindText))

	replies, err := f.engine.Results(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, `30\_let \*asi\*`)
}

func TestResultsResendsPhotos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.RecordAnswer(ctx, 1, 0, "Kolik je vám let?", "30", store.KindText))
	require.NoError(t, f.store.RecordPhoto(ctx, 1, 4, "Nahrajte fotografii pleti", store.PhotoUpload{FileID: "photo-1"}))

	replies, err := f.engine.Results(ctx, 1)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "photo-1", replies[1].Photo)
}

func TestResultsEmpty(t *testing.T) {
	f := newFixture(t)

	replies, err := f.engine.Results(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, textNoResults, replies[0].Text)
}

func TestStoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.store.FailNext = errors.New("db gone")

	_, err := f.engine.HandleText(context.Background(), 1, "30")
	assert.Error(t, err)
}
