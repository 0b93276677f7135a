package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carebot/internal/providers"
	"carebot/internal/store"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}

// MemoryStore is an in-memory store.ProgressStore with the same advance and
// follow-up semantics as the SQL backends. Single mutex, good enough for tests.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*memoryUser
	FailNext error
}

type memoryUser struct {
	profile  store.UserProfile
	progress store.UserProgress
	answers  []store.AnswerRecord
	photos   []store.PhotoRecord
	token    string
	msgRef   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*memoryUser)}
}

func (m *MemoryStore) takeErr() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *MemoryStore) user(userID int64) *memoryUser {
	u, ok := m.users[userID]
	if !ok {
		u = &memoryUser{progress: store.UserProgress{UserID: userID}}
		m.users[userID] = u
	}
	return u
}

func (m *MemoryStore) UpsertUser(_ context.Context, userID int64, profile store.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.user(userID).profile = profile
	return nil
}

func (m *MemoryStore) GetProgress(_ context.Context, userID int64) (store.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return store.UserProgress{}, err
	}
	u := m.user(userID)
	p := u.progress
	p.HasAnswers = len(u.answers) > 0
	return p, nil
}

func (m *MemoryStore) RecordAnswer(_ context.Context, userID int64, questionIndex int, questionText, value string, kind store.AnswerKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	u := m.user(userID)
	m.nextID++
	u.answers = append(u.answers, store.AnswerRecord{
		ID: m.nextID, UserID: userID, QuestionIndex: questionIndex,
		QuestionText: questionText, Value: value, Kind: kind, CreatedAt: time.Now(),
	})
	if !u.progress.WaitingForFollowup {
		u.progress.CurrentQuestionIndex = questionIndex + 1
	}
	return nil
}

func (m *MemoryStore) RecordPhoto(_ context.Context, userID int64, questionIndex int, questionText string, photo store.PhotoUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	u := m.user(userID)
	m.nextID++
	u.photos = append(u.photos, store.PhotoRecord{
		ID: m.nextID, UserID: userID, QuestionIndex: questionIndex,
		FileID: photo.FileID, FileUniqueID: photo.FileUniqueID,
		FileSize: photo.FileSize, Caption: photo.Caption, UploadedAt: time.Now(),
	})
	m.nextID++
	u.answers = append(u.answers, store.AnswerRecord{
		ID: m.nextID, UserID: userID, QuestionIndex: questionIndex,
		QuestionText: questionText, Value: "Fotografie nahrána",
		Kind: store.KindPhoto, MediaRef: photo.FileID, CreatedAt: time.Now(),
	})
	if !u.progress.WaitingForFollowup {
		u.progress.CurrentQuestionIndex = questionIndex + 1
	}
	return nil
}

func (m *MemoryStore) EnterFollowupWait(_ context.Context, userID int64, questionIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	u := m.user(userID)
	u.progress.WaitingForFollowup = true
	u.progress.FollowupQuestionIndex = questionIndex
	return nil
}

func (m *MemoryStore) RecordFollowup(_ context.Context, userID int64, questionIndex int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	u := m.user(userID)
	for i := len(u.answers) - 1; i >= 0; i-- {
		if u.answers[i].QuestionIndex == questionIndex {
			v := value
			u.answers[i].FollowupValue = &v
			break
		}
	}
	u.progress.WaitingForFollowup = false
	u.progress.FollowupQuestionIndex = 0
	u.progress.CurrentQuestionIndex = questionIndex + 1
	return nil
}

func (m *MemoryStore) MarkCompleted(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	u := m.user(userID)
	now := time.Now()
	u.progress.Completed = true
	u.progress.CompletedAt = &now
	u.progress.WaitingForFollowup = false
	u.token = ""
	return nil
}

func (m *MemoryStore) ResetProgress(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	u := m.user(userID)
	u.answers = nil
	u.photos = nil
	u.token = ""
	u.progress = store.UserProgress{UserID: userID}
	return nil
}

func (m *MemoryStore) UserAnswers(_ context.Context, userID int64) ([]store.AnswerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	u := m.user(userID)
	out := make([]store.AnswerRecord, len(u.answers))
	copy(out, u.answers)
	return out, nil
}

func (m *MemoryStore) UserPhotos(_ context.Context, userID int64) ([]store.PhotoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	u := m.user(userID)
	out := make([]store.PhotoRecord, len(u.photos))
	copy(out, u.photos)
	return out, nil
}

func (m *MemoryStore) SetPendingPrompt(_ context.Context, userID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	u := m.user(userID)
	u.token = token
	u.msgRef = ""
	return nil
}

func (m *MemoryStore) BindPromptMessage(_ context.Context, userID int64, token, messageRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	u := m.user(userID)
	if u.token == token {
		u.msgRef = messageRef
	}
	return nil
}

func (m *MemoryStore) PendingPromptToken(_ context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return "", err
	}
	return m.user(userID).token, nil
}

func (m *MemoryStore) ClearPendingPrompt(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.user(userID).token = ""
	return nil
}

func (m *MemoryStore) Statistics(_ context.Context) (store.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return store.Statistics{}, err
	}
	var stats store.Statistics
	for _, u := range m.users {
		stats.TotalUsers++
		if u.progress.Completed {
			stats.CompletedUsers++
		} else if u.progress.CurrentQuestionIndex > 0 || len(u.answers) > 0 || u.token != "" {
			stats.ActiveUsers++
		}
		stats.TotalPhotos += len(u.photos)
	}
	if stats.TotalUsers > 0 {
		stats.CompletionRate = float64(stats.CompletedUsers) / float64(stats.TotalUsers)
	}
	return stats, nil
}

func (m *MemoryStore) ExportUser(_ context.Context, userID int64) (*store.Export, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("no such user %d", userID)
	}
	p := u.progress
	p.HasAnswers = len(u.answers) > 0
	answers := make([]store.AnswerRecord, len(u.answers))
	copy(answers, u.answers)
	photos := make([]store.PhotoRecord, len(u.photos))
	copy(photos, u.photos)
	return &store.Export{
		UserID:     userID,
		Username:   u.profile.Username,
		FirstName:  u.profile.FirstName,
		LastName:   u.profile.LastName,
		Progress:   p,
		Answers:    answers,
		Photos:     photos,
		ExportedAt: time.Now().UTC(),
	}, nil
}

func (m *MemoryStore) Close() error { return nil }
