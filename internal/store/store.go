// Package store persists questionnaire progress. One contract, two SQL
// backends (SQLite, Postgres); the engine is the only writer of progress
// fields.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carebot/internal/providers"
	"carebot/internal/structures"
)

var ErrUnknownDriver = errors.New("unknown database driver")

// Skipped is the sentinel stored in place of a real answer when the user
// explicitly skips a question. Distinct from "no answer yet" (no row).
const Skipped = "None"

type AnswerKind string

const (
	KindText  AnswerKind = "text"
	KindPhoto AnswerKind = "photo"
)

type UserProfile struct {
	Username  string
	FirstName string
	LastName  string
}

// UserProgress is the durable per-user state. HasAnswers is derived in the
// same read so the engine can distinguish NOT_STARTED from AWAITING_ANSWER(0)
// without a second flag to keep in sync.
type UserProgress struct {
	UserID                int64
	CurrentQuestionIndex  int
	WaitingForFollowup    bool
	FollowupQuestionIndex int
	Completed             bool
	CompletedAt           *time.Time
	HasAnswers            bool
}

type AnswerRecord struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	QuestionIndex int        `json:"question_index"`
	QuestionText  string     `json:"question_text"`
	Value         string     `json:"answer_value"`
	Kind          AnswerKind `json:"answer_kind"`
	MediaRef      string     `json:"media_ref,omitempty"`
	FollowupValue *string    `json:"followup_value,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type PhotoRecord struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	QuestionIndex int       `json:"question_index"`
	FileID        string    `json:"file_id"`
	FileUniqueID  string    `json:"file_unique_id,omitempty"`
	FileSize      int64     `json:"file_size,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

type PhotoUpload struct {
	FileID       string
	FileUniqueID string
	FileSize     int64
	Caption      string
}

// Statistics are derived entirely from answers/users rows; there are no
// separate counters to keep in sync.
type Statistics struct {
	TotalUsers       int     `json:"total_users"`
	CompletedUsers   int     `json:"completed_users"`
	ActiveUsers      int     `json:"active_users"`
	CompletionRate   float64 `json:"completion_rate"`
	TotalPhotos      int     `json:"total_photos"`
	SkippedPhotos    int     `json:"skipped_photos"`
	SkippedText      int     `json:"skipped_text"`
	SkippedFollowups int     `json:"skipped_followups"`
	AverageAge       float64 `json:"average_age"`
	SmokersCount     int     `json:"smokers_count"`
}

type Export struct {
	UserID     int64          `json:"user_id"`
	Profile    UserProfile    `json:"-"`
	Username   string         `json:"username,omitempty"`
	FirstName  string         `json:"first_name,omitempty"`
	LastName   string         `json:"last_name,omitempty"`
	Progress   UserProgress   `json:"progress"`
	Answers    []AnswerRecord `json:"answers"`
	Photos     []PhotoRecord  `json:"photos"`
	ExportedAt time.Time      `json:"exported_at"`
}

// ProgressStore operations are atomic per user: an answer insert and its
// index bump commit together or not at all.
type ProgressStore interface {
	UpsertUser(ctx context.Context, userID int64, profile UserProfile) error

	// GetProgress creates the default progress row on first contact.
	GetProgress(ctx context.Context, userID int64) (UserProgress, error)

	// RecordAnswer appends an answer and advances the index to
	// questionIndex+1 unless the user is waiting for a follow-up.
	RecordAnswer(ctx context.Context, userID int64, questionIndex int, questionText, value string, kind AnswerKind) error

	// RecordPhoto stores photo metadata plus the photo answer row, with the
	// same advance rule as RecordAnswer.
	RecordPhoto(ctx context.Context, userID int64, questionIndex int, questionText string, photo PhotoUpload) error

	EnterFollowupWait(ctx context.Context, userID int64, questionIndex int) error

	// RecordFollowup attaches the follow-up value to the latest answer for
	// the index, clears the wait flag and advances to questionIndex+1.
	RecordFollowup(ctx context.Context, userID int64, questionIndex int, value string) error

	MarkCompleted(ctx context.Context, userID int64) error

	// ResetProgress deletes every answer, photo and pending prompt of the
	// user and zeroes the progress row.
	ResetProgress(ctx context.Context, userID int64) error

	UserAnswers(ctx context.Context, userID int64) ([]AnswerRecord, error)
	UserPhotos(ctx context.Context, userID int64) ([]PhotoRecord, error)

	// At most one pending prompt token lives per user; Set overwrites.
	SetPendingPrompt(ctx context.Context, userID int64, token string) error
	BindPromptMessage(ctx context.Context, userID int64, token, messageRef string) error
	PendingPromptToken(ctx context.Context, userID int64) (string, error)
	ClearPendingPrompt(ctx context.Context, userID int64) error

	Statistics(ctx context.Context) (Statistics, error)
	ExportUser(ctx context.Context, userID int64) (*Export, error)

	Close() error
}

func NewProgressStore(conf *structures.Config, logger providers.Logger) (ProgressStore, error) {
	switch conf.Database.Driver {
	case "sqlite":
		return NewSQLiteStore(conf.Database.DSN, logger)
	case "postgres":
		return NewPostgresStore(conf.Database.DSN, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, conf.Database.Driver)
	}
}
