// Package bot connects the questionnaire engine to the Telegram Bot API.
// The transport is an interface so the poller and handlers are testable
// without the network.
package bot

import (
	"context"
	"time"

	"carebot/internal/engine"
)

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	From      User        `json:"from"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photos    []PhotoSize `json:"photo"`
}

type Callback struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

type Update struct {
	UpdateID int64     `json:"update_id"`
	Message  *Message  `json:"message"`
	Callback *Callback `json:"callback_query"`
}

type TransportInterface interface {
	// GetUpdates long-polls for updates after the given offset.
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	// SendMessage returns the id of the sent message.
	SendMessage(ctx context.Context, chatID int64, text string, buttons []engine.Button) (int64, error)
	// SendPhoto re-sends a photo the user previously uploaded, by file id.
	SendPhoto(ctx context.Context, chatID int64, fileID string) (int64, error)
	AnswerCallback(ctx context.Context, callbackID string) error
}
