package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"carebot/internal/engine"
	"carebot/internal/providers"
	"carebot/internal/structures"
)

// TelegramClient talks to the Bot API over HTTP long polling.
type TelegramClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  providers.Logger
}

func NewTelegramClient(conf *structures.Config, logger providers.Logger) TransportInterface {
	return &TelegramClient{
		baseURL: conf.Telegram.APIBaseURL,
		token:   conf.Telegram.Token,
		// Poll requests block server-side; the client timeout must outlive
		// the poll timeout and is set per-call instead.
		http:   &http.Client{},
		logger: logger,
	}
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *TelegramClient) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "bot"+c.token, method)
	if err != nil {
		return fmt.Errorf("build %s url: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	if !api.Ok {
		return fmt.Errorf("%s failed: %s", method, api.Description)
	}
	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("parse %s result: %w", method, err)
		}
	}
	return nil
}

func (c *TelegramClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string, buttons []engine.Button) (int64, error) {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if len(buttons) > 0 {
		row := make([]map[string]string, 0, len(buttons))
		for _, b := range buttons {
			row = append(row, map[string]string{"text": b.Text, "callback_data": b.Data})
		}
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": [][]map[string]string{row},
		}
	}

	var sent Message
	if err := c.call(ctx, "sendMessage", payload, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *TelegramClient) SendPhoto(ctx context.Context, chatID int64, fileID string) (int64, error) {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"photo":   fileID,
	}
	var sent Message
	if err := c.call(ctx, "sendPhoto", payload, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *TelegramClient) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]interface{}{"callback_query_id": callbackID}, nil)
}
