package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"carebot/internal/engine"
	"carebot/internal/providers"
	"carebot/internal/store"
	"carebot/internal/structures"
)

const pollRetryDelay = 3 * time.Second

// startTriggers are plain-text phrases treated like /start.
var startTriggers = map[string]struct{}{
	"začít": {}, "zacit": {}, "start": {}, "pokračovat": {}, "pokracovat": {},
}

type BotInterface interface {
	Run(ctx context.Context)
}

// Bot long-polls updates and dispatches each to the engine. Updates are
// handled concurrently; the engine serializes per user.
type Bot struct {
	transport TransportInterface
	engine    engine.EngineInterface
	store     store.ProgressStore
	conf      *structures.Config
	logger    providers.Logger
	offset    atomic.Int64
	wg        sync.WaitGroup
}

func NewBot(
	transport TransportInterface,
	eng engine.EngineInterface,
	progressStore store.ProgressStore,
	conf *structures.Config,
	logger providers.Logger,
) BotInterface {
	return &Bot{
		transport: transport,
		engine:    eng,
		store:     progressStore,
		conf:      conf,
		logger:    logger,
	}
}

// Run blocks until the context is cancelled, then waits for in-flight
// updates to finish.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Infof(providers.TypeBot, "Bot poller started")
	pollTimeout := b.conf.Telegram.PollTimeout * time.Second

	for {
		select {
		case <-ctx.Done():
			b.wg.Wait()
			b.logger.Infof(providers.TypeBot, "Bot poller stopped")
			return
		default:
		}

		updates, err := b.transport.GetUpdates(ctx, b.offset.Load(), pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.Errorf(providers.TypeBot, "getUpdates failed: %s", err)
			select {
			case <-ctx.Done():
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= b.offset.Load() {
				b.offset.Store(update.UpdateID + 1)
			}
			b.wg.Add(1)
			go func(u Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, u)
			}(update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update Update) {
	switch {
	case update.Callback != nil:
		b.handleCallback(ctx, update.Callback)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	profile := store.UserProfile{
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}

	var (
		replies []engine.Reply
		err     error
	)

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		replies, err = b.handleCommand(ctx, userID, profile, msg.Text)

	case len(msg.Photos) > 0:
		photo := largestPhoto(msg.Photos)
		replies, err = b.engine.HandlePhoto(ctx, userID, store.PhotoUpload{
			FileID:       photo.FileID,
			FileUniqueID: photo.FileUniqueID,
			FileSize:     photo.FileSize,
			Caption:      msg.Caption,
		})

	default:
		if _, ok := startTriggers[strings.ToLower(strings.TrimSpace(msg.Text))]; ok {
			replies, err = b.engine.Start(ctx, userID, profile)
		} else {
			replies, err = b.engine.HandleText(ctx, userID, msg.Text)
		}
	}

	if err != nil {
		b.logger.Errorf(providers.TypeBot, "Handling message of user %d failed: %s", userID, err)
		replies = []engine.Reply{{Text: "⚠️ Něco se pokazilo, zkuste to prosím znovu."}}
	}
	b.send(ctx, userID, chatID, replies)
}

func (b *Bot) handleCommand(ctx context.Context, userID int64, profile store.UserProfile, text string) ([]engine.Reply, error) {
	command := strings.ToLower(strings.Fields(text)[0])
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start":
		return b.engine.Start(ctx, userID, profile)
	case "/restart":
		return b.engine.Restart(ctx, userID)
	case "/preskocit", "/skip":
		return b.engine.Skip(ctx, userID)
	case "/vysledky":
		return b.engine.Results(ctx, userID)
	case "/statistiky":
		stats, err := b.store.Statistics(ctx)
		if err != nil {
			return nil, err
		}
		return []engine.Reply{{Text: FormatStatistics(stats)}}, nil
	case "/help", "/napoveda":
		return []engine.Reply{{Text: helpText}}, nil
	default:
		return []engine.Reply{{Text: "Neznámý příkaz. Nápovědu zobrazí /help."}}, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *Callback) {
	userID := callback.From.ID
	chatID := userID
	if callback.Message != nil {
		chatID = callback.Message.Chat.ID
	}

	action, token, ok := strings.Cut(callback.Data, ":")
	if !ok {
		b.logger.Warnf(providers.TypeBot, "Malformed callback data %q from user %d", callback.Data, userID)
		return
	}

	replies, err := b.engine.HandleButton(ctx, userID, action, token)
	if err != nil {
		b.logger.Errorf(providers.TypeBot, "Handling callback of user %d failed: %s", userID, err)
		replies = []engine.Reply{{Text: "⚠️ Něco se pokazilo, zkuste to prosím znovu."}}
	}

	if err := b.transport.AnswerCallback(ctx, callback.ID); err != nil {
		b.logger.Warnf(providers.TypeBot, "answerCallbackQuery failed: %s", err)
	}
	b.send(ctx, userID, chatID, replies)
}

// send delivers replies in order and binds prompt messages to their tokens.
// Overlong texts are split at the Bot API limit; buttons and token binding
// go with the last chunk.
func (b *Bot) send(ctx context.Context, userID, chatID int64, replies []engine.Reply) {
	for _, reply := range replies {
		if reply.Photo != "" {
			if _, err := b.transport.SendPhoto(ctx, chatID, reply.Photo); err != nil {
				b.logger.Errorf(providers.TypeBot, "sendPhoto to chat %d failed: %s", chatID, err)
			}
			continue
		}

		chunks := splitMessage(reply.Text, messageLimit)
		var messageID int64
		var err error
		for i, chunk := range chunks {
			var buttons []engine.Button
			if i == len(chunks)-1 {
				buttons = reply.Buttons
			}
			messageID, err = b.transport.SendMessage(ctx, chatID, chunk, buttons)
			if err != nil {
				b.logger.Errorf(providers.TypeBot, "sendMessage to chat %d failed: %s", chatID, err)
				break
			}
		}
		if err != nil || reply.PromptToken == "" {
			continue
		}
		if err := b.engine.BindPrompt(ctx, userID, reply.PromptToken, strconv.FormatInt(messageID, 10)); err != nil {
			b.logger.Warnf(providers.TypeBot, "Binding prompt message for user %d failed: %s", userID, err)
		}
	}
}
