package sinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/cashflowly/mpesa-listener/internal/config"
	"github.com/cashflowly/mpesa-listener/internal/logging"
	"github.com/cashflowly/mpesa-listener/internal/runtime"
)

type telegramSendMessageFunc func(context.Context, *bot.SendMessageParams) (*models.Message, error)

var _ runtime.NotificationHandler = (*Telegram)(nil)

// Telegram forwards notifications to one chat through a bot.
type Telegram struct {
	token  string
	chatID int64
	title  string

	sendMessage telegramSendMessageFunc
}

// NewTelegram creates a Telegram sink. Connect must be called before use.
func NewTelegram(cfg config.TelegramSinkConfig) *Telegram {
	return &Telegram{
		token:  cfg.Token,
		chatID: cfg.ChatID,
		title:  cfg.Title,
	}
}

// Connect authenticates the bot token with Telegram.
func (t *Telegram) Connect(ctx context.Context) error {
	token := strings.TrimSpace(t.token)
	if token == "" {
		return errors.New("telegram token is required")
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("fetch telegram bot profile: %w", err)
	}
	logging.Logger().Info(fmt.Sprintf("Connected to Telegram Bot @%s", strings.TrimSpace(me.Username)), "chat_id", t.chatID)

	t.sendMessage = b.SendMessage
	return nil
}

// HandleNotification sends n to the configured chat as HTML, retrying as
// plain text when Telegram rejects the formatted message.
func (t *Telegram) HandleNotification(ctx context.Context, n runtime.Notification) error {
	send := t.sendMessage
	if send == nil {
		return errors.New("telegram bot is not connected")
	}

	if formatted, ok := formatNotification(t.title, n.Message); ok {
		_, err := send(ctx, &bot.SendMessageParams{
			ChatID:    t.chatID,
			Text:      formatted,
			ParseMode: models.ParseModeHTML,
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Logger().Warn("telegram html send failed, retrying as plain text", "chat_id", t.chatID, "err", err)
	}

	if _, err := send(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   plainNotification(t.title, n.Message),
	}); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
