package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tasktrack/internal/logs"
	"tasktrack/internal/models"
)

// ChatLookup — профиль владельца задачи (нужен telegram_chat_id).
type ChatLookup interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink шлёт напоминание в чат, привязанный к профилю.
// Профили без чата пропускаются молча.
type TelegramSink struct {
	api   sender
	chats ChatLookup
}

func NewTelegramSink(token string, chats ChatLookup) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	logs.Logger.Infof("telegram notifications via @%s", api.Self.UserName)
	return &TelegramSink{api: api, chats: chats}, nil
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) Notify(ctx context.Context, r Reminder) error {
	p, err := t.chats.Get(ctx, r.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if p.TelegramChatID == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(*p.TelegramChatID, formatReminder(r))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatReminder(r Reminder) string {
	var sb strings.Builder
	sb.WriteString("⏳ <b>Скоро срок</b>\n")
	sb.WriteString(html.EscapeString(strings.TrimSpace(r.Title)))
	sb.WriteString(fmt.Sprintf("\n⏰ %s", r.DueAt.Format("2006-01-02 15:04")))
	return sb.String()
}
