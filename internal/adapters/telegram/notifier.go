package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
	"opportunity-radar/internal/usecase/notify"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет уведомления в чат Telegram в HTML-разметке.
type Notifier struct {
	bot     sender
	chatID  int64
	viewURL string
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт уведомитель поверх готового клиента бота.
func NewNotifier(bot sender, chatID int64, viewURL string) *Notifier {
	return &Notifier{bot: bot, chatID: chatID, viewURL: viewURL}
}

// Dial авторизует бота по токену.
func Dial(token string, chatID int64, viewURL string) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("не заданы токен бота или чат")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("авторизация бота: %w", err)
	}
	return NewNotifier(bot, chatID, viewURL), nil
}

// Send реализует domain.Notifier; длинные сообщения уходят частями.
func (n *Notifier) Send(ctx context.Context, payload domain.Payload) error {
	parts := SplitMessage(notify.FormatTelegram(payload, n.viewURL))
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		start := time.Now()
		_, err := n.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(n.chatID, 10), start, err)
		if err != nil {
			return fmt.Errorf("отправка в telegram: %w", err)
		}
	}
	return nil
}
