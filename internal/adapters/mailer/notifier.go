package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
	"opportunity-radar/internal/usecase/notify"
)

// Config описывает SMTP-доставку.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
	ViewURL  string
}

type transport interface {
	DialAndSend(m ...*gomail.Message) error
}

// Notifier отправляет уведомления письмом: текст и HTML-альтернатива.
type Notifier struct {
	cfg       Config
	transport transport
}

var _ domain.Notifier = (*Notifier)(nil)

// New создаёт уведомитель с SMTP-диалером.
func New(cfg Config) (*Notifier, error) {
	if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("не заданы smtp host, отправитель или получатели")
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	dialer.Timeout = 10 * time.Second
	return &Notifier{cfg: cfg, transport: dialer}, nil
}

// Send реализует domain.Notifier. SMTP-диалер не принимает контекст, поэтому проверяем его заранее.
func (n *Notifier) Send(ctx context.Context, payload domain.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := n.compose(payload)

	start := time.Now()
	err := n.transport.DialAndSend(m)
	metrics.ObserveNetworkRequest("smtp", "send", n.cfg.Host, start, err)
	if err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}
	return nil
}

func (n *Notifier) compose(payload domain.Payload) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.To...)
	m.SetHeader("Subject", notify.Subject(payload))
	m.SetBody("text/plain", notify.FormatPlain(payload, n.cfg.ViewURL))
	m.AddAlternative("text/html", htmlBody(notify.FormatTelegram(payload, n.cfg.ViewURL)))
	return m
}

// htmlBody переносит телеграм-разметку в письмо: переводы строк становятся <br>.
func htmlBody(tg string) string {
	return "<html><body>" + strings.ReplaceAll(tg, "\n", "<br>\n") + "</body></html>"
}
