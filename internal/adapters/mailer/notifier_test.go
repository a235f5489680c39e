package mailer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	gomail "gopkg.in/mail.v2"

	"opportunity-radar/internal/domain"
)

type recordingTransport struct {
	sent []*gomail.Message
	err  error
}

func (r *recordingTransport) DialAndSend(m ...*gomail.Message) error {
	r.sent = append(r.sent, m...)
	return r.err
}

func payload() domain.Payload {
	return domain.Payload{
		Record: domain.Record{
			RelevanceScore: 7,
			Fields: map[domain.Field]string{
				domain.FieldRole:         "Research Intern",
				domain.FieldOrganization: "Acme",
				domain.FieldDeadline:     "2026-06-15",
			},
		},
		Classification: domain.ClassificationUpdated,
		Changed:        []domain.Field{domain.FieldDeadline},
	}
}

func TestNotifierComposes(t *testing.T) {
	tr := &recordingTransport{}
	n := &Notifier{cfg: Config{Host: "smtp.example", From: "radar@example.com", To: []string{"me@example.com"}}, transport: tr}

	if err := n.Send(context.Background(), payload()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("ожидали одно письмо")
	}
	m := tr.sent[0]
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Opportunity updated: Research Intern at Acme" {
		t.Fatalf("неверная тема: %v", got)
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("сериализация: %v", err)
	}
	raw := buf.String()
	if !strings.Contains(raw, "text/plain") || !strings.Contains(raw, "text/html") {
		t.Fatalf("ожидали текст и html-альтернативу")
	}
}

func TestNotifierErrors(t *testing.T) {
	tr := &recordingTransport{err: errors.New("535 auth failed")}
	n := &Notifier{cfg: Config{Host: "smtp.example"}, transport: tr}
	if err := n.Send(context.Background(), payload()); err == nil {
		t.Fatalf("ожидали ошибку smtp")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.err = nil
	tr.sent = nil
	if err := n.Send(ctx, payload()); !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
	if len(tr.sent) != 0 {
		t.Fatalf("после отмены письмо не отправляется")
	}

	if _, err := New(Config{}); err == nil {
		t.Fatalf("пустая конфигурация недопустима")
	}
}
