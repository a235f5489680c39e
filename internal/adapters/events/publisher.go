package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
)

const defaultExchange = "opportunities"

// Event: сообщение об изменении возможности для внешних подписчиков.
type Event struct {
	ID             string            `json:"id"`
	Classification string            `json:"classification"`
	ThreadID       string            `json:"thread_id"`
	MessageID      string            `json:"message_id"`
	Score          int               `json:"relevance_score"`
	Fields         map[string]string `json:"fields"`
	Changed        []string          `json:"changed_fields"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// NewEvent собирает событие из уведомления.
func NewEvent(p domain.Payload) Event {
	fields := make(map[string]string, len(p.Record.Fields))
	for f, v := range p.Record.Fields {
		if v != "" {
			fields[string(f)] = v
		}
	}
	changed := make([]string, 0, len(p.Changed))
	for _, f := range p.Changed {
		changed = append(changed, string(f))
	}
	occurred := p.Record.LastUpdatedAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return Event{
		ID:             uuid.NewString(),
		Classification: string(p.Classification),
		ThreadID:       p.Record.ThreadID,
		MessageID:      p.Record.LastMessageID,
		Score:          p.Record.RelevanceScore,
		Fields:         fields,
		Changed:        changed,
		OccurredAt:     occurred,
	}
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher отправляет события в fanout-обменник RabbitMQ.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

var _ domain.Notifier = (*Publisher)(nil)

// Dial подключается к брокеру и объявляет обменник.
func Dial(amqpURL, exchange string) (*Publisher, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url пуст")
	}
	if exchange == "" {
		exchange = defaultExchange
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("канал amqp: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("объявление обменника %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func newPublisher(ch channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Send реализует domain.Notifier.
func (p *Publisher) Send(ctx context.Context, payload domain.Payload) error {
	ev := NewEvent(payload)
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("кодирование события: %w", err)
	}
	start := time.Now()
	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Type:         "opportunity." + ev.Classification,
		Body:         body,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", p.exchange, start, err)
	if err != nil {
		return fmt.Errorf("публикация события: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
