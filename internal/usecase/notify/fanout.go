package notify

import (
	"context"
	"errors"
	"fmt"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
)

// Sink: именованный канал доставки.
type Sink struct {
	Name     string
	Notifier domain.Notifier
}

// Fanout рассылает уведомление во все каналы; сбой одного не мешает остальным.
type Fanout struct {
	sinks []Sink
}

var _ domain.Notifier = (*Fanout)(nil)

// NewFanout создаёт рассылку по каналам.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Len возвращает число каналов.
func (f *Fanout) Len() int { return len(f.sinks) }

// Send отправляет уведомление во все каналы и собирает ошибки.
func (f *Fanout) Send(ctx context.Context, payload domain.Payload) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.Notifier.Send(ctx, payload)
		metrics.IncNotification(s.Name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
