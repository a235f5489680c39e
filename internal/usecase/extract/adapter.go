package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"opportunity-radar/internal/domain"
)

// ErrExtractionFailed: ответ модели непригоден: не разобран или нет обязательных полей.
var ErrExtractionFailed = errors.New("извлечение не удалось")

// ErrUnavailable: сбой вызова модели извлечения или оценки.
var ErrUnavailable = errors.New("сервис извлечения недоступен")

const (
	defaultAttachmentLimit = 4000
	minScore               = 1
	maxScore               = 10
)

var placeholders = map[string]struct{}{
	"":              {},
	"n/a":           {},
	"na":            {},
	"none":          {},
	"null":          {},
	"nil":           {},
	"-":             {},
	"unknown":       {},
	"not mentioned": {},
	"not specified": {},
	"not available": {},
	"not provided":  {},
}

var deadlineLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	"2006-01-02T15:04:05Z07:00",
}

// Adapter превращает прошедшее фильтры письмо в черновик записи.
type Adapter struct {
	extractor       domain.Extractor
	scorer          domain.Scorer
	resume          string
	attachmentLimit int
	now             func() time.Time
}

// Option настраивает адаптер.
type Option func(*Adapter)

// WithAttachmentLimit ограничивает длину текста вложений в рунах.
func WithAttachmentLimit(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.attachmentLimit = n
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter создаёт адаптер извлечения.
func NewAdapter(extractor domain.Extractor, scorer domain.Scorer, resume string, opts ...Option) *Adapter {
	a := &Adapter{
		extractor:       extractor,
		scorer:          scorer,
		resume:          resume,
		attachmentLimit: defaultAttachmentLimit,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Extract вызывает модель, нормализует поля и считает оценку релевантности.
// prior: текущая запись треда или nil.
func (a *Adapter) Extract(ctx context.Context, msg domain.Message, prior *domain.Record) (domain.Draft, error) {
	raw, err := a.extractor.Extract(ctx, domain.ExtractRequest{
		Subject:        msg.Subject,
		Sender:         msg.Sender,
		BodyText:       msg.BodyText,
		AttachmentText: truncateRunes(msg.AttachmentText(), a.attachmentLimit),
		FollowUp:       prior != nil,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMalformedAIOutput) {
			return domain.Draft{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		return domain.Draft{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	fields := Normalize(raw)
	draft := domain.Draft{
		Record: domain.Record{
			ThreadID:      msg.ThreadID,
			Fields:        fields,
			LastUpdatedAt: a.now(),
			Sender:        msg.Sender,
			Subject:       msg.Subject,
		},
		MessageID: msg.ID,
	}

	prospective := draft.Record
	if prior != nil {
		prospective = prior.Overlay(draft.Record)
	}
	if missing := missingRequired(prospective); len(missing) > 0 {
		return domain.Draft{}, fmt.Errorf("%w: нет %v", ErrExtractionFailed, missing)
	}

	score, err := a.scorer.Score(ctx, prospective.Fields, a.resume)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("%w: оценка: %v", ErrUnavailable, err)
	}
	draft.RelevanceScore = ClampScore(score)
	return draft, nil
}

// Normalize приводит ответ модели к фиксированному набору полей.
// Неизвестные ключи и заглушки вроде "N/A" отбрасываются.
func Normalize(raw map[string]any) map[domain.Field]string {
	out := make(map[domain.Field]string, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		f, ok := domain.ParseField(key)
		if !ok {
			continue
		}
		v, ok := stringify(raw[key])
		if !ok {
			continue
		}
		if f == domain.FieldDeadline {
			v = NormalizeDate(v)
		}
		out[f] = v
	}
	return out
}

// NormalizeDate приводит распознанную дату к YYYY-MM-DD, иначе возвращает строку как есть.
func NormalizeDate(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return trimmed
}

// ClampScore ограничивает оценку диапазоном 1..10.
func ClampScore(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

func stringify(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	case []any:
		var lines []string
		for _, item := range val {
			if line, ok := stringify(item); ok {
				lines = append(lines, "• "+strings.TrimPrefix(line, "• "))
			}
		}
		s = strings.Join(lines, "\n")
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	if _, isPlaceholder := placeholders[strings.ToLower(s)]; isPlaceholder {
		return "", false
	}
	return s, true
}

func missingRequired(rec domain.Record) []domain.Field {
	var missing []domain.Field
	for _, f := range domain.RequiredFields {
		if _, ok := rec.Value(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
