package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opportunity-radar/internal/domain"
)

// Rules: параметры дешёвых стадий фильтра.
type Rules struct {
	TrustedDomains        []string
	Keywords              []string
	PersonalMinRecipients int
}

// Stage: одна стадия цепочки. Check возвращает false, если письмо отклонено.
type Stage struct {
	Name   string
	Reason domain.RejectReason
	Check  func(ctx context.Context, msg domain.Message) (bool, error)
}

// Chain прогоняет письмо через стадии по порядку и останавливается на первом отказе.
type Chain struct {
	stages []Stage
}

// NewChain собирает стандартную цепочку: processed → personal → domain → keyword → ai.
func NewChain(rules Rules, seen domain.SeenStore, classifier domain.Classifier) *Chain {
	domains := normalizeDomains(rules.TrustedDomains)
	keywords := normalizeKeywords(rules.Keywords)
	minRecipients := rules.PersonalMinRecipients

	return &Chain{stages: []Stage{
		{
			Name:   "processed",
			Reason: domain.ReasonAlreadyProcessed,
			Check: func(ctx context.Context, msg domain.Message) (bool, error) {
				ok, err := seen.Contains(ctx, msg.ID)
				if err != nil {
					return false, &SeenStoreError{Err: err}
				}
				return !ok, nil
			},
		},
		{
			Name:   "personal",
			Reason: domain.ReasonTooPersonal,
			Check: func(_ context.Context, msg domain.Message) (bool, error) {
				return msg.RecipientCount >= minRecipients, nil
			},
		},
		{
			Name:   "domain",
			Reason: domain.ReasonUntrustedDomain,
			Check: func(_ context.Context, msg domain.Message) (bool, error) {
				return DomainTrusted(msg.SenderDomain, domains), nil
			},
		},
		{
			Name:   "keyword",
			Reason: domain.ReasonNoKeywordMatch,
			Check: func(_ context.Context, msg domain.Message) (bool, error) {
				return ContainsKeyword(msg.Subject+"\n"+msg.BodyText, keywords), nil
			},
		},
		{
			Name:   "ai",
			Reason: domain.ReasonAIClassifierRejected,
			Check: func(ctx context.Context, msg domain.Message) (bool, error) {
				ok, err := classifier.Classify(ctx, msg.Subject, msg.BodyText)
				if err != nil {
					return false, &ClassifierError{Err: err}
				}
				return ok, nil
			},
		},
	}}
}

// NewChainFromStages нужен для тестов и нестандартных наборов стадий.
func NewChainFromStages(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Stages возвращает имена стадий в порядке выполнения.
func (c *Chain) Stages() []string {
	names := make([]string, 0, len(c.stages))
	for _, s := range c.stages {
		names = append(names, s.Name)
	}
	return names
}

// Evaluate возвращает вердикт по письму.
// Ошибка возвращается только если не удалось прочитать хранилище обработанных писем;
// сбой классификатора превращается в отказ classifier_unavailable.
func (c *Chain) Evaluate(ctx context.Context, msg domain.Message) (domain.Verdict, error) {
	for i := 0; i < len(c.stages); i++ {
		stage := c.stages[i]
		ok, err := stage.Check(ctx, msg)
		if err != nil {
			var clsErr *ClassifierError
			if errors.As(err, &clsErr) {
				return domain.Rejected(domain.ReasonClassifierUnavailable), nil
			}
			return domain.Verdict{}, fmt.Errorf("стадия %s: %w", stage.Name, err)
		}
		if !ok {
			return domain.Rejected(stage.Reason), nil
		}
	}
	return domain.Passed(), nil
}

// ClassifierError оборачивает сбой AI-классификатора.
type ClassifierError struct{ Err error }

func (e *ClassifierError) Error() string { return "классификатор недоступен: " + e.Err.Error() }
func (e *ClassifierError) Unwrap() error { return e.Err }

// SeenStoreError оборачивает сбой хранилища обработанных писем.
type SeenStoreError struct{ Err error }

func (e *SeenStoreError) Error() string { return "хранилище обработанных недоступно: " + e.Err.Error() }
func (e *SeenStoreError) Unwrap() error { return e.Err }

// DomainTrusted проверяет домен на точное совпадение или поддомен разрешённого.
func DomainTrusted(senderDomain string, trusted []string) bool {
	d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(senderDomain)), ".")
	if d == "" {
		return false
	}
	for _, t := range trusted {
		if d == t || strings.HasSuffix(d, "."+t) {
			return true
		}
	}
	return false
}

// ContainsKeyword ищет любое ключевое слово без учёта регистра.
func ContainsKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "@")
		d = strings.Trim(d, ".")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
