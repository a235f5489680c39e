package domain

import "errors"

// RejectReason указывает стадию, на которой письмо было отклонено.
type RejectReason string

const (
	ReasonAlreadyProcessed      RejectReason = "already_processed"
	ReasonTooPersonal           RejectReason = "too_personal"
	ReasonUntrustedDomain       RejectReason = "untrusted_domain"
	ReasonNoKeywordMatch        RejectReason = "no_keyword_match"
	ReasonAIClassifierRejected  RejectReason = "ai_classifier_rejected"
	ReasonClassifierUnavailable RejectReason = "classifier_unavailable"
)

// Verdict: решение цепочки фильтров по одному письму.
type Verdict struct {
	Pass   bool
	Reason RejectReason
}

// Passed возвращает положительный вердикт.
func Passed() Verdict { return Verdict{Pass: true} }

// Rejected возвращает отказ с причиной.
func Rejected(reason RejectReason) Verdict { return Verdict{Reason: reason} }

// String нужен для логов и меток метрик.
func (v Verdict) String() string {
	if v.Pass {
		return "pass"
	}
	return string(v.Reason)
}

// Transient сообщает, что отказ временный и письмо нужно повторить в следующем запуске.
func (v Verdict) Transient() bool {
	return !v.Pass && v.Reason == ReasonClassifierUnavailable
}

// SeenPolicy определяет, какие отклонённые письма помечаются обработанными.
type SeenPolicy string

const (
	// SeenPolicyNone: отклонённые письма не помечаются, их проверяют заново каждый запуск.
	SeenPolicyNone SeenPolicy = "none"
	// SeenPolicyAIOnly: помечаются только отказы AI-классификатора.
	SeenPolicyAIOnly SeenPolicy = "ai_only"
	// SeenPolicyAll: помечаются все окончательные отказы.
	SeenPolicyAll SeenPolicy = "all"
)

// Valid сообщает, известна ли политика.
func (p SeenPolicy) Valid() bool {
	switch p {
	case SeenPolicyNone, SeenPolicyAIOnly, SeenPolicyAll:
		return true
	}
	return false
}

// ShouldMark решает, помечать ли письмо с данным вердиктом как обработанное.
func (p SeenPolicy) ShouldMark(v Verdict) bool {
	if v.Pass || v.Transient() || v.Reason == ReasonAlreadyProcessed {
		return false
	}
	switch p {
	case SeenPolicyAll:
		return true
	case SeenPolicyAIOnly:
		return v.Reason == ReasonAIClassifierRejected
	default:
		return false
	}
}

// ErrMalformedAIOutput: ответ модели не удалось разобрать.
var ErrMalformedAIOutput = errors.New("ответ модели не разобран")
