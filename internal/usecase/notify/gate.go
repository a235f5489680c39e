package notify

import "opportunity-radar/internal/domain"

// Decision: решение гейта об отправке уведомления.
type Decision struct {
	Notify bool
	Reason string
}

// Gate пропускает только новые или изменённые записи с достаточной оценкой.
type Gate struct {
	minScore int
}

// NewGate создаёт гейт с порогом релевантности.
func NewGate(minScore int) Gate {
	return Gate{minScore: minScore}
}

// Decide решает, отправлять ли уведомление.
func (g Gate) Decide(cls domain.Classification, score int, _ []domain.Field) Decision {
	switch cls {
	case domain.ClassificationNew, domain.ClassificationUpdated:
	default:
		return Decision{Reason: "unchanged"}
	}
	if score < g.minScore {
		return Decision{Reason: "below_threshold"}
	}
	return Decision{Notify: true, Reason: "notify"}
}

// BuildPayload отделяет изменённые поля от неизменных.
func BuildPayload(rec domain.Record, cls domain.Classification, changed []domain.Field) domain.Payload {
	changed = domain.SortFields(changed)
	set := make(map[domain.Field]struct{}, len(changed))
	for _, f := range changed {
		set[f] = struct{}{}
	}
	var unchanged []domain.Field
	for _, f := range rec.Populated() {
		if _, ok := set[f]; !ok {
			unchanged = append(unchanged, f)
		}
	}
	return domain.Payload{
		Record:         rec.Clone(),
		Classification: cls,
		Changed:        changed,
		Unchanged:      unchanged,
	}
}
