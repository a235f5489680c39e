package reconcile

import (
	"strings"

	"opportunity-radar/internal/domain"
)

// Reconcile сливает черновик с предыдущим состоянием треда.
// Функция чистая: запись результата выполняет вызывающий код.
func Reconcile(threadID string, draft domain.Draft, prior *domain.Record) domain.Reconciliation {
	if prior == nil {
		merged := cleaned(draft.Record)
		merged.ThreadID = threadID
		merged.FirstMessageID = draft.MessageID
		merged.LastMessageID = draft.MessageID
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = draft.LastUpdatedAt
		}
		changed := merged.Populated()
		merged.ChangedFields = changed
		return domain.Reconciliation{
			Merged:         merged,
			Changed:        changed,
			Classification: domain.ClassificationNew,
		}
	}

	merged := prior.Clone()
	if merged.Fields == nil {
		merged.Fields = make(map[domain.Field]string, len(domain.AllFields))
	}
	merged.ThreadID = threadID

	var changed []domain.Field
	for _, f := range domain.AllFields {
		next, ok := value(draft.Record, f)
		if !ok {
			continue
		}
		if cur, had := value(*prior, f); had && cur == next {
			continue
		}
		merged.Fields[f] = next
		changed = append(changed, f)
	}

	merged.RelevanceScore = draft.RelevanceScore
	merged.LastUpdatedAt = draft.LastUpdatedAt
	if draft.MessageID != "" {
		merged.LastMessageID = draft.MessageID
	}
	if merged.FirstMessageID == "" {
		merged.FirstMessageID = draft.MessageID
	}
	if merged.Sender == "" {
		merged.Sender = draft.Sender
	}
	if merged.Subject == "" {
		merged.Subject = draft.Subject
	}

	// без изменений подсветка прошлого обновления остаётся
	cls := domain.ClassificationUnchanged
	if len(changed) > 0 {
		cls = domain.ClassificationUpdated
		merged.ChangedFields = changed
	}
	return domain.Reconciliation{Merged: merged, Changed: changed, Classification: cls}
}

// value возвращает поле с обрезанными пробелами; пустое значение считается отсутствующим.
func value(rec domain.Record, f domain.Field) (string, bool) {
	v, ok := rec.Value(f)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func cleaned(rec domain.Record) domain.Record {
	out := rec.Clone()
	out.Fields = make(map[domain.Field]string, len(rec.Fields))
	for _, f := range domain.AllFields {
		if v, ok := value(rec, f); ok {
			out.Fields[f] = v
		}
	}
	return out
}
