package domain

import "time"

// Attachment хранит имя файла и извлечённый из него текст.
type Attachment struct {
	Filename string
	Text     string
}

// AttachmentRef ссылается на вложение, которое ещё не скачано.
type AttachmentRef struct {
	ID       string
	Filename string
	MimeType string
	Size     int
}

// Message описывает входящее письмо-кандидат.
type Message struct {
	ID             string
	ThreadID       string
	Sender         string
	SenderDomain   string
	RecipientCount int
	Subject        string
	BodyText       string
	Attachments    []Attachment
	AttachmentRefs []AttachmentRef
	ReceivedAt     time.Time
}

// AttachmentText склеивает текст всех вложений.
func (m Message) AttachmentText() string {
	var total string
	for _, att := range m.Attachments {
		if att.Text == "" {
			continue
		}
		if total != "" {
			total += "\n"
		}
		total += att.Text
	}
	return total
}

// Classification описывает новизну результата сверки.
type Classification string

const (
	// ClassificationNew: записи по треду ещё не было.
	ClassificationNew Classification = "NEW"
	// ClassificationUpdated: хотя бы одно поле изменилось.
	ClassificationUpdated Classification = "UPDATED"
	// ClassificationUnchanged: запись была, изменений нет.
	ClassificationUnchanged Classification = "UNCHANGED"
)

// Record: каноническая запись о возможности, одна на тред.
type Record struct {
	ThreadID       string
	Fields         map[Field]string
	RelevanceScore int
	LastUpdatedAt  time.Time

	FirstMessageID string
	LastMessageID  string
	Sender         string
	Subject        string
	ChangedFields  []Field
	CreatedAt      time.Time
}

// Value возвращает значение поля и признак его наличия.
func (r Record) Value(f Field) (string, bool) {
	v, ok := r.Fields[f]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Populated возвращает заполненные поля в каноническом порядке.
func (r Record) Populated() []Field {
	out := make([]Field, 0, len(r.Fields))
	for _, f := range AllFields {
		if _, ok := r.Value(f); ok {
			out = append(out, f)
		}
	}
	return out
}

// Clone делает независимую копию записи.
func (r Record) Clone() Record {
	cp := r
	cp.Fields = make(map[Field]string, len(r.Fields))
	for k, v := range r.Fields {
		cp.Fields[k] = v
	}
	cp.ChangedFields = append([]Field(nil), r.ChangedFields...)
	return cp
}

// Overlay накладывает заполненные поля draft поверх r, не стирая известные значения.
func (r Record) Overlay(draft Record) Record {
	out := r.Clone()
	if out.Fields == nil {
		out.Fields = make(map[Field]string)
	}
	for _, f := range AllFields {
		if v, ok := draft.Value(f); ok {
			out.Fields[f] = v
		}
	}
	return out
}

// Draft: свежая, ещё не сверенная запись от адаптера извлечения.
type Draft struct {
	Record
	MessageID string
}

// Reconciliation: результат сверки черновика с состоянием треда.
type Reconciliation struct {
	Merged         Record
	Changed        []Field
	Classification Classification
}

// HasChanged сообщает, входит ли поле в набор изменённых.
func (r Reconciliation) HasChanged(f Field) bool {
	for _, c := range r.Changed {
		if c == f {
			return true
		}
	}
	return false
}
