package domain

import "context"

// MailSource выгружает письма-кандидаты за последнее окно времени.
type MailSource interface {
	Fetch(ctx context.Context) ([]Message, error)
	// LoadAttachments скачивает и разбирает вложения письма, прошедшего фильтры.
	LoadAttachments(ctx context.Context, msg Message) ([]Attachment, error)
}

// SeenStore хранит идентификаторы уже обработанных писем.
type SeenStore interface {
	Contains(ctx context.Context, messageID string) (bool, error)
	MarkSeen(ctx context.Context, messageID string, outcome string) error
}

// RecordStore хранит по одной записи на тред.
type RecordStore interface {
	// Get возвращает nil без ошибки, если записи по треду нет.
	Get(ctx context.Context, threadID string) (*Record, error)
	Put(ctx context.Context, rec Record, changed []Field) error
	List(ctx context.Context, limit int) ([]Record, error)
}

// Classifier решает, является ли письмо карьерной возможностью.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (bool, error)
}

// ExtractRequest: входные данные для AI-извлечения.
type ExtractRequest struct {
	Subject        string
	Sender         string
	BodyText       string
	AttachmentText string
	// FollowUp включает режим «только новые сведения» для писем в существующем треде.
	FollowUp bool
}

// Extractor возвращает частичное отображение поле → значение.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (map[string]any, error)
}

// Scorer оценивает соответствие возможности резюме по шкале 1..10.
type Scorer interface {
	Score(ctx context.Context, fields map[Field]string, resume string) (int, error)
}

// Notifier доставляет уведомление получателю.
type Notifier interface {
	Send(ctx context.Context, payload Payload) error
}

// Payload: данные уведомления: полная запись, классификация и изменённые поля.
type Payload struct {
	Record         Record
	Classification Classification
	Changed        []Field
	Unchanged      []Field
}
