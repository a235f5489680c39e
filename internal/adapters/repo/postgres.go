package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
)

// Postgres хранит записи о возможностях и множество увиденных писем в pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.RecordStore = (*Postgres)(nil)
	_ domain.SeenStore   = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const selectRecord = `
SELECT thread_id, fields, relevance_score, changed_fields, first_message_id, last_message_id,
       sender, subject, created_at, last_updated_at
FROM opportunities`

func scanRecord(row pgx.Row) (domain.Record, error) {
	var (
		rec     domain.Record
		fields  []byte
		changed []string
	)
	if err := row.Scan(&rec.ThreadID, &fields, &rec.RelevanceScore, &changed, &rec.FirstMessageID,
		&rec.LastMessageID, &rec.Sender, &rec.Subject, &rec.CreatedAt, &rec.LastUpdatedAt); err != nil {
		return domain.Record{}, err
	}
	decoded, err := decodeFields(fields)
	if err != nil {
		return domain.Record{}, err
	}
	rec.Fields = decoded
	rec.ChangedFields = parseFieldNames(changed)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.LastUpdatedAt = rec.LastUpdatedAt.UTC()
	return rec, nil
}

// Get реализует domain.RecordStore.
func (p *Postgres) Get(ctx context.Context, threadID string) (*domain.Record, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rec, err := scanRecord(p.pool.QueryRow(ctx, selectRecord+` WHERE thread_id = $1`, threadID))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "opportunity_get", "opportunities", start, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("postgres", "opportunity_get", "opportunities", start, err)
	if err != nil {
		return nil, fmt.Errorf("чтение записи %s: %w", threadID, err)
	}
	return &rec, nil
}

// Put сохраняет запись целиком вместе с набором изменённых полей.
func (p *Postgres) Put(ctx context.Context, rec domain.Record, changed []domain.Field) error {
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO opportunities (thread_id, fields, relevance_score, changed_fields, first_message_id,
                           last_message_id, sender, subject, created_at, last_updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (thread_id) DO UPDATE SET
    fields = EXCLUDED.fields,
    relevance_score = EXCLUDED.relevance_score,
    changed_fields = EXCLUDED.changed_fields,
    last_message_id = EXCLUDED.last_message_id,
    sender = EXCLUDED.sender,
    subject = EXCLUDED.subject,
    last_updated_at = EXCLUDED.last_updated_at
`, rec.ThreadID, fields, rec.RelevanceScore, fieldNames(changed), rec.FirstMessageID,
		rec.LastMessageID, rec.Sender, rec.Subject, rec.CreatedAt, rec.LastUpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "opportunity_put", "opportunities", start, err)
	if err != nil {
		return fmt.Errorf("сохранение записи %s: %w", rec.ThreadID, err)
	}
	return nil
}

// List возвращает последние обновлённые записи.
func (p *Postgres) List(ctx context.Context, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, selectRecord+` ORDER BY last_updated_at DESC, thread_id LIMIT $1`, limit)
	metrics.ObserveNetworkRequest("postgres", "opportunity_list", "opportunities", start, err)
	if err != nil {
		return nil, fmt.Errorf("список записей: %w", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("список записей: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Contains реализует domain.SeenStore.
func (p *Postgres) Contains(ctx context.Context, messageID string) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM seen_messages WHERE message_id = $1)`, messageID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "seen_contains", "seen_messages", start, err)
	if err != nil {
		return false, fmt.Errorf("проверка письма %s: %w", messageID, err)
	}
	return exists, nil
}

// MarkSeen добавляет письмо в множество; повторная отметка ничего не меняет.
func (p *Postgres) MarkSeen(ctx context.Context, messageID, outcome string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO seen_messages (message_id, outcome, seen_at)
VALUES ($1, $2, now())
ON CONFLICT (message_id) DO NOTHING
`, messageID, outcome)
	metrics.ObserveNetworkRequest("postgres", "seen_mark", "seen_messages", start, err)
	if err != nil {
		return fmt.Errorf("отметка письма %s: %w", messageID, err)
	}
	return nil
}
