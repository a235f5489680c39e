package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS opportunities (
    thread_id        TEXT PRIMARY KEY,
    fields           TEXT    NOT NULL DEFAULT '{}',
    relevance_score  INTEGER NOT NULL DEFAULT 0,
    changed_fields   TEXT    NOT NULL DEFAULT '[]',
    first_message_id TEXT    NOT NULL DEFAULT '',
    last_message_id  TEXT    NOT NULL DEFAULT '',
    sender           TEXT    NOT NULL DEFAULT '',
    subject          TEXT    NOT NULL DEFAULT '',
    created_at       TEXT    NOT NULL,
    last_updated_at  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS opportunities_last_updated_idx ON opportunities (last_updated_at DESC);
CREATE TABLE IF NOT EXISTS seen_messages (
    message_id TEXT PRIMARY KEY,
    outcome    TEXT NOT NULL DEFAULT '',
    seen_at    TEXT NOT NULL
);`

// SQLite: файловое хранилище записей и увиденных писем для одиночного запуска.
type SQLite struct {
	db *sql.DB
}

var (
	_ domain.RecordStore = (*SQLite)(nil)
	_ domain.SeenStore   = (*SQLite)(nil)
)

// OpenSQLite открывает или создаёт базу по пути и применяет схему.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("каталог базы: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("открытие sqlite: %w", err)
	}
	// один писатель, иначе SQLITE_BUSY
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("инициализация sqlite: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// Close закрывает базу.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const sqliteSelect = `
SELECT thread_id, fields, relevance_score, changed_fields, first_message_id, last_message_id,
       sender, subject, created_at, last_updated_at
FROM opportunities`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (domain.Record, error) {
	var (
		rec              domain.Record
		fields, changed  string
		created, updated string
	)
	if err := row.Scan(&rec.ThreadID, &fields, &rec.RelevanceScore, &changed, &rec.FirstMessageID,
		&rec.LastMessageID, &rec.Sender, &rec.Subject, &created, &updated); err != nil {
		return domain.Record{}, err
	}
	decoded, err := decodeFields([]byte(fields))
	if err != nil {
		return domain.Record{}, err
	}
	rec.Fields = decoded

	var names []string
	if err := json.Unmarshal([]byte(changed), &names); err != nil {
		return domain.Record{}, fmt.Errorf("разбор изменённых полей: %w", err)
	}
	rec.ChangedFields = parseFieldNames(names)

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return domain.Record{}, fmt.Errorf("created_at: %w", err)
	}
	if rec.LastUpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return domain.Record{}, fmt.Errorf("last_updated_at: %w", err)
	}
	return rec, nil
}

// Get реализует domain.RecordStore.
func (s *SQLite) Get(ctx context.Context, threadID string) (*domain.Record, error) {
	start := time.Now()
	rec, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, sqliteSelect+` WHERE thread_id = ?`, threadID))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveNetworkRequest("sqlite", "opportunity_get", "opportunities", start, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("sqlite", "opportunity_get", "opportunities", start, err)
	if err != nil {
		return nil, fmt.Errorf("чтение записи %s: %w", threadID, err)
	}
	return &rec, nil
}

// Put сохраняет запись целиком.
func (s *SQLite) Put(ctx context.Context, rec domain.Record, changed []domain.Field) error {
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}
	names, err := json.Marshal(fieldNames(changed))
	if err != nil {
		return fmt.Errorf("кодирование изменённых полей: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO opportunities (thread_id, fields, relevance_score, changed_fields, first_message_id,
                           last_message_id, sender, subject, created_at, last_updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (thread_id) DO UPDATE SET
    fields = excluded.fields,
    relevance_score = excluded.relevance_score,
    changed_fields = excluded.changed_fields,
    last_message_id = excluded.last_message_id,
    sender = excluded.sender,
    subject = excluded.subject,
    last_updated_at = excluded.last_updated_at
`, rec.ThreadID, string(fields), rec.RelevanceScore, string(names), rec.FirstMessageID,
		rec.LastMessageID, rec.Sender, rec.Subject, formatTime(rec.CreatedAt), formatTime(rec.LastUpdatedAt))
	metrics.ObserveNetworkRequest("sqlite", "opportunity_put", "opportunities", start, err)
	if err != nil {
		return fmt.Errorf("сохранение записи %s: %w", rec.ThreadID, err)
	}
	return nil
}

// List возвращает последние обновлённые записи.
func (s *SQLite) List(ctx context.Context, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` ORDER BY last_updated_at DESC, thread_id LIMIT ?`, limit)
	metrics.ObserveNetworkRequest("sqlite", "opportunity_list", "opportunities", start, err)
	if err != nil {
		return nil, fmt.Errorf("список записей: %w", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("список записей: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Contains реализует domain.SeenStore.
func (s *SQLite) Contains(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM seen_messages WHERE message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("проверка письма %s: %w", messageID, err)
	}
	return n > 0, nil
}

// MarkSeen добавляет письмо в множество; повторная отметка ничего не меняет.
func (s *SQLite) MarkSeen(ctx context.Context, messageID, outcome string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO seen_messages (message_id, outcome, seen_at) VALUES (?, ?, ?)`,
		messageID, outcome, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("отметка письма %s: %w", messageID, err)
	}
	return nil
}

// formatTime пишет время в UTC с фиксированной шириной, чтобы строки сортировались.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
