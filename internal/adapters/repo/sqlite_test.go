package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"opportunity-radar/internal/domain"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "radar.db"))
	if err != nil {
		t.Fatalf("открытие: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	got, err := store.Get(ctx, "t1")
	if err != nil || got != nil {
		t.Fatalf("ожидали отсутствие записи, получили %v %v", got, err)
	}

	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := domain.Record{
		ThreadID: "t1",
		Fields: map[domain.Field]string{
			domain.FieldRole:         "Data Intern",
			domain.FieldOrganization: "Acme",
			domain.FieldDeadline:     "2026-06-01",
			domain.FieldLocation:     "  ",
		},
		RelevanceScore: 7,
		FirstMessageID: "m1",
		LastMessageID:  "m1",
		Sender:         "hr@acme.com",
		Subject:        "Internship",
		CreatedAt:      created,
		LastUpdatedAt:  created,
	}
	changed := []domain.Field{domain.FieldRole, domain.FieldOrganization, domain.FieldDeadline}
	if err := store.Put(ctx, rec, changed); err != nil {
		t.Fatalf("сохранение: %v", err)
	}

	got, err = store.Get(ctx, "t1")
	if err != nil || got == nil {
		t.Fatalf("чтение: %v", err)
	}
	if got.Fields[domain.FieldOrganization] != "Acme" || got.RelevanceScore != 7 {
		t.Fatalf("неверная запись: %+v", got)
	}
	if _, ok := got.Fields[domain.FieldLocation]; ok {
		t.Fatalf("пустые поля не сохраняются")
	}
	if len(got.ChangedFields) != 3 || got.ChangedFields[2] != domain.FieldDeadline {
		t.Fatalf("неверные изменённые поля: %v", got.ChangedFields)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("неверное время: %v", got.CreatedAt)
	}

	updated := rec.Clone()
	updated.Fields[domain.FieldDeadline] = "2026-06-15"
	updated.LastMessageID = "m2"
	updated.LastUpdatedAt = created.Add(time.Hour)
	updated.FirstMessageID = "ignored"
	if err := store.Put(ctx, updated, []domain.Field{domain.FieldDeadline}); err != nil {
		t.Fatalf("обновление: %v", err)
	}
	got, _ = store.Get(ctx, "t1")
	if got.Fields[domain.FieldDeadline] != "2026-06-15" || got.LastMessageID != "m2" {
		t.Fatalf("обновление не применилось: %+v", got)
	}
	if got.FirstMessageID != "m1" {
		t.Fatalf("первое письмо треда не меняется: %q", got.FirstMessageID)
	}
	if len(got.ChangedFields) != 1 {
		t.Fatalf("набор изменений перезаписывается: %v", got.ChangedFields)
	}
}

func TestSQLiteListOrder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := domain.Record{
			ThreadID:      id,
			Fields:        map[domain.Field]string{domain.FieldRole: id},
			CreatedAt:     base,
			LastUpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Put(ctx, rec, nil); err != nil {
			t.Fatalf("сохранение: %v", err)
		}
	}
	list, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("список: %v", err)
	}
	if len(list) != 2 || list[0].ThreadID != "c" || list[1].ThreadID != "b" {
		t.Fatalf("ожидали c, b; получили %+v", list)
	}
}

func TestSQLiteSeen(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	seen, err := store.Contains(ctx, "m1")
	if err != nil || seen {
		t.Fatalf("пустое множество: %v %v", seen, err)
	}
	for i := 0; i < 2; i++ {
		if err := store.MarkSeen(ctx, "m1", "new"); err != nil {
			t.Fatalf("повторная отметка не ошибка: %v", err)
		}
	}
	seen, err = store.Contains(ctx, "m1")
	if err != nil || !seen {
		t.Fatalf("ожидали отмеченное письмо: %v %v", seen, err)
	}
}
