package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"opportunity-radar/internal/domain"
)

type stubRecords struct {
	recs      []domain.Record
	err       error
	lastLimit int
}

func (s *stubRecords) Get(_ context.Context, threadID string) (*domain.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, r := range s.recs {
		if r.ThreadID == threadID {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *stubRecords) Put(context.Context, domain.Record, []domain.Field) error { return nil }

func (s *stubRecords) List(_ context.Context, limit int) ([]domain.Record, error) {
	s.lastLimit = limit
	return s.recs, s.err
}

func newTestServer(records *stubRecords) *Server {
	return NewServer(zerolog.Nop(), records)
}

func sampleRecord() domain.Record {
	return domain.Record{
		ThreadID:       "t1",
		RelevanceScore: 8,
		Fields: map[domain.Field]string{
			domain.FieldRole:         "Intern",
			domain.FieldOrganization: "Acme",
			domain.FieldDeadline:     "2026-06-15",
		},
		ChangedFields: []domain.Field{domain.FieldDeadline},
	}
}

func TestGetOpportunityHighlightsChanges(t *testing.T) {
	srv := newTestServer(&stubRecords{recs: []domain.Record{sampleRecord()}})
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities/t1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var view opportunityView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("разбор: %v", err)
	}
	if len(view.Fields) != 3 {
		t.Fatalf("ожидали 3 поля, получили %+v", view.Fields)
	}
	for _, f := range view.Fields {
		if f.Changed != (f.Field == domain.FieldDeadline) {
			t.Fatalf("подсвечен должен быть только срок: %+v", f)
		}
	}
}

func TestGetOpportunityNotFound(t *testing.T) {
	srv := newTestServer(&stubRecords{})
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидали 404, получили %d", rec.Code)
	}
}

func TestListOpportunities(t *testing.T) {
	records := &stubRecords{recs: []domain.Record{sampleRecord()}}
	srv := newTestServer(records)

	cases := []struct {
		query     string
		code      int
		wantLimit int
	}{
		{"", http.StatusOK, defaultListLimit},
		{"?limit=10", http.StatusOK, 10},
		{"?limit=100000", http.StatusOK, maxListLimit},
		{"?limit=abc", http.StatusBadRequest, 0},
		{"?limit=0", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			records.lastLimit = 0
			rec := httptest.NewRecorder()
			srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities/"+tc.query, nil))
			if rec.Code != tc.code {
				t.Fatalf("ожидали %d, получили %d", tc.code, rec.Code)
			}
			if records.lastLimit != tc.wantLimit {
				t.Fatalf("ожидали limit %d, получили %d", tc.wantLimit, records.lastLimit)
			}
		})
	}
}

func TestStoreUnavailable(t *testing.T) {
	srv := newTestServer(&stubRecords{err: errors.New("db down")})
	for _, path := range []string{"/api/v1/opportunities/", "/api/v1/opportunities/t1"} {
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: ожидали 503, получили %d", path, rec.Code)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := NewServer(zerolog.Nop(), nil)
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: ожидали 200, получили %d", path, rec.Code)
		}
	}
}
