package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"cinelink/internal/database"
	"cinelink/services/library"
)

type fakeTranscriptService struct {
	created bool
	ensErr  error
	get     *database.Transcript
	getErr  error

	lastEnsured string
}

func (f *fakeTranscriptService) EnsureTranscript(id string) (bool, error) {
	f.lastEnsured = id
	return f.created, f.ensErr
}

func (f *fakeTranscriptService) GetTranscript(id string) (*database.Transcript, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.get, nil
}

func TestRegisterTranscript(t *testing.T) {
	fake := &fakeTranscriptService{created: true}
	handler := NewTranscriptsHandler(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/transcripts", strings.NewReader(`{"id":" tr-1 "}`))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if fake.lastEnsured != "tr-1" {
		t.Errorf("expected trimmed id, got %q", fake.lastEnsured)
	}

	// Re-registering is idempotent and reports 200.
	fake.created = false
	req = httptest.NewRequest(http.MethodPost, "/api/transcripts", strings.NewReader(`{"id":"tr-1"}`))
	rec = httptest.NewRecorder()
	handler.Register(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing id, got %d", rec.Code)
	}
}

func TestRegisterTranscriptMissingID(t *testing.T) {
	handler := NewTranscriptsHandler(&fakeTranscriptService{})

	req := httptest.NewRequest(http.MethodPost, "/api/transcripts", strings.NewReader(`{"id":"  "}`))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetTranscriptHandler(t *testing.T) {
	fake := &fakeTranscriptService{get: &database.Transcript{ID: "tr-1", CreatedAt: time.Now()}}
	handler := NewTranscriptsHandler(fake)

	req := httptest.NewRequest(http.MethodGet, "/api/transcripts/tr-1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "tr-1"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["id"] != "tr-1" || body["created_at"] == "" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestGetTranscriptHandlerNotFound(t *testing.T) {
	handler := NewTranscriptsHandler(&fakeTranscriptService{getErr: library.ErrTranscriptNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/transcripts/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
