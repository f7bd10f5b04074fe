package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"cinelink/internal/database"
	"cinelink/services/library"
)

// transcriptService is the slice of the library the transcript endpoints need.
type transcriptService interface {
	EnsureTranscript(id string) (bool, error)
	GetTranscript(id string) (*database.Transcript, error)
}

var _ transcriptService = (*library.Service)(nil)

// TranscriptsHandler serves the transcript reference endpoints.
type TranscriptsHandler struct {
	transcripts transcriptService
}

func NewTranscriptsHandler(transcripts transcriptService) *TranscriptsHandler {
	return &TranscriptsHandler{transcripts: transcripts}
}

type registerTranscriptRequest struct {
	ID string `json:"id"`
}

// Register handles POST /api/transcripts.
func (h *TranscriptsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}

	created, err := h.transcripts.EnsureTranscript(req.ID)
	if err != nil {
		log.Printf("[transcripts] register failed: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	message := "transcript already registered"
	if created {
		status = http.StatusCreated
		message = "transcript registered"
	}
	writeJSON(w, status, map[string]string{"id": req.ID, "message": message})
}

// Get handles GET /api/transcripts/{id}.
func (h *TranscriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	transcript, err := h.transcripts.GetTranscript(id)
	if err != nil {
		if errors.Is(err, library.ErrTranscriptNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("[transcripts] lookup failed: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":         transcript.ID,
		"created_at": transcript.CreatedAt.UTC().Format(time.RFC3339),
	})
}
