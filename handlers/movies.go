package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"cinelink/models"
	"cinelink/services/library"
)

// libraryService is the slice of the library the management and read
// endpoints need.
type libraryService interface {
	UpsertMovie(req library.UpsertMovieRequest) (*library.UpsertMovieResult, error)
	ManageLink(req library.ManageLinkRequest) (*library.ManageLinkResult, error)
	Detail(tmdbID, imdbID string) (*models.MovieLinksBundle, error)
	Search(query string, page, limit int) ([]models.MovieSummary, models.Pagination, error)
	Stats() (models.LibraryStats, error)
}

var _ libraryService = (*library.Service)(nil)

// MoviesHandler serves the movie management and read endpoints.
type MoviesHandler struct {
	library libraryService
}

func NewMoviesHandler(librarySvc libraryService) *MoviesHandler {
	return &MoviesHandler{library: librarySvc}
}

// UpsertMovie handles POST /api/movies.
func (h *MoviesHandler) UpsertMovie(w http.ResponseWriter, r *http.Request) {
	var req library.UpsertMovieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.library.UpsertMovie(req)
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ManageLink handles POST /api/movie-links/manage.
func (h *MoviesHandler) ManageLink(w http.ResponseWriter, r *http.Request) {
	var req library.ManageLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.library.ManageLink(req)
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}

	status := http.StatusOK
	message := "link updated"
	if result.Created {
		status = http.StatusCreated
		message = "link created"
	}
	writeJSON(w, status, map[string]any{
		"message":       message,
		"link_id":       result.LinkID,
		"movie_id":      result.MovieID,
		"transcript_id": result.TranscriptID,
	})
}

// Detail handles GET /api/movie-links/detail.
func (h *MoviesHandler) Detail(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.library.Detail(r.URL.Query().Get("tmdb_id"), r.URL.Query().Get("imdb_id"))
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// Search handles GET /api/movies/search.
func (h *MoviesHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	movies, pagination, err := h.library.Search(query, page, limit)
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"movies":     movies,
		"pagination": pagination,
	})
}

// Stats handles GET /api/movies/stats.
func (h *MoviesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.library.Stats()
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *MoviesHandler) writeLibraryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrMissingIdentifier),
		errors.Is(err, library.ErrMissingTitle),
		errors.Is(err, library.ErrMissingManifestURL):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, library.ErrMovieNotFound),
		errors.Is(err, library.ErrTranscriptNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	default:
		log.Printf("[movies] unexpected error: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
