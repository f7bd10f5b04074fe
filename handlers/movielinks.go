package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"cinelink/models"
	"cinelink/services/resolver"
)

// resolverService is the slice of the resolver the link endpoints need.
type resolverService interface {
	Links(tmdbID, imdbID string) ([]models.ResolvedLink, error)
	Resolve(ctx context.Context, tmdbID, imdbID string) ([]models.ResolvedLink, error)
	ForceResolve(ctx context.Context, tmdbID, imdbID string) ([]models.ResolvedLink, error)
}

var _ resolverService = (*resolver.Service)(nil)

// linksRequest is the shared body of the link resolution endpoints. "tmdb"
// is accepted as an alias of "tmdb_id" for older clients.
type linksRequest struct {
	TMDBID    string `json:"tmdb_id"`
	TMDBAlias string `json:"tmdb"`
	IMDBID    string `json:"imdb_id"`
}

func (r linksRequest) tmdb() string {
	if r.TMDBID != "" {
		return r.TMDBID
	}
	return r.TMDBAlias
}

// MovieLinksHandler serves the link lookup and resolution endpoints.
type MovieLinksHandler struct {
	resolver resolverService
}

func NewMovieLinksHandler(resolverSvc resolverService) *MovieLinksHandler {
	return &MovieLinksHandler{resolver: resolverSvc}
}

// GetMovieLinks handles POST /api/movie-links: stored links only, no
// upstream contact.
func (h *MovieLinksHandler) GetMovieLinks(w http.ResponseWriter, r *http.Request) {
	var req linksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	links, err := h.resolver.Links(req.tmdb(), req.IMDBID)
	if err != nil {
		h.writeResolverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// GetMovieLinksWithFallback handles POST /api/movie-links/with-fallback:
// stored links first, upstream resolution when the library has nothing.
func (h *MovieLinksHandler) GetMovieLinksWithFallback(w http.ResponseWriter, r *http.Request) {
	var req linksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	links, err := h.resolver.Resolve(r.Context(), req.tmdb(), req.IMDBID)
	if err != nil {
		h.writeResolverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// ForceParse handles POST /api/movie-links/force-parse: resolve upstream
// unconditionally, bypassing stored links and cached results.
func (h *MovieLinksHandler) ForceParse(w http.ResponseWriter, r *http.Request) {
	var req linksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	links, err := h.resolver.ForceResolve(r.Context(), req.tmdb(), req.IMDBID)
	if err != nil {
		h.writeResolverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *MovieLinksHandler) writeResolverError(w http.ResponseWriter, err error) {
	var upstream *resolver.UpstreamError
	switch {
	case errors.Is(err, resolver.ErrMissingIdentifier):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, resolver.ErrMovieNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":          upstream.Error(),
			"attempted_urls": upstream.Attempted,
		})
	default:
		log.Printf("[movielinks] unexpected error: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
