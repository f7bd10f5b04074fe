package library

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cinelink/internal/database"
	"cinelink/models"
)

var (
	ErrMissingIdentifier  = errors.New("at least one of tmdb_id or imdb_id is required")
	ErrMissingTitle       = errors.New("title is required")
	ErrMissingManifestURL = errors.New("m3u8_url is required")
	ErrMovieNotFound      = errors.New("movie not found with the provided IDs")
	ErrTranscriptNotFound = errors.New("transcript not found")
)

// maxSearchLimit caps the page size of title search.
const maxSearchLimit = 100

// Service is the bookkeeping layer over movies, links and transcript
// references: everything the management and read endpoints need that does
// not involve contacting upstream.
type Service struct {
	movies      *database.MovieRepository
	transcripts *database.TranscriptRepository
}

func NewService(movies *database.MovieRepository, transcripts *database.TranscriptRepository) *Service {
	return &Service{movies: movies, transcripts: transcripts}
}

// UpsertMovieRequest is the create/update payload for a movie with optional
// links and transcript references.
type UpsertMovieRequest struct {
	Title       string             `json:"title"`
	TMDBID      string             `json:"tmdb_id"`
	IMDBID      string             `json:"imdb_id"`
	Transcripts []TranscriptRef    `json:"transcripts"`
	Links       []LinkUpsertDetail `json:"links"`
}

type TranscriptRef struct {
	ID string `json:"id"`
}

type LinkUpsertDetail struct {
	ManifestURL  string `json:"m3u8_url"`
	TranscriptID string `json:"transcript_id"`
	IsActive     *bool  `json:"is_active"`
}

// UpsertMovieResult echoes the stored movie identifiers.
type UpsertMovieResult struct {
	MovieID int64  `json:"movie_id"`
	TMDBID  string `json:"tmdb_id,omitempty"`
	IMDBID  string `json:"imdb_id,omitempty"`
}

// UpsertMovie creates the movie or updates its title, then registers the
// supplied transcripts and links.
func (s *Service) UpsertMovie(req UpsertMovieRequest) (*UpsertMovieResult, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.TMDBID = strings.TrimSpace(req.TMDBID)
	req.IMDBID = strings.TrimSpace(req.IMDBID)
	if req.Title == "" {
		return nil, ErrMissingTitle
	}
	if req.TMDBID == "" && req.IMDBID == "" {
		return nil, ErrMissingIdentifier
	}

	movie, err := s.movies.FindMovie(req.TMDBID, req.IMDBID)
	if err != nil {
		return nil, err
	}
	if movie != nil {
		if err := s.movies.UpdateTitle(movie.ID, req.Title); err != nil {
			return nil, err
		}
	} else {
		movie = &database.Movie{Title: req.Title}
		if req.TMDBID != "" {
			movie.TMDBID = &req.TMDBID
		}
		if req.IMDBID != "" {
			movie.IMDBID = &req.IMDBID
		}
		if err := s.movies.CreateMovie(movie); err != nil {
			return nil, err
		}
	}

	for _, ref := range req.Transcripts {
		if id := strings.TrimSpace(ref.ID); id != "" {
			if _, err := s.transcripts.Ensure(id); err != nil {
				return nil, err
			}
		}
	}

	for _, detail := range req.Links {
		manifestURL := strings.TrimSpace(detail.ManifestURL)
		if manifestURL == "" {
			continue
		}
		var transcriptID *string
		if id := strings.TrimSpace(detail.TranscriptID); id != "" {
			transcript, err := s.transcripts.Get(id)
			if err != nil {
				return nil, err
			}
			if transcript != nil {
				transcriptID = &transcript.ID
			}
		}
		isActive := true
		if detail.IsActive != nil {
			isActive = *detail.IsActive
		}
		link := &database.MovieLink{
			MovieID:      movie.ID,
			ManifestURL:  manifestURL,
			IsActive:     isActive,
			TranscriptID: transcriptID,
		}
		if _, err := s.movies.UpsertLink(link); err != nil {
			return nil, err
		}
	}

	result := &UpsertMovieResult{MovieID: movie.ID}
	if movie.TMDBID != nil {
		result.TMDBID = *movie.TMDBID
	}
	if movie.IMDBID != nil {
		result.IMDBID = *movie.IMDBID
	}
	return result, nil
}

// ManageLinkRequest adds or updates a single master playlist link on an
// existing movie.
type ManageLinkRequest struct {
	TMDBID       string `json:"tmdb_id"`
	IMDBID       string `json:"imdb_id"`
	ManifestURL  string `json:"m3u8_url"`
	TranscriptID string `json:"transcript_id"`
	IsActive     *bool  `json:"is_active"`
}

// ManageLinkResult reports the upserted link.
type ManageLinkResult struct {
	Created      bool
	LinkID       int64
	MovieID      int64
	TranscriptID string
}

// ManageLink upserts one link; the movie must already exist and a referenced
// transcript must be known.
func (s *Service) ManageLink(req ManageLinkRequest) (*ManageLinkResult, error) {
	req.ManifestURL = strings.TrimSpace(req.ManifestURL)
	req.TMDBID = strings.TrimSpace(req.TMDBID)
	req.IMDBID = strings.TrimSpace(req.IMDBID)
	if req.ManifestURL == "" {
		return nil, ErrMissingManifestURL
	}
	if req.TMDBID == "" && req.IMDBID == "" {
		return nil, ErrMissingIdentifier
	}

	movie, err := s.movies.FindMovie(req.TMDBID, req.IMDBID)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, ErrMovieNotFound
	}

	var transcriptID *string
	if id := strings.TrimSpace(req.TranscriptID); id != "" {
		transcript, err := s.transcripts.Get(id)
		if err != nil {
			return nil, err
		}
		if transcript == nil {
			return nil, fmt.Errorf("%w: %s", ErrTranscriptNotFound, id)
		}
		transcriptID = &transcript.ID
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	link := &database.MovieLink{
		MovieID:      movie.ID,
		ManifestURL:  req.ManifestURL,
		IsActive:     isActive,
		TranscriptID: transcriptID,
	}
	created, err := s.movies.UpsertLink(link)
	if err != nil {
		return nil, err
	}

	result := &ManageLinkResult{Created: created, LinkID: link.ID, MovieID: movie.ID}
	if link.TranscriptID != nil {
		result.TranscriptID = *link.TranscriptID
	}
	log.Printf("[library] link %d %s for movie %d", link.ID, upsertAction(created), movie.ID)
	return result, nil
}

// Detail returns the movie and all of its active links as the canonical
// read projection.
func (s *Service) Detail(tmdbID, imdbID string) (*models.MovieLinksBundle, error) {
	tmdbID = strings.TrimSpace(tmdbID)
	imdbID = strings.TrimSpace(imdbID)
	if tmdbID == "" && imdbID == "" {
		return nil, ErrMissingIdentifier
	}

	movie, err := s.movies.FindMovie(tmdbID, imdbID)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, ErrMovieNotFound
	}
	links, err := s.movies.GetActiveLinks(movie.ID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, ErrMovieNotFound
	}

	bundle := &models.MovieLinksBundle{
		Movie: movieDetail(movie),
		Links: make([]models.MovieLinkDetail, 0, len(links)),
	}
	for _, link := range links {
		bundle.Links = append(bundle.Links, linkDetail(link))
	}
	return bundle, nil
}

// Search finds active movies by title substring with pagination.
func (s *Service) Search(query string, page, limit int) ([]models.MovieSummary, models.Pagination, error) {
	query = strings.TrimSpace(query)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	summaries, total, err := s.movies.SearchMovies(query, (page-1)*limit, limit)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}
	pagination := models.Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
	return summaries, pagination, nil
}

// Stats returns the aggregate library counts.
func (s *Service) Stats() (models.LibraryStats, error) {
	return s.movies.Stats()
}

// EnsureTranscript registers a transcript id reference.
func (s *Service) EnsureTranscript(id string) (bool, error) {
	return s.transcripts.Ensure(id)
}

// GetTranscript returns a transcript reference, ErrTranscriptNotFound when
// unknown.
func (s *Service) GetTranscript(id string) (*database.Transcript, error) {
	transcript, err := s.transcripts.Get(id)
	if err != nil {
		return nil, err
	}
	if transcript == nil {
		return nil, ErrTranscriptNotFound
	}
	return transcript, nil
}

func movieDetail(movie *database.Movie) models.MovieDetail {
	detail := models.MovieDetail{
		ID:        movie.ID,
		Title:     movie.Title,
		CreatedAt: movie.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: movie.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if movie.TMDBID != nil {
		detail.TMDBID = *movie.TMDBID
	}
	if movie.IMDBID != nil {
		detail.IMDBID = *movie.IMDBID
	}
	return detail
}

func linkDetail(link database.MovieLink) models.MovieLinkDetail {
	detail := models.MovieLinkDetail{
		ID:          link.ID,
		ManifestURL: link.ManifestURL,
		SourceKind:  models.SourceKind(link.SourceKind),
		IsActive:    link.IsActive,
		CreatedAt:   link.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   link.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if link.TranscriptID != nil {
		detail.TranscriptID = *link.TranscriptID
	}
	return detail
}

func upsertAction(created bool) string {
	if created {
		return "created"
	}
	return "updated"
}
