package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"cinelink/internal/database"
	"cinelink/models"
	"cinelink/services/cache"
)

// PageFetcher abstracts the page resolution chain so orchestration tests can
// count (or forbid) upstream fetches.
type PageFetcher interface {
	Resolve(ctx context.Context, candidate CandidateURL) ParseResult
}

var _ PageFetcher = (*PageResolver)(nil)

// MovieStore is the durable storage collaborator the orchestrator needs.
type MovieStore interface {
	FindMovie(tmdbID, imdbID string) (*database.Movie, error)
	CreateMovie(m *database.Movie) error
	GetActiveLinks(movieID int64) ([]database.MovieLink, error)
	UpsertLink(link *database.MovieLink) (bool, error)
}

// TranscriptStore registers opaque transcript ids extracted from upstream
// pages so the external transcript service can be queried later.
type TranscriptStore interface {
	Ensure(id string) (bool, error)
}

var (
	_ MovieStore      = (*database.MovieRepository)(nil)
	_ TranscriptStore = (*database.TranscriptRepository)(nil)
)

// Service orchestrates link resolution: durable storage first, then the URL
// cache, then live page resolution, with write-through caching and
// best-effort persistence of successes.
type Service struct {
	movies      MovieStore
	transcripts TranscriptStore
	store       cache.Store
	pages       PageFetcher
	ttl         time.Duration
}

// NewService wires the orchestrator. A zero ttl falls back to the uniform
// cache default.
func NewService(movies MovieStore, transcripts TranscriptStore, store cache.Store, pages PageFetcher, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{
		movies:      movies,
		transcripts: transcripts,
		store:       store,
		pages:       pages,
		ttl:         ttl,
	}
}

// Links is the direct lookup path: persisted links only, no upstream contact.
// Returns ErrMovieNotFound when nothing is persisted for the given ids.
func (s *Service) Links(tmdbID, imdbID string) ([]models.ResolvedLink, error) {
	tmdbID = strings.TrimSpace(tmdbID)
	imdbID = strings.TrimSpace(imdbID)
	if tmdbID == "" && imdbID == "" {
		return nil, ErrMissingIdentifier
	}

	movie, links, err := s.persistedLinks(tmdbID, imdbID)
	if err != nil {
		return nil, err
	}
	if movie == nil || len(links) == 0 {
		return nil, ErrMovieNotFound
	}
	return resolvedFromLinks(movie, links), nil
}

// Resolve implements the fallback flow: persisted links win; otherwise
// candidate URLs are constructed and resolved (cache first, live fetch on
// miss), successes are cached, persisted best-effort, and projected into the
// response array.
func (s *Service) Resolve(ctx context.Context, tmdbID, imdbID string) ([]models.ResolvedLink, error) {
	return s.resolve(ctx, tmdbID, imdbID, false)
}

// ForceResolve skips the persisted-link short circuit and the cache read, so
// every candidate URL is fetched live. Results still write through the cache
// and persist as usual.
func (s *Service) ForceResolve(ctx context.Context, tmdbID, imdbID string) ([]models.ResolvedLink, error) {
	return s.resolve(ctx, tmdbID, imdbID, true)
}

func (s *Service) resolve(ctx context.Context, tmdbID, imdbID string, force bool) ([]models.ResolvedLink, error) {
	tmdbID = strings.TrimSpace(tmdbID)
	imdbID = strings.TrimSpace(imdbID)
	if tmdbID == "" && imdbID == "" {
		return nil, ErrMissingIdentifier
	}
	reqID := uuid.NewString()[:8]

	if !force {
		movie, links, err := s.persistedLinks(tmdbID, imdbID)
		if err != nil {
			return nil, err
		}
		if movie != nil && len(links) > 0 {
			return resolvedFromLinks(movie, links), nil
		}
	}

	log.Printf("[resolver] %s no persisted links for tmdb_id=%q imdb_id=%q, constructing candidate URLs", reqID, tmdbID, imdbID)
	candidates := ConstructCandidateURLs(tmdbID, imdbID)

	var (
		successes []ParseResult
		attempted []string
	)
	for _, candidate := range candidates {
		attempted = append(attempted, candidate.URL)
		key := cache.Key(candidate.URL)

		if !force {
			if raw, ok := s.store.Get(ctx, key); ok {
				var cached ParseResult
				if err := json.Unmarshal(raw, &cached); err == nil && cached.Successful() {
					log.Printf("[resolver] %s cache hit for %s", reqID, candidate.URL)
					cached.SourceURL = candidate.URL
					successes = append(successes, cached)
					continue
				}
			}
		}

		log.Printf("[resolver] %s resolving %s", reqID, candidate.URL)
		result := s.pages.Resolve(ctx, candidate)
		if !result.Successful() {
			if result.Error != "" {
				log.Printf("[resolver] %s failed to resolve %s: %s", reqID, candidate.URL, result.Error)
			} else {
				log.Printf("[resolver] %s no manifest extracted from %s", reqID, candidate.URL)
			}
			continue
		}

		result.SourceURL = candidate.URL
		// Write through immediately so concurrent requests benefit even
		// before persistence completes.
		if raw, err := json.Marshal(result); err == nil {
			s.store.Set(ctx, key, raw, s.ttl)
		}
		successes = append(successes, result)
	}

	if len(successes) == 0 {
		return nil, &UpstreamError{Attempted: attempted}
	}

	// Commit phase: persistence failure is logged and discarded; the
	// response still succeeds because resolution itself succeeded.
	s.persist(tmdbID, imdbID, successes)

	resolved := make([]models.ResolvedLink, 0, len(successes))
	for _, result := range successes {
		resolved = append(resolved, models.ResolvedLink{
			ID:           echoIdentifier(result.SourceKind, tmdbID, imdbID),
			ManifestURL:  result.ManifestURL,
			TranscriptID: result.OpaqueID,
		})
	}
	return resolved, nil
}

func (s *Service) persistedLinks(tmdbID, imdbID string) (*database.Movie, []database.MovieLink, error) {
	movie, err := s.movies.FindMovie(tmdbID, imdbID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup movie: %w", err)
	}
	if movie == nil {
		return nil, nil, nil
	}
	links, err := s.movies.GetActiveLinks(movie.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup links: %w", err)
	}
	return movie, links, nil
}

// persist saves successful parse results to durable storage, best-effort.
// sqlite can report BUSY under write contention, so each write is retried a
// few times before being given up on.
func (s *Service) persist(tmdbID, imdbID string, results []ParseResult) {
	movie, err := s.movies.FindMovie(tmdbID, imdbID)
	if err != nil {
		log.Printf("[resolver] persist skipped, movie lookup failed: %v", err)
		return
	}
	if movie == nil {
		movie = &database.Movie{Title: placeholderTitle(tmdbID, imdbID)}
		if tmdbID != "" {
			movie.TMDBID = &tmdbID
		}
		if imdbID != "" {
			movie.IMDBID = &imdbID
		}
		if err := s.movies.CreateMovie(movie); err != nil {
			log.Printf("[resolver] persist skipped, create movie failed: %v", err)
			return
		}
		log.Printf("[resolver] created movie %d for tmdb_id=%q imdb_id=%q", movie.ID, tmdbID, imdbID)
	}

	for _, result := range results {
		var transcriptID *string
		if result.OpaqueID != "" {
			if _, err := s.transcripts.Ensure(result.OpaqueID); err != nil {
				log.Printf("[resolver] transcript %q not persisted: %v", result.OpaqueID, err)
			} else {
				id := result.OpaqueID
				transcriptID = &id
			}
		}

		link := &database.MovieLink{
			MovieID:      movie.ID,
			ManifestURL:  result.ManifestURL,
			SourceKind:   string(result.SourceKind),
			IsActive:     true,
			TranscriptID: transcriptID,
		}
		err := retry.Do(
			func() error {
				_, err := s.movies.UpsertLink(link)
				return err
			},
			retry.Attempts(3),
			retry.Delay(50*time.Millisecond),
			retry.RetryIf(func(err error) bool {
				return strings.Contains(err.Error(), "busy") || strings.Contains(err.Error(), "locked")
			}),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			log.Printf("[resolver] link %s not persisted: %v", result.ManifestURL, err)
		}
	}
}

// echoIdentifier selects the response id by the source kind that produced a
// link: the tmdb id for tmdb-derived links, the imdb id for imdb-derived
// ones. When the kind is unrecorded or its id was not supplied, whichever
// identifier is present is echoed, preferring imdb.
func echoIdentifier(kind models.SourceKind, tmdbID, imdbID string) string {
	switch {
	case kind == models.SourceKindTMDB && tmdbID != "":
		return tmdbID
	case kind == models.SourceKindIMDB && imdbID != "":
		return imdbID
	case imdbID != "":
		return imdbID
	default:
		return tmdbID
	}
}

func resolvedFromLinks(movie *database.Movie, links []database.MovieLink) []models.ResolvedLink {
	tmdbID := ""
	if movie.TMDBID != nil {
		tmdbID = *movie.TMDBID
	}
	imdbID := ""
	if movie.IMDBID != nil {
		imdbID = *movie.IMDBID
	}

	resolved := make([]models.ResolvedLink, 0, len(links))
	for _, link := range links {
		transcriptID := ""
		if link.TranscriptID != nil {
			transcriptID = *link.TranscriptID
		}
		resolved = append(resolved, models.ResolvedLink{
			ID:           echoIdentifier(models.SourceKind(link.SourceKind), tmdbID, imdbID),
			ManifestURL:  link.ManifestURL,
			TranscriptID: transcriptID,
		})
	}
	return resolved
}

func placeholderTitle(tmdbID, imdbID string) string {
	if imdbID != "" {
		return "Movie " + imdbID
	}
	return "Movie " + tmdbID
}
