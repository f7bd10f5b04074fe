package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelink/internal/database"
	"cinelink/models"
	"cinelink/services/cache"
)

// fakeMovieStore is an in-memory MovieStore for orchestration tests.
type fakeMovieStore struct {
	movies    []*database.Movie
	links     map[int64][]database.MovieLink
	nextID    int64
	createErr error
	upsertErr error
}

func newFakeMovieStore() *fakeMovieStore {
	return &fakeMovieStore{links: make(map[int64][]database.MovieLink), nextID: 1}
}

func (f *fakeMovieStore) FindMovie(tmdbID, imdbID string) (*database.Movie, error) {
	for _, m := range f.movies {
		if tmdbID != "" && m.TMDBID != nil && *m.TMDBID == tmdbID {
			return m, nil
		}
		if imdbID != "" && m.IMDBID != nil && *m.IMDBID == imdbID {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMovieStore) CreateMovie(m *database.Movie) error {
	if f.createErr != nil {
		return f.createErr
	}
	m.ID = f.nextID
	f.nextID++
	f.movies = append(f.movies, m)
	return nil
}

func (f *fakeMovieStore) GetActiveLinks(movieID int64) ([]database.MovieLink, error) {
	return f.links[movieID], nil
}

func (f *fakeMovieStore) UpsertLink(link *database.MovieLink) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	link.ID = f.nextID
	f.nextID++
	f.links[link.MovieID] = append(f.links[link.MovieID], *link)
	return true, nil
}

type fakeTranscriptStore struct {
	ensured []string
}

func (f *fakeTranscriptStore) Ensure(id string) (bool, error) {
	f.ensured = append(f.ensured, id)
	return true, nil
}

// fakePageFetcher counts fetches so tests can assert which paths hit
// upstream.
type fakePageFetcher struct {
	results map[string]ParseResult
	calls   int
}

func (f *fakePageFetcher) Resolve(_ context.Context, candidate CandidateURL) ParseResult {
	f.calls++
	if result, ok := f.results[candidate.URL]; ok {
		return result
	}
	return ParseResult{SourceKind: candidate.Kind, SourceURL: candidate.URL, Error: "connection refused"}
}

func newTestService(movies *fakeMovieStore, fetcher *fakePageFetcher) (*Service, *fakeTranscriptStore, *cache.MemoryStore) {
	transcripts := &fakeTranscriptStore{}
	store := cache.NewMemoryStore()
	svc := NewService(movies, transcripts, store, fetcher, time.Hour)
	return svc, transcripts, store
}

func TestResolveMissingIdentifier(t *testing.T) {
	fetcher := &fakePageFetcher{}
	svc, _, _ := newTestService(newFakeMovieStore(), fetcher)

	_, err := svc.Resolve(context.Background(), "  ", "")

	assert.ErrorIs(t, err, ErrMissingIdentifier)
	assert.Zero(t, fetcher.calls)
}

func TestLinksNotFound(t *testing.T) {
	svc, _, _ := newTestService(newFakeMovieStore(), &fakePageFetcher{})

	_, err := svc.Links("603", "")

	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestLinksFromStorage(t *testing.T) {
	movies := newFakeMovieStore()
	tmdbID := "603"
	movie := &database.Movie{TMDBID: &tmdbID, Title: "The Matrix"}
	require.NoError(t, movies.CreateMovie(movie))
	transcriptID := "tr-1"
	_, err := movies.UpsertLink(&database.MovieLink{
		MovieID:      movie.ID,
		ManifestURL:  "https://cdn.example/master.m3u8",
		SourceKind:   "tmdb",
		IsActive:     true,
		TranscriptID: &transcriptID,
	})
	require.NoError(t, err)

	fetcher := &fakePageFetcher{}
	svc, _, _ := newTestService(movies, fetcher)

	links, err := svc.Links("603", "")
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, models.ResolvedLink{
		ID:           "603",
		ManifestURL:  "https://cdn.example/master.m3u8",
		TranscriptID: "tr-1",
	}, links[0])
	assert.Zero(t, fetcher.calls)
}

func TestResolveShortCircuitsOnStoredLinks(t *testing.T) {
	movies := newFakeMovieStore()
	imdbID := "tt0133093"
	movie := &database.Movie{IMDBID: &imdbID, Title: "The Matrix"}
	require.NoError(t, movies.CreateMovie(movie))
	_, err := movies.UpsertLink(&database.MovieLink{
		MovieID:     movie.ID,
		ManifestURL: "https://cdn.example/master.m3u8",
		IsActive:    true,
	})
	require.NoError(t, err)

	fetcher := &fakePageFetcher{}
	svc, _, _ := newTestService(movies, fetcher)

	links, err := svc.Resolve(context.Background(), "", "tt0133093")
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "tt0133093", links[0].ID)
	assert.Empty(t, links[0].TranscriptID)
	assert.Zero(t, fetcher.calls)
}

func TestResolveCacheHitSkipsFetch(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakePageFetcher{}
	svc, _, store := newTestService(newFakeMovieStore(), fetcher)

	cached := ParseResult{
		ManifestURL: "https://cdn.example/master.m3u8",
		OpaqueID:    "tr-1",
		SourceKind:  models.SourceKindTMDB,
	}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	store.Set(ctx, cache.Key("https://vidsrc.net/embed/movie?tmdb=603"), raw, time.Hour)

	links, err := svc.Resolve(ctx, "603", "")
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "603", links[0].ID)
	assert.Equal(t, "https://cdn.example/master.m3u8", links[0].ManifestURL)
	assert.Equal(t, "tr-1", links[0].TranscriptID)
	assert.Zero(t, fetcher.calls)
}

func TestResolveAllCandidatesFail(t *testing.T) {
	fetcher := &fakePageFetcher{}
	svc, _, _ := newTestService(newFakeMovieStore(), fetcher)

	_, err := svc.Resolve(context.Background(), "603", "tt0133093")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, []string{
		"https://vidsrc.net/embed/movie?tmdb=603",
		"https://vidsrc.xyz/embed/movie/tt0133093",
	}, upstream.Attempted)
	assert.Equal(t, 2, fetcher.calls)
}

func TestResolveFetchesAndPersists(t *testing.T) {
	ctx := context.Background()
	movies := newFakeMovieStore()
	fetcher := &fakePageFetcher{results: map[string]ParseResult{
		"https://vidsrc.net/embed/movie?tmdb=603": {
			ManifestURL: "https://cdn.example/master.m3u8",
			OpaqueID:    "tr-1",
			SourceKind:  models.SourceKindTMDB,
		},
	}}
	svc, transcripts, store := newTestService(movies, fetcher)

	links, err := svc.Resolve(ctx, "603", "")
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "603", links[0].ID)
	assert.Equal(t, "tr-1", links[0].TranscriptID)

	// Result is cached for the next caller.
	_, ok := store.Get(ctx, cache.Key("https://vidsrc.net/embed/movie?tmdb=603"))
	assert.True(t, ok)

	// Movie, link and transcript were persisted.
	movie, err := movies.FindMovie("603", "")
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, "Movie 603", movie.Title)
	stored := movies.links[movie.ID]
	require.Len(t, stored, 1)
	assert.Equal(t, "https://cdn.example/master.m3u8", stored[0].ManifestURL)
	assert.Equal(t, "tmdb", stored[0].SourceKind)
	assert.Equal(t, []string{"tr-1"}, transcripts.ensured)

	// The second resolve is served from storage without a fetch.
	calls := fetcher.calls
	_, err = svc.Resolve(ctx, "603", "")
	require.NoError(t, err)
	assert.Equal(t, calls, fetcher.calls)
}

func TestResolvePersistenceFailureStillSucceeds(t *testing.T) {
	movies := newFakeMovieStore()
	movies.createErr = errors.New("disk is full")
	fetcher := &fakePageFetcher{results: map[string]ParseResult{
		"https://vidsrc.net/embed/movie?tmdb=603": {
			ManifestURL: "https://cdn.example/master.m3u8",
			SourceKind:  models.SourceKindTMDB,
		},
	}}
	svc, _, _ := newTestService(movies, fetcher)

	links, err := svc.Resolve(context.Background(), "603", "")

	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://cdn.example/master.m3u8", links[0].ManifestURL)
}

func TestForceResolveBypassesStorageAndCache(t *testing.T) {
	ctx := context.Background()
	movies := newFakeMovieStore()
	tmdbID := "603"
	movie := &database.Movie{TMDBID: &tmdbID, Title: "The Matrix"}
	require.NoError(t, movies.CreateMovie(movie))
	_, err := movies.UpsertLink(&database.MovieLink{
		MovieID:     movie.ID,
		ManifestURL: "https://stale.example/old.m3u8",
		IsActive:    true,
	})
	require.NoError(t, err)

	fetcher := &fakePageFetcher{results: map[string]ParseResult{
		"https://vidsrc.net/embed/movie?tmdb=603": {
			ManifestURL: "https://cdn.example/fresh.m3u8",
			SourceKind:  models.SourceKindTMDB,
		},
	}}
	svc, _, store := newTestService(movies, fetcher)

	// Prime the cache with a stale entry that force must ignore.
	raw, err := json.Marshal(ParseResult{ManifestURL: "https://stale.example/cached.m3u8", SourceKind: models.SourceKindTMDB})
	require.NoError(t, err)
	store.Set(ctx, cache.Key("https://vidsrc.net/embed/movie?tmdb=603"), raw, time.Hour)

	links, err := svc.ForceResolve(ctx, "603", "")
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "https://cdn.example/fresh.m3u8", links[0].ManifestURL)
	assert.Equal(t, 1, fetcher.calls)

	// The fresh result replaced the cached one.
	raw, ok := store.Get(ctx, cache.Key("https://vidsrc.net/embed/movie?tmdb=603"))
	require.True(t, ok)
	var cached ParseResult
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, "https://cdn.example/fresh.m3u8", cached.ManifestURL)
}

func TestEchoIdentifier(t *testing.T) {
	assert.Equal(t, "603", echoIdentifier(models.SourceKindTMDB, "603", "tt1"))
	assert.Equal(t, "tt1", echoIdentifier(models.SourceKindIMDB, "603", "tt1"))
	// Kind without a matching id falls back, preferring imdb.
	assert.Equal(t, "tt1", echoIdentifier(models.SourceKindTMDB, "", "tt1"))
	assert.Equal(t, "tt1", echoIdentifier(models.SourceKindUnknown, "603", "tt1"))
	assert.Equal(t, "603", echoIdentifier(models.SourceKindUnknown, "603", ""))
}
