package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelink/models"
	"cinelink/services/resolver"
)

type fakeResolverService struct {
	resolveResp []models.ResolvedLink
	resolveErr  error

	lastTMDBID  string
	lastIMDBID  string
	forceCalled bool
}

func (f *fakeResolverService) Links(tmdbID, imdbID string) ([]models.ResolvedLink, error) {
	f.lastTMDBID = tmdbID
	f.lastIMDBID = imdbID
	return f.resolveResp, f.resolveErr
}

func (f *fakeResolverService) Resolve(_ context.Context, tmdbID, imdbID string) ([]models.ResolvedLink, error) {
	f.lastTMDBID = tmdbID
	f.lastIMDBID = imdbID
	return f.resolveResp, f.resolveErr
}

func (f *fakeResolverService) ForceResolve(_ context.Context, tmdbID, imdbID string) ([]models.ResolvedLink, error) {
	f.forceCalled = true
	f.lastTMDBID = tmdbID
	f.lastIMDBID = imdbID
	return f.resolveResp, f.resolveErr
}

func postLinks(t *testing.T, handlerFunc http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/movie-links", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handlerFunc(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestGetMovieLinksReturnsStoredLinks(t *testing.T) {
	fake := &fakeResolverService{
		resolveResp: []models.ResolvedLink{
			{ID: "tt0133093", ManifestURL: "https://cdn.example/master.m3u8", TranscriptID: "tr-1"},
		},
	}
	h := NewMovieLinksHandler(fake)

	rec := postLinks(t, h.GetMovieLinks, map[string]string{"tmdb_id": "603", "imdb_id": "tt0133093"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "603", fake.lastTMDBID)
	assert.Equal(t, "tt0133093", fake.lastIMDBID)

	var links []map[string]string
	decodeBody(t, rec, &links)
	require.Len(t, links, 1)
	assert.Equal(t, "tt0133093", links[0]["id"])
	assert.Equal(t, "https://cdn.example/master.m3u8", links[0]["m3u8"])
	assert.Equal(t, "tr-1", links[0]["transcriptid"])
}

func TestGetMovieLinksAcceptsTMDBAlias(t *testing.T) {
	fake := &fakeResolverService{resolveResp: []models.ResolvedLink{}}
	h := NewMovieLinksHandler(fake)

	rec := postLinks(t, h.GetMovieLinks, map[string]string{"tmdb": "603"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "603", fake.lastTMDBID)
}

func TestGetMovieLinksRejectsMalformedBody(t *testing.T) {
	h := NewMovieLinksHandler(&fakeResolverService{})

	req := httptest.NewRequest(http.MethodPost, "/api/movie-links", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.GetMovieLinks(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMovieLinksErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"missing identifier", resolver.ErrMissingIdentifier, http.StatusBadRequest},
		{"movie not found", resolver.ErrMovieNotFound, http.StatusNotFound},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMovieLinksHandler(&fakeResolverService{resolveErr: tt.err})

			rec := postLinks(t, h.GetMovieLinks, map[string]string{"tmdb_id": "603"})

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			decodeBody(t, rec, &body)
			assert.NotEmpty(t, body["error"])
			if tt.err == assert.AnError {
				// Internal details must not leak to the client.
				assert.Equal(t, "internal server error", body["error"])
			}
		})
	}
}

func TestWithFallbackReportsAttemptedURLs(t *testing.T) {
	fake := &fakeResolverService{
		resolveErr: &resolver.UpstreamError{
			Attempted: []string{
				"https://vidsrc.example/embed/movie?tmdb=603",
				"https://vidsrc.example/embed/movie?imdb=tt0133093",
			},
		},
	}
	h := NewMovieLinksHandler(fake)

	rec := postLinks(t, h.GetMovieLinksWithFallback, map[string]string{"tmdb_id": "603", "imdb_id": "tt0133093"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Error         string   `json:"error"`
		AttemptedURLs []string `json:"attempted_urls"`
	}
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body.Error)
	assert.Len(t, body.AttemptedURLs, 2)
}

func TestWithFallbackForwardsIdentifiers(t *testing.T) {
	fake := &fakeResolverService{resolveResp: []models.ResolvedLink{}}
	h := NewMovieLinksHandler(fake)

	rec := postLinks(t, h.GetMovieLinksWithFallback, map[string]string{"imdb_id": "tt0111161"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", fake.lastTMDBID)
	assert.Equal(t, "tt0111161", fake.lastIMDBID)
}

func TestForceParseForwardsBody(t *testing.T) {
	fake := &fakeResolverService{
		resolveResp: []models.ResolvedLink{{ID: "603", ManifestURL: "https://cdn.example/a.m3u8"}},
	}
	h := NewMovieLinksHandler(fake)

	rec := postLinks(t, h.ForceParse, map[string]string{"tmdb_id": "603"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fake.forceCalled)
	assert.Equal(t, "603", fake.lastTMDBID)

	var links []map[string]string
	decodeBody(t, rec, &links)
	require.Len(t, links, 1)
	assert.Equal(t, "603", links[0]["id"])
}

func TestForceParseRejectsMalformedBody(t *testing.T) {
	fake := &fakeResolverService{}
	h := NewMovieLinksHandler(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/movie-links/force-parse", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.ForceParse(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, fake.forceCalled)
}
