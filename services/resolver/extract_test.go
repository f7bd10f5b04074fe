package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cinelink/models"
)

func TestConstructCandidateURLs(t *testing.T) {
	tests := []struct {
		name   string
		tmdbID string
		imdbID string
		want   []CandidateURL
	}{
		{
			name:   "both ids, tmdb first",
			tmdbID: "603",
			imdbID: "tt0133093",
			want: []CandidateURL{
				{Kind: models.SourceKindTMDB, URL: "https://vidsrc.net/embed/movie?tmdb=603"},
				{Kind: models.SourceKindIMDB, URL: "https://vidsrc.xyz/embed/movie/tt0133093"},
			},
		},
		{
			name:   "tmdb only",
			tmdbID: "603",
			want: []CandidateURL{
				{Kind: models.SourceKindTMDB, URL: "https://vidsrc.net/embed/movie?tmdb=603"},
			},
		},
		{
			name:   "imdb only",
			imdbID: "tt0133093",
			want: []CandidateURL{
				{Kind: models.SourceKindIMDB, URL: "https://vidsrc.xyz/embed/movie/tt0133093"},
			},
		},
		{
			name:   "whitespace trimmed",
			tmdbID: "  603  ",
			want: []CandidateURL{
				{Kind: models.SourceKindTMDB, URL: "https://vidsrc.net/embed/movie?tmdb=603"},
			},
		},
		{
			name: "neither id",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConstructCandidateURLs(tt.tmdbID, tt.imdbID))
		})
	}
}

func TestExtractFramePage(t *testing.T) {
	body := []byte(`<html><body data-i="abc123">
		<div><iframe id="player_iframe" src="//cloudnestra.com/rcp/xyz"></iframe></div>
		<iframe src="//other.example/second"></iframe>
	</body></html>`)

	page := extractFramePage(body)

	assert.Equal(t, "abc123", page.OpaqueID)
	// First iframe wins.
	assert.Equal(t, "//cloudnestra.com/rcp/xyz", page.IframeSrc)
}

func TestExtractFramePageMissingPieces(t *testing.T) {
	page := extractFramePage([]byte(`<html><body><p>nothing here</p></body></html>`))
	assert.Empty(t, page.OpaqueID)
	assert.Empty(t, page.IframeSrc)

	// data-i without an iframe still surfaces the opaque id.
	page = extractFramePage([]byte(`<html><body data-i="only-id"></body></html>`))
	assert.Equal(t, "only-id", page.OpaqueID)
	assert.Empty(t, page.IframeSrc)
}

func TestExtractPageSummary(t *testing.T) {
	body := []byte(`<html><head><title> Some Page </title></head>
		<body><div><p>First <b>paragraph</b> text.</p><p>Second.</p></div></body></html>`)

	title, firstParagraph := extractPageSummary(body)

	assert.Equal(t, "Some Page", title)
	assert.Equal(t, "First paragraph text.", firstParagraph)
}

func TestExtractPlayerSrc(t *testing.T) {
	content := `
		function loadIframe(autoplay) {
			var iframe = $('<iframe>', {
				src: '/prorcp/NDE3', frameborder: 0
			});
		}`

	assert.Equal(t, "/prorcp/NDE3", extractPlayerSrc(content))
	assert.Empty(t, extractPlayerSrc("no player call here"))
}

func TestExtractPlayerSrcSpansLines(t *testing.T) {
	content := "loadIframe(\n  true\n) {\n  other: 1,\n  src: \"/prorcp/multi\"\n"
	assert.Equal(t, "/prorcp/multi", extractPlayerSrc(content))
}

func TestExtractFileURL(t *testing.T) {
	content := `player = new Playerjs({id:"player", file: 'https://cdn.example/stream/master.m3u8'});`
	assert.Equal(t, "https://cdn.example/stream/master.m3u8", extractFileURL(content))
	assert.Empty(t, extractFileURL("file = nothing"))
}

func TestNormalizeRef(t *testing.T) {
	assert.Equal(t, "https://cloudnestra.com/rcp/x", normalizeRef("//cloudnestra.com/rcp/x"))
	assert.Equal(t, "http://plain.example/x", normalizeRef("http://plain.example/x"))
	assert.Equal(t, "https://secure.example/x", normalizeRef("https://secure.example/x"))
	assert.Equal(t, "relative/path", normalizeRef("relative/path"))
}

func TestResolveAgainstOrigin(t *testing.T) {
	origin := "https://cloudnestra.com/rcp/xyz"

	assert.Equal(t, "https://cloudnestra.com/prorcp/abc", resolveAgainstOrigin(origin, "/prorcp/abc"))
	assert.Equal(t, "https://cloudnestra.com/prorcp/abc", resolveAgainstOrigin(origin, "prorcp/abc"))
	// Absolute references pass through.
	assert.Equal(t, "https://other.example/x", resolveAgainstOrigin(origin, "https://other.example/x"))
	assert.Empty(t, resolveAgainstOrigin(origin, ""))
}
