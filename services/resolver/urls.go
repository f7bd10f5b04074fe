package resolver

import (
	"fmt"
	"strings"

	"cinelink/models"
)

// Upstream embed page templates. The kind-to-template mapping is fixed: the
// TMDB id is embedded as a query parameter, the IMDB id as a path segment.
// The response id selection in the orchestrator depends on this mapping, so
// it must not change without migrating the source_kind values persisted in
// movie_links.
const (
	tmdbEmbedTemplate = "https://vidsrc.net/embed/movie?tmdb=%s"
	imdbEmbedTemplate = "https://vidsrc.xyz/embed/movie/%s"
)

// CandidateURL is one upstream URL to attempt, tagged with the id family that
// produced it.
type CandidateURL struct {
	Kind models.SourceKind
	URL  string
}

// ConstructCandidateURLs maps the supplied external ids to upstream embed
// URLs, one per id that is present. Order is deterministic: the TMDB-derived
// URL always precedes the IMDB-derived one. Both ids absent yields an empty
// slice; callers reject that case before getting here.
func ConstructCandidateURLs(tmdbID, imdbID string) []CandidateURL {
	var candidates []CandidateURL
	if id := strings.TrimSpace(tmdbID); id != "" {
		candidates = append(candidates, CandidateURL{
			Kind: models.SourceKindTMDB,
			URL:  fmt.Sprintf(tmdbEmbedTemplate, id),
		})
	}
	if id := strings.TrimSpace(imdbID); id != "" {
		candidates = append(candidates, CandidateURL{
			Kind: models.SourceKindIMDB,
			URL:  fmt.Sprintf(imdbEmbedTemplate, id),
		})
	}
	return candidates
}
