package models

// Types shared between the resolver, the database layer, and the HTTP
// boundary. Every endpoint projects from these instead of building ad hoc
// shapes per route.

// SourceKind identifies which external-ID family produced a resolved link.
// It determines which input identifier is echoed back in responses.
type SourceKind string

const (
	SourceKindTMDB    SourceKind = "tmdb"    // tmdb id embedded as query parameter
	SourceKindIMDB    SourceKind = "imdb"    // imdb id embedded as path segment
	SourceKindUnknown SourceKind = "unknown" // page did not match a known template
)

// ResolvedLink is one item of the resolver's response array. ManifestURL and
// TranscriptID are always serialized, empty string when absent — never null.
type ResolvedLink struct {
	ID           string `json:"id"`
	ManifestURL  string `json:"m3u8"`
	TranscriptID string `json:"transcriptid"`
}

// MovieDetail is the canonical movie projection for read endpoints.
type MovieDetail struct {
	ID        int64  `json:"id"`
	TMDBID    string `json:"tmdb_id,omitempty"`
	IMDBID    string `json:"imdb_id,omitempty"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MovieLinkDetail is the canonical per-link projection for read endpoints.
// Each manifest URL is a master playlist carrying all quality variants.
type MovieLinkDetail struct {
	ID           int64      `json:"id"`
	ManifestURL  string     `json:"m3u8_url"`
	SourceKind   SourceKind `json:"source_kind,omitempty"`
	IsActive     bool       `json:"is_active"`
	TranscriptID string     `json:"transcript_id,omitempty"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}

// MovieLinksBundle is the response of the detail endpoint: the movie plus all
// of its active links.
type MovieLinksBundle struct {
	Movie MovieDetail       `json:"movie"`
	Links []MovieLinkDetail `json:"links"`
}

// MovieSummary is one row of the search endpoint response.
type MovieSummary struct {
	ID              int64  `json:"id"`
	TMDBID          string `json:"tmdb_id,omitempty"`
	IMDBID          string `json:"imdb_id,omitempty"`
	Title           string `json:"title"`
	LinkCount       int    `json:"link_count"`
	TranscriptCount int    `json:"transcript_count"`
	CreatedAt       string `json:"created_at"`
}

// Pagination accompanies search results.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// LibraryStats is the aggregate counts response.
type LibraryStats struct {
	TotalMovies          int `json:"total_movies"`
	TotalLinks           int `json:"total_links"`
	TotalTranscripts     int `json:"total_transcripts"`
	MoviesWithLinks      int `json:"movies_with_links"`
	LinksWithTranscripts int `json:"links_with_transcripts"`
}

// PublicKeyInfo is returned by the public key distribution endpoint.
type PublicKeyInfo struct {
	PublicKey string `json:"public_key"`
	KeySize   int    `json:"key_size"`
	Algorithm string `json:"algorithm"`
}
