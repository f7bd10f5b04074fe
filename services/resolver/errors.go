package resolver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingIdentifier means neither a tmdb nor an imdb id was supplied.
	ErrMissingIdentifier = errors.New("at least one of tmdb_id or imdb_id is required")

	// ErrMovieNotFound means the direct lookup path found no persisted record.
	ErrMovieNotFound = errors.New("no movie found with the provided IDs")
)

// UpstreamError reports that every candidate URL failed to resolve. It
// carries the attempted URL list for diagnostics.
type UpstreamError struct {
	Attempted []string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("failed to parse any of the constructed URLs: %s", strings.Join(e.Attempted, ", "))
}
