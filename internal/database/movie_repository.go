package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cinelink/models"
)

// Movie is a persisted movie record. At least one of TMDBID/IMDBID is set.
type Movie struct {
	ID        int64
	TMDBID    *string
	IMDBID    *string
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MovieLink is a persisted master playlist link for a movie. SourceKind
// records which external-ID family produced the link; it is empty for links
// registered manually through the management endpoints.
type MovieLink struct {
	ID           int64
	MovieID      int64
	ManifestURL  string
	SourceKind   string
	IsActive     bool
	TranscriptID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MovieRepository handles movie and movie link persistence.
type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// FindMovie looks up an active movie by either external id. Both ids supplied
// matches on either; nil result with nil error means no record.
func (r *MovieRepository) FindMovie(tmdbID, imdbID string) (*Movie, error) {
	tmdbID = strings.TrimSpace(tmdbID)
	imdbID = strings.TrimSpace(imdbID)
	if tmdbID == "" && imdbID == "" {
		return nil, nil
	}

	query := `SELECT id, tmdb_id, imdb_id, title, status, created_at, updated_at
	          FROM movies WHERE status = 'active' AND `
	var args []any
	switch {
	case tmdbID != "" && imdbID != "":
		query += "(tmdb_id = ? OR imdb_id = ?)"
		args = []any{tmdbID, imdbID}
	case tmdbID != "":
		query += "tmdb_id = ?"
		args = []any{tmdbID}
	default:
		query += "imdb_id = ?"
		args = []any{imdbID}
	}
	query += " ORDER BY id LIMIT 1"

	movie, err := scanMovie(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find movie: %w", err)
	}
	return movie, nil
}

// CreateMovie inserts a new movie and backfills ID and timestamps.
func (r *MovieRepository) CreateMovie(m *Movie) error {
	if m.Status == "" {
		m.Status = "active"
	}
	res, err := r.db.Exec(
		`INSERT INTO movies (tmdb_id, imdb_id, title, status) VALUES (?, ?, ?, ?)`,
		m.TMDBID, m.IMDBID, m.Title, m.Status,
	)
	if err != nil {
		return fmt.Errorf("create movie: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create movie: %w", err)
	}
	m.ID = id
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// UpdateTitle renames an existing movie.
func (r *MovieRepository) UpdateTitle(movieID int64, title string) error {
	_, err := r.db.Exec(
		`UPDATE movies SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, movieID,
	)
	if err != nil {
		return fmt.Errorf("update movie title: %w", err)
	}
	return nil
}

// GetActiveLinks returns the movie's active links, newest first.
func (r *MovieRepository) GetActiveLinks(movieID int64) ([]MovieLink, error) {
	rows, err := r.db.Query(
		`SELECT id, movie_id, m3u8_url, source_kind, is_active, transcript_id, created_at, updated_at
		 FROM movie_links WHERE movie_id = ? AND is_active = 1 ORDER BY created_at DESC, id DESC`,
		movieID,
	)
	if err != nil {
		return nil, fmt.Errorf("get active links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// AllActiveLinks returns every active link in the library, capped at limit,
// for the link health prober.
func (r *MovieRepository) AllActiveLinks(limit int) ([]MovieLink, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(
		`SELECT id, movie_id, m3u8_url, source_kind, is_active, transcript_id, created_at, updated_at
		 FROM movie_links WHERE is_active = 1 ORDER BY id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("all active links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// UpsertLink inserts a link or, when the (movie, url) pair already exists,
// refreshes its metadata. Returns the stored link and whether it was created.
func (r *MovieRepository) UpsertLink(link *MovieLink) (bool, error) {
	existing, err := r.findLink(link.MovieID, link.ManifestURL)
	if err != nil {
		return false, err
	}
	if existing != nil {
		_, err := r.db.Exec(
			`UPDATE movie_links SET source_kind = ?, is_active = ?, transcript_id = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			link.SourceKind, link.IsActive, link.TranscriptID, existing.ID,
		)
		if err != nil {
			return false, fmt.Errorf("update link: %w", err)
		}
		link.ID = existing.ID
		link.CreatedAt = existing.CreatedAt
		return false, nil
	}

	res, err := r.db.Exec(
		`INSERT INTO movie_links (movie_id, m3u8_url, source_kind, is_active, transcript_id)
		 VALUES (?, ?, ?, ?, ?)`,
		link.MovieID, link.ManifestURL, link.SourceKind, link.IsActive, link.TranscriptID,
	)
	if err != nil {
		return false, fmt.Errorf("insert link: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("insert link: %w", err)
	}
	link.ID = id
	return true, nil
}

func (r *MovieRepository) findLink(movieID int64, manifestURL string) (*MovieLink, error) {
	row := r.db.QueryRow(
		`SELECT id, movie_id, m3u8_url, source_kind, is_active, transcript_id, created_at, updated_at
		 FROM movie_links WHERE movie_id = ? AND m3u8_url = ?`,
		movieID, manifestURL,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find link: %w", err)
	}
	return link, nil
}

// SearchMovies returns active movies whose title contains the query,
// newest first, with link counts, plus the total match count for pagination.
func (r *MovieRepository) SearchMovies(query string, offset, limit int) ([]models.MovieSummary, int, error) {
	pattern := "%" + query + "%"

	var total int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM movies WHERE status = 'active' AND title LIKE ?`,
		pattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count movies: %w", err)
	}

	rows, err := r.db.Query(
		`SELECT m.id, m.tmdb_id, m.imdb_id, m.title, m.created_at,
		        (SELECT COUNT(*) FROM movie_links l WHERE l.movie_id = m.id AND l.is_active = 1),
		        (SELECT COUNT(*) FROM movie_links l WHERE l.movie_id = m.id AND l.is_active = 1 AND l.transcript_id IS NOT NULL)
		 FROM movies m
		 WHERE m.status = 'active' AND m.title LIKE ?
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT ? OFFSET ?`,
		pattern, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search movies: %w", err)
	}
	defer rows.Close()

	var summaries []models.MovieSummary
	for rows.Next() {
		var (
			s         models.MovieSummary
			tmdbID    sql.NullString
			imdbID    sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&s.ID, &tmdbID, &imdbID, &s.Title, &createdAt, &s.LinkCount, &s.TranscriptCount); err != nil {
			return nil, 0, fmt.Errorf("scan movie summary: %w", err)
		}
		s.TMDBID = tmdbID.String
		s.IMDBID = imdbID.String
		s.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

// Stats returns the aggregate library counts.
func (r *MovieRepository) Stats() (models.LibraryStats, error) {
	var stats models.LibraryStats
	err := r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM movies WHERE status = 'active'),
			(SELECT COUNT(*) FROM movie_links WHERE is_active = 1),
			(SELECT COUNT(*) FROM transcripts),
			(SELECT COUNT(DISTINCT movie_id) FROM movie_links WHERE is_active = 1),
			(SELECT COUNT(*) FROM movie_links WHERE is_active = 1 AND transcript_id IS NOT NULL)
	`).Scan(
		&stats.TotalMovies,
		&stats.TotalLinks,
		&stats.TotalTranscripts,
		&stats.MoviesWithLinks,
		&stats.LinksWithTranscripts,
	)
	if err != nil {
		return models.LibraryStats{}, fmt.Errorf("library stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (*Movie, error) {
	var m Movie
	var tmdbID, imdbID sql.NullString
	if err := row.Scan(&m.ID, &tmdbID, &imdbID, &m.Title, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if tmdbID.Valid {
		m.TMDBID = &tmdbID.String
	}
	if imdbID.Valid {
		m.IMDBID = &imdbID.String
	}
	return &m, nil
}

func scanLink(row rowScanner) (*MovieLink, error) {
	var l MovieLink
	var transcriptID sql.NullString
	if err := row.Scan(&l.ID, &l.MovieID, &l.ManifestURL, &l.SourceKind, &l.IsActive, &transcriptID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if transcriptID.Valid {
		l.TranscriptID = &transcriptID.String
	}
	return &l, nil
}

func scanLinks(rows *sql.Rows) ([]MovieLink, error) {
	var links []MovieLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}
