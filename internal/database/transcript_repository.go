package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Transcript is an id-only reference; the transcript content itself lives on
// an external service that is queried with this id.
type Transcript struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TranscriptRepository handles transcript id bookkeeping.
type TranscriptRepository struct {
	db *sql.DB
}

func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Ensure creates the transcript reference if it does not exist yet and
// reports whether a row was created.
func (r *TranscriptRepository) Ensure(id string) (bool, error) {
	res, err := r.db.Exec(`INSERT OR IGNORE INTO transcripts (id) VALUES (?)`, id)
	if err != nil {
		return false, fmt.Errorf("ensure transcript: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure transcript: %w", err)
	}
	return affected > 0, nil
}

// Get returns the transcript reference, or nil when unknown.
func (r *TranscriptRepository) Get(id string) (*Transcript, error) {
	var t Transcript
	err := r.db.QueryRow(
		`SELECT id, created_at, updated_at FROM transcripts WHERE id = ?`, id,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	return &t, nil
}
