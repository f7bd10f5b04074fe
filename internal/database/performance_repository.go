package database

import (
	"database/sql"
	"fmt"
	"time"
)

// PerformanceEntry is one availability probe of a movie link.
type PerformanceEntry struct {
	ID             int64
	LinkID         int64
	ResponseTimeMS *int
	StatusCode     *int
	ErrorMessage   *string
	CheckedAt      time.Time
}

// PerformanceRepository records link availability probes.
type PerformanceRepository struct {
	db *sql.DB
}

func NewPerformanceRepository(db *sql.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// Record appends a probe result for the given link.
func (r *PerformanceRepository) Record(entry *PerformanceEntry) error {
	res, err := r.db.Exec(
		`INSERT INTO link_performance_log (link_id, response_time_ms, status_code, error_message)
		 VALUES (?, ?, ?, ?)`,
		entry.LinkID, entry.ResponseTimeMS, entry.StatusCode, entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("record link performance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("record link performance: %w", err)
	}
	entry.ID = id
	return nil
}

// RecentForLink returns the most recent probes of a link, newest first.
func (r *PerformanceRepository) RecentForLink(linkID int64, limit int) ([]PerformanceEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(
		`SELECT id, link_id, response_time_ms, status_code, error_message, checked_at
		 FROM link_performance_log WHERE link_id = ? ORDER BY checked_at DESC, id DESC LIMIT ?`,
		linkID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent link performance: %w", err)
	}
	defer rows.Close()

	var entries []PerformanceEntry
	for rows.Next() {
		var (
			e            PerformanceEntry
			responseTime sql.NullInt64
			statusCode   sql.NullInt64
			errorMessage sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.LinkID, &responseTime, &statusCode, &errorMessage, &e.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan link performance: %w", err)
		}
		if responseTime.Valid {
			v := int(responseTime.Int64)
			e.ResponseTimeMS = &v
		}
		if statusCode.Valid {
			v := int(statusCode.Int64)
			e.StatusCode = &v
		}
		if errorMessage.Valid {
			e.ErrorMessage = &errorMessage.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
