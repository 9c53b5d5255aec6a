package mood

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"moodmate/internal/models"
)

// ValidationError marks an out-of-range or malformed reading (HTTP 400).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Service records and aggregates mood readings.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record stores one reading on the 0-100 scale.
func (s *Service) Record(ctx context.Context, userID int64, value int) (*models.MoodEntry, error) {
	if value < 0 || value > 100 {
		return nil, &ValidationError{Msg: "Mood value must be between 0 and 100"}
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO moods (user_id, value, created_at) VALUES (?, ?, ?)`,
		userID, value, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert mood: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("mood id: %w", err)
	}
	return &models.MoodEntry{ID: id, UserID: userID, Value: value, CreatedAt: now}, nil
}

// History returns the user's readings oldest first.
func (s *Service) History(ctx context.Context, userID int64) ([]models.MoodEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, value, created_at FROM moods WHERE user_id = ? ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	defer rows.Close()

	var entries []models.MoodEntry
	for rows.Next() {
		var e models.MoodEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Value, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mood: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates readings recorded at or after since.
func (s *Service) Stats(ctx context.Context, userID int64, since time.Time) (*models.MoodStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM moods WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query moods: %w", err)
	}
	defer rows.Close()

	stats := &models.MoodStats{}
	sum := 0
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if stats.Count == 0 || v < stats.Min {
			stats.Min = v
		}
		if stats.Count == 0 || v > stats.Max {
			stats.Max = v
		}
		sum += v
		stats.Count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats, nil
}
