package models

import "time"

// MoodEntry records a single mood reading on the 0-100 scale.
type MoodEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// MoodStats aggregates a user's readings over a period.
type MoodStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
}
