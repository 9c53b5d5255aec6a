package models

import "time"

// Session is the server-side record backing an issued token. A session is
// valid only while revoked is false and expires_at lies in the future; the
// signed token carries its own expiry independently.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}
