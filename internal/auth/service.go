package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"moodmate/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// Service issues, validates, and revokes session tokens and manages the
// password and account lifecycle.
type Service struct {
	db         *sql.DB
	secret     []byte
	tokenTTL   time.Duration
	cookieName string
	headerName string
}

// NewService constructs an auth service with the supplied signing secret and
// token lifetime.
func NewService(db *sql.DB, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:         db,
		secret:     []byte(secret),
		tokenTTL:   ttl,
		cookieName: "auth_token",
		headerName: "Authorization",
	}
}

// Identity is the resolved caller attached to authenticated requests.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Register creates a user, issues a token, and persists the backing session.
// The existence check and insert run in one transaction.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, "", &ValidationError{Msg: "Username, email, and password are required"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ? OR email = ?)`,
		username, email,
	).Scan(&exists); err != nil {
		return nil, "", fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return nil, "", &ConflictError{Msg: "User with this username or email already exists"}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		username, email, string(hash), now, now,
	)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, "", fmt.Errorf("user id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit register: %w", err)
	}

	token, err := s.issueSession(ctx, id)
	if err != nil {
		return nil, "", err
	}
	user := &models.User{ID: id, Username: username, Email: email, PasswordHash: string(hash), CreatedAt: now, UpdatedAt: now}
	return user, token, nil
}

// Login validates credentials by username or email and issues a fresh
// token/session pair. Multiple concurrent sessions per user are allowed.
func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (*models.User, string, error) {
	usernameOrEmail = strings.TrimSpace(usernameOrEmail)
	if usernameOrEmail == "" || password == "" {
		return nil, "", &ValidationError{Msg: "Username/email and password are required"}
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE username = ? OR email = ?`,
		usernameOrEmail, usernameOrEmail,
	)
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("query user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Logout marks the matching session revoked. Revoking an unknown or already
// revoked token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked = 1 WHERE token = ?`, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// VerifyToken resolves a token to an identity. Three independent checks must
// pass: the JWT signature and expiry, the unrevoked session row bound to the
// same user, and the user row itself. A revoked session rejects the token
// even while the JWT itself is still unexpired.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	userID, err := s.parseToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var sess models.Session
	err = s.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, revoked, created_at FROM sessions WHERE token = ? AND user_id = ? AND revoked = 0`,
		token, userID,
	).Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.ExpiresAt, &sess.Revoked, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var ident Identity
	err = s.db.QueryRowContext(ctx,
		`SELECT id, username, email FROM users WHERE id = ?`, userID,
	).Scan(&ident.ID, &ident.Username, &ident.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &ident, nil
}

// ChangePassword re-hashes and overwrites the stored hash after verifying the
// current password. Existing sessions stay valid.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return &ValidationError{Msg: "Both old and new passwords are required"}
	}

	var storedHash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&storedHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("query user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(oldPassword)) != nil {
		return ErrWrongPassword
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		string(newHash), time.Now().UTC(), userID,
	); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteAccount removes the user's sessions and then the user row inside one
// transaction. Sessions go first to satisfy the foreign key.
func (s *Service) DeleteAccount(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return &ValidationError{Msg: "invalid user id"}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete account: %w", err)
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, userID int64) (string, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	token, err := s.signToken(userID, now, expiresAt)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, token, expires_at, revoked, created_at) VALUES (?, ?, ?, 0, ?)`,
		userID, token, expiresAt, now,
	)
	if err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}
	return token, nil
}

func (s *Service) signToken(userID int64, issuedAt, expiresAt time.Time) (string, error) {
	// A random jti keeps tokens unique even when two sessions for the same
	// user are issued within the same second.
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}
	c := &claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        hex.EncodeToString(buf),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parseToken(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.UserID <= 0 {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return c.UserID, nil
}

// AuthCookieName returns the cookie name storing auth tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
