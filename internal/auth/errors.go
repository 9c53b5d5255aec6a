package auth

// ValidationError marks client-caused input problems (HTTP 400).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthError marks bad credentials or an invalid, expired, or revoked token (HTTP 401).
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return e.Msg }

// ConflictError marks duplicate username/email registrations (HTTP 409).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// Shared auth failures. Login returns the same error for an unknown user and
// a wrong password so callers cannot enumerate accounts.
var (
	ErrInvalidCredentials = &AuthError{Msg: "Invalid credentials"}
	ErrInvalidToken       = &AuthError{Msg: "Invalid or expired token"}
	ErrUserNotFound       = &AuthError{Msg: "User not found"}
	ErrWrongPassword      = &AuthError{Msg: "Current password is incorrect"}
)
