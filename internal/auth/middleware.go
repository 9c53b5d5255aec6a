package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityContextKey = "auth_identity"

// RequireAuth validates the request token and stores the resolved identity in
// the context. Requests without a token, or with one that fails any
// verification check, are rejected with a generic 401.
func (s *Service) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		ident, err := s.VerifyToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": ErrInvalidToken.Msg})
			return
		}
		c.Set(identityContextKey, ident)
		c.Next()
	}
}

// OptionalAuth attaches the identity when verification succeeds and otherwise
// lets the request continue unauthenticated.
func (s *Service) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := s.extractToken(c); token != "" {
			if ident, err := s.VerifyToken(c.Request.Context(), token); err == nil {
				c.Set(identityContextKey, ident)
			}
		}
		c.Next()
	}
}

// IdentityFromContext retrieves the authenticated identity from the gin context.
func IdentityFromContext(c *gin.Context) (*Identity, bool) {
	val, ok := c.Get(identityContextKey)
	if !ok {
		return nil, false
	}
	ident, ok := val.(*Identity)
	return ident, ok
}

// TokenFromRequest exposes the raw token for handlers that revoke it.
func (s *Service) TokenFromRequest(c *gin.Context) string {
	return s.extractToken(c)
}

// Cookie first, then the Authorization header for non-cookie clients.
func (s *Service) extractToken(c *gin.Context) string {
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader(s.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
