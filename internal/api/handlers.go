package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"moodmate/internal/auth"
	"moodmate/internal/chat"
	"moodmate/internal/models"
	"moodmate/internal/mood"
)

// Handler wires HTTP routes to the auth, chat, and mood services.
type Handler struct {
	auth *auth.Service
	chat *chat.Service
	mood *mood.Service
}

// NewHandler constructs a Handler instance.
func NewHandler(authService *auth.Service, chatService *chat.Service, moodService *mood.Service) *Handler {
	return &Handler{
		auth: authService,
		chat: chatService,
		mood: moodService,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/auth/register", h.registerUser)
	api.POST("/auth/login", h.loginUser)
	api.GET("/public-data", h.auth.OptionalAuth(), h.publicData)

	authed := api.Group("")
	authed.Use(h.auth.RequireAuth())
	authed.POST("/auth/logout", h.logoutUser)
	authed.GET("/profile", h.profile)
	authed.POST("/change-password", h.changePassword)
	authed.DELETE("/delete-account", h.deleteAccount)
	authed.GET("/chat/history", h.chatHistory)
	authed.POST("/chat/message", h.chatMessage)
	authed.POST("/mood", h.recordMood)
	authed.GET("/mood/history", h.moodHistory)
	authed.GET("/mood/stats", h.moodStats)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		var conflict *auth.ConflictError
		var invalid *auth.ValidationError
		switch {
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, gin.H{"message": conflict.Msg})
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Msg})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed"})
		}
		return
	}
	h.setAuthCookie(c, token)
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    userPayload(user),
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		var invalid *auth.ValidationError
		var authErr *auth.AuthError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Msg})
		case errors.As(err, &authErr):
			c.JSON(http.StatusUnauthorized, gin.H{"message": authErr.Msg})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		}
		return
	}
	h.setAuthCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    userPayload(user),
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	if token := h.auth.TokenFromRequest(c); token != "" {
		if err := h.auth.Logout(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to logout"})
			return
		}
	}
	if err := h.chat.Purge(c.Request.Context(), ident.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to logout"})
		return
	}
	h.clearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) profile(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": ident})
}

func (h *Handler) publicData(c *gin.Context) {
	greeting := "Hello, guest!"
	if ident, ok := auth.IdentityFromContext(c); ok {
		greeting = "Hello, " + ident.Username + "!"
	}
	c.JSON(http.StatusOK, gin.H{"message": greeting})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) changePassword(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), ident.ID, req.OldPassword, req.NewPassword); err != nil {
		var invalid *auth.ValidationError
		var authErr *auth.AuthError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Msg})
		case errors.As(err, &authErr):
			c.JSON(http.StatusBadRequest, gin.H{"message": authErr.Msg})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to change password"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (h *Handler) deleteAccount(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	if err := h.auth.DeleteAccount(c.Request.Context(), ident.ID); err != nil {
		var invalid *auth.ValidationError
		var authErr *auth.AuthError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Msg})
		case errors.As(err, &authErr):
			c.JSON(http.StatusBadRequest, gin.H{"message": authErr.Msg})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete account"})
		}
		return
	}
	if err := h.chat.Purge(c.Request.Context(), ident.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete account"})
		return
	}
	h.clearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

func (h *Handler) chatHistory(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	history, err := h.chat.History(c.Request.Context(), ident.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load chat history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

type chatMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) chatMessage(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message text is required"})
		return
	}
	reply, err := h.chat.SendMessage(c.Request.Context(), ident.ID, req.Text)
	if err != nil {
		var invalid *chat.ValidationError
		var upstream *chat.UpstreamError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Msg})
		case errors.As(err, &upstream):
			c.JSON(http.StatusInternalServerError, gin.H{"message": upstream.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to process chat message"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

type moodRequest struct {
	Value *int `json:"value"`
}

func (h *Handler) recordMood(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	var req moodRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Mood value is required"})
		return
	}
	entry, err := h.mood.Record(c.Request.Context(), ident.ID, *req.Value)
	if err != nil {
		var invalid *mood.ValidationError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Msg})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to record mood"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

func (h *Handler) moodHistory(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	entries, err := h.mood.History(c.Request.Context(), ident.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load mood history"})
		return
	}
	if entries == nil {
		entries = []models.MoodEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *Handler) moodStats(c *gin.Context) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	days := 7
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid days parameter"})
			return
		}
		days = parsed
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	stats, err := h.mood.Stats(c.Request.Context(), ident.ID, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to compute mood stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}
}

func (h *Handler) setAuthCookie(c *gin.Context, token string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    token,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearAuthCookie(c *gin.Context) {
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
