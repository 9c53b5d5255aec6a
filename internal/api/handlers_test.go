package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"moodmate/internal/auth"
	"moodmate/internal/chat"
	"moodmate/internal/config"
	"moodmate/internal/mood"
	"moodmate/internal/storage"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Reply(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if g.reply != "" {
		return g.reply, nil
	}
	return "stub reply", nil
}

func TestAuthFlowEndToEnd(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	// Register alice.
	regResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"email":    "a@x.com",
		"password": "Secret123!",
	}, "")
	assertStatus(t, regResp, http.StatusCreated)
	if authCookie(t, regResp) == "" {
		t.Fatalf("expected auth_token cookie on register")
	}
	var regBody struct {
		User struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	decodeJSON(t, regResp.Body.Bytes(), &regBody)
	if regBody.User.ID == 0 || regBody.User.Username != "alice" {
		t.Fatalf("unexpected register body: %s", regResp.Body.String())
	}

	// Duplicate registration conflicts.
	dupResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"email":    "a@x.com",
		"password": "Secret123!",
	}, "")
	assertStatus(t, dupResp, http.StatusConflict)

	// Login with correct password.
	loginResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "alice",
		"password":        "Secret123!",
	}, "")
	assertStatus(t, loginResp, http.StatusOK)
	token := authCookie(t, loginResp)
	if token == "" {
		t.Fatalf("expected auth_token cookie on login")
	}

	// Wrong password fails with the generic message.
	badResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "alice",
		"password":        "wrong",
	}, "")
	assertStatus(t, badResp, http.StatusUnauthorized)
	var badBody struct {
		Message string `json:"message"`
	}
	decodeJSON(t, badResp.Body.Bytes(), &badBody)
	if badBody.Message != "Invalid credentials" {
		t.Fatalf("unexpected login error message: %q", badBody.Message)
	}
	// Nonexistent user gets the identical message.
	noUserResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "nobody",
		"password":        "wrong",
	}, "")
	assertStatus(t, noUserResp, http.StatusUnauthorized)
	var noUserBody struct {
		Message string `json:"message"`
	}
	decodeJSON(t, noUserResp.Body.Bytes(), &noUserBody)
	if noUserBody.Message != badBody.Message {
		t.Fatalf("login errors differ: %q vs %q", noUserBody.Message, badBody.Message)
	}

	// Profile with the cookie.
	profResp := doJSONRequest(t, router, http.MethodGet, "/api/profile", nil, token)
	assertStatus(t, profResp, http.StatusOK)

	// Logout, then the token is dead even though the JWT has not expired.
	logoutResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/logout", nil, token)
	assertStatus(t, logoutResp, http.StatusOK)
	reuseResp := doJSONRequest(t, router, http.MethodGet, "/api/profile", nil, token)
	assertStatus(t, reuseResp, http.StatusUnauthorized)
}

func TestChangePasswordAndDeleteAccount(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	token := registerAndLogin(t, router, "bob", "b@x.com", "oldpw")

	// Wrong current password.
	wrongResp := doJSONRequest(t, router, http.MethodPost, "/api/change-password", map[string]string{
		"oldPassword": "nope",
		"newPassword": "newpw",
	}, token)
	assertStatus(t, wrongResp, http.StatusBadRequest)

	changeResp := doJSONRequest(t, router, http.MethodPost, "/api/change-password", map[string]string{
		"oldPassword": "oldpw",
		"newPassword": "newpw",
	}, token)
	assertStatus(t, changeResp, http.StatusOK)

	// Old password rejected, new accepted.
	oldLogin := doJSONRequest(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "bob", "password": "oldpw",
	}, "")
	assertStatus(t, oldLogin, http.StatusUnauthorized)
	newLogin := doJSONRequest(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "bob", "password": "newpw",
	}, "")
	assertStatus(t, newLogin, http.StatusOK)

	delResp := doJSONRequest(t, router, http.MethodDelete, "/api/delete-account", nil, token)
	assertStatus(t, delResp, http.StatusOK)

	// Token dies with the account.
	profResp := doJSONRequest(t, router, http.MethodGet, "/api/profile", nil, token)
	assertStatus(t, profResp, http.StatusUnauthorized)
	failLogin := doJSONRequest(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "bob", "password": "newpw",
	}, "")
	assertStatus(t, failLogin, http.StatusUnauthorized)
}

func TestDeleteAccountHidesInternalErrors(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	token := registerAndLogin(t, router, "gail", "g@x.com", "pw")

	// Force the session delete inside DeleteAccount to fail at the DB layer.
	if _, err := db.Exec(`CREATE TRIGGER fail_session_delete BEFORE DELETE ON sessions
		BEGIN SELECT RAISE(ABORT, 'disk I/O error'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	resp := doJSONRequest(t, router, http.MethodDelete, "/api/delete-account", nil, token)
	assertStatus(t, resp, http.StatusInternalServerError)
	var body struct {
		Message string `json:"message"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Message != "Failed to delete account" {
		t.Fatalf("internal error detail leaked: %q", body.Message)
	}
}

func TestChatFlow(t *testing.T) {
	router, db, gen := newTestServer(t)
	defer db.Close()

	token := registerAndLogin(t, router, "carol", "c@x.com", "pw")

	histResp := doJSONRequest(t, router, http.MethodGet, "/api/chat/history", nil, token)
	assertStatus(t, histResp, http.StatusOK)
	var histBody struct {
		History []struct {
			Sender string `json:"sender"`
			Text   string `json:"text"`
		} `json:"history"`
	}
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if len(histBody.History) != 0 {
		t.Fatalf("expected empty history, got %d", len(histBody.History))
	}

	gen.reply = "try a short walk"
	msgResp := doJSONRequest(t, router, http.MethodPost, "/api/chat/message", map[string]string{
		"text": "exams are overwhelming",
	}, token)
	assertStatus(t, msgResp, http.StatusOK)
	var msgBody struct {
		Reply struct {
			Sender string `json:"sender"`
			Text   string `json:"text"`
		} `json:"reply"`
	}
	decodeJSON(t, msgResp.Body.Bytes(), &msgBody)
	if msgBody.Reply.Sender != "bot" || msgBody.Reply.Text != "try a short walk" {
		t.Fatalf("unexpected reply: %s", msgResp.Body.String())
	}

	histResp = doJSONRequest(t, router, http.MethodGet, "/api/chat/history", nil, token)
	assertStatus(t, histResp, http.StatusOK)
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if len(histBody.History) != 2 {
		t.Fatalf("expected 2 messages after one turn, got %d", len(histBody.History))
	}
	if histBody.History[0].Sender != "user" || histBody.History[1].Sender != "bot" {
		t.Fatalf("unexpected order: %+v", histBody.History)
	}

	// Logout purges the transcript.
	logoutResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/logout", nil, token)
	assertStatus(t, logoutResp, http.StatusOK)
	token = loginCookie(t, router, "carol", "pw")
	histResp = doJSONRequest(t, router, http.MethodGet, "/api/chat/history", nil, token)
	assertStatus(t, histResp, http.StatusOK)
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if len(histBody.History) != 0 {
		t.Fatalf("expected purged history after logout, got %d", len(histBody.History))
	}
}

func TestChatMessageErrors(t *testing.T) {
	router, db, gen := newTestServer(t)
	defer db.Close()

	token := registerAndLogin(t, router, "dave", "d@x.com", "pw")

	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat/message", map[string]string{
		"text": "   ",
	}, token)
	assertStatus(t, resp, http.StatusBadRequest)

	gen.err = errors.New("model unavailable")
	resp = doJSONRequest(t, router, http.MethodPost, "/api/chat/message", map[string]string{
		"text": "hello",
	}, token)
	assertStatus(t, resp, http.StatusInternalServerError)
	var body struct {
		Message string `json:"message"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Message != "Failed to process chat message" {
		t.Fatalf("upstream detail leaked: %q", body.Message)
	}
}

func TestMoodEndpoints(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	token := registerAndLogin(t, router, "erin", "e@x.com", "pw")

	resp := doJSONRequest(t, router, http.MethodPost, "/api/mood", map[string]int{"value": 72}, token)
	assertStatus(t, resp, http.StatusCreated)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/mood", map[string]int{"value": 150}, token)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/mood/history", nil, token)
	assertStatus(t, resp, http.StatusOK)
	var histBody struct {
		History []struct {
			Value int `json:"value"`
		} `json:"history"`
	}
	decodeJSON(t, resp.Body.Bytes(), &histBody)
	if len(histBody.History) != 1 || histBody.History[0].Value != 72 {
		t.Fatalf("unexpected mood history: %s", resp.Body.String())
	}

	resp = doJSONRequest(t, router, http.MethodGet, "/api/mood/stats?days=7", nil, token)
	assertStatus(t, resp, http.StatusOK)
	var statsBody struct {
		Stats struct {
			Count   int     `json:"count"`
			Average float64 `json:"average"`
		} `json:"stats"`
	}
	decodeJSON(t, resp.Body.Bytes(), &statsBody)
	if statsBody.Stats.Count != 1 || statsBody.Stats.Average != 72 {
		t.Fatalf("unexpected mood stats: %s", resp.Body.String())
	}
}

func TestPublicDataOptionalAuth(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodGet, "/api/public-data", nil, "")
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Message string `json:"message"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Message != "Hello, guest!" {
		t.Fatalf("unexpected guest greeting: %q", body.Message)
	}

	token := registerAndLogin(t, router, "frank", "f@x.com", "pw")
	resp = doJSONRequest(t, router, http.MethodGet, "/api/public-data", nil, token)
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Message != "Hello, frank!" {
		t.Fatalf("unexpected greeting: %q", body.Message)
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *sql.DB, *stubGenerator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	gen := &stubGenerator{}
	authSvc := auth.NewService(db, "test-signing-secret", time.Hour)
	chatSvc := chat.NewService(chat.NewMemoryStore(), gen, 30, time.Second)
	moodSvc := mood.NewService(db)
	handler := NewHandler(authSvc, chatSvc, moodSvc)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db, gen
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func authCookie(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "auth_token" && ck.MaxAge >= 0 {
			return ck.Value
		}
	}
	return ""
}

func registerAndLogin(t *testing.T, router *gin.Engine, username, email, password string) string {
	t.Helper()
	regResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, "")
	assertStatus(t, regResp, http.StatusCreated)
	return loginCookie(t, router, username, password)
}

func loginCookie(t *testing.T, router *gin.Engine, usernameOrEmail, password string) string {
	t.Helper()
	loginResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": usernameOrEmail,
		"password":        password,
	}, "")
	assertStatus(t, loginResp, http.StatusOK)
	token := authCookie(t, loginResp)
	if token == "" {
		t.Fatalf("expected auth_token cookie after login")
	}
	return token
}
