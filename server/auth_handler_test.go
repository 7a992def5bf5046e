package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"soundvault/model"
)

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSON(t, rec)
	errBody, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error envelope: %q", rec.Body.String())
	}
	msg, _ := errBody["message"].(string)
	return msg
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(jsonRequest(t, "POST", "/api/auth/signup", SignupRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "secret123",
	}), "")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeJSON(t, rec)
	if body["token"] == "" || body["token"] == nil {
		t.Error("expected a session token in the response")
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "alice" {
		t.Errorf("unexpected user payload: %v", body["user"])
	}
	if user["email"] != "alice@example.com" {
		t.Errorf("expected normalized email, got %v", user["email"])
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Error("password hash leaked into the response")
	}

	// The session cookie must resolve to the new account.
	var token string
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == env.cfg.SessionCookie {
			token = cookie.Value
		}
	}
	if token == "" {
		t.Fatal("expected a session cookie")
	}
	meRec := env.do(httptest.NewRequest("GET", "/api/auth/me", nil), token)
	if meRec.Code != http.StatusOK {
		t.Errorf("expected 200 from /me with new session, got %d", meRec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		req     SignupRequest
		wantMsg string
	}{
		{"short username", SignupRequest{Username: "ab", Email: "a@b.co", Password: "secret123"}, "Username must be between 3 and 30 characters"},
		{"bad email", SignupRequest{Username: "alice", Email: "nope", Password: "secret123"}, "Please provide a valid email"},
		{"short password", SignupRequest{Username: "alice", Email: "a@b.co", Password: "12345"}, "Password must be at least 6 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(jsonRequest(t, "POST", "/api/auth/signup", tt.req), "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if msg := errorMessage(t, rec); msg != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, msg)
			}
		})
	}
}

func TestSignupConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@example.com", "secret123", model.RoleUser)

	rec := env.do(jsonRequest(t, "POST", "/api/auth/signup", SignupRequest{
		Username: "someone_else",
		Email:    "alice@example.com",
		Password: "secret123",
	}), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken email, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Email already registered" {
		t.Errorf("unexpected message %q", msg)
	}

	rec = env.do(jsonRequest(t, "POST", "/api/auth/signup", SignupRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "secret123",
	}), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken username, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Username already taken" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@example.com", "secret123", model.RoleUser)

	rec := env.do(jsonRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "ALICE@example.com",
		Password: "secret123",
	}), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["token"] == "" || body["token"] == nil {
		t.Error("expected a session token")
	}
}

// Wrong password and unknown email must be indistinguishable so the endpoint
// cannot be used to probe which accounts exist.
func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@example.com", "secret123", model.RoleUser)

	wrongPassword := env.do(jsonRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	}), "")
	unknownEmail := env.do(jsonRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "ghost@example.com",
		Password: "secret123",
	}), "")

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("failure responses differ:\n%s\n%s", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
	if msg := errorMessage(t, wrongPassword); msg != "Invalid email or password" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "secret123", model.RoleUser)
	token := env.login(t, user.ID)

	rec := env.do(httptest.NewRequest("POST", "/api/auth/logout", nil), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// The destroyed session no longer authenticates.
	meRec := env.do(httptest.NewRequest("GET", "/api/auth/me", nil), token)
	if meRec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", meRec.Code)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest("GET", "/api/auth/me", nil), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Not authenticated. Please login." {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestBearerTokenFallback(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "secret123", model.RoleUser)
	token := env.login(t, user.ID)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with bearer token, got %d", rec.Code)
	}
}

func TestStaleSessionForDeletedUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "secret123", model.RoleUser)
	token := env.login(t, user.ID)

	delete(env.users.users, user.ID)

	rec := env.do(httptest.NewRequest("GET", "/api/auth/me", nil), token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale session, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "User not found. Please login again." {
		t.Errorf("unexpected message %q", msg)
	}
}
