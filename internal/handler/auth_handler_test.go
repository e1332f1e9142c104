package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/clemmont/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	signUpWithEmailFn func(ctx context.Context, username, email, password string) (*model.User, *model.Session, error)
	signInWithEmailFn func(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	getLoginURLFn     func(state string) string
	handleCallbackFn  func(ctx context.Context, code string) (*model.Session, error)
	logoutFn          func(ctx context.Context, sessionID string) error
	getCurrentUserFn  func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) SignUpWithEmail(ctx context.Context, username, email, password string) (*model.User, *model.Session, error) {
	if m.signUpWithEmailFn != nil {
		return m.signUpWithEmailFn(ctx, username, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) SignInWithEmail(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	if m.signInWithEmailFn != nil {
		return m.signInWithEmailFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		CookieDomain:  "",
		CookieSecure:  false,
		SessionMaxAge: 86400,
	}
}

func testUser() *model.User {
	return &model.User{
		ID:       "user-1",
		Username: "Alice",
		Email:    "alice@example.com",
	}
}

func testSession() *model.Session {
	return &model.Session{
		ID:        "session-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func sessionCookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestAuthHandler_Signup_Returns201WithUserAndCookie(t *testing.T) {
	svc := &mockAuthService{
		signUpWithEmailFn: func(ctx context.Context, username, email, password string) (*model.User, *model.Session, error) {
			if username != "Alice" || email != "alice@example.com" || password != "secret123" {
				t.Errorf("unexpected signup args: %q %q %q", username, email, password)
			}
			return testUser(), testSession(), nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	body := `{"username":"Alice","email":"alice@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got authResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Message != "User registered successfully" {
		t.Errorf("message = %q, want %q", got.Message, "User registered successfully")
	}
	if got.User.ID != "user-1" {
		t.Errorf("user.id = %q, want %q", got.User.ID, "user-1")
	}

	cookie := sessionCookieFrom(resp)
	if cookie == nil {
		t.Fatal("expected session_id cookie to be set")
	}
	if cookie.Value != "session-1" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "session-1")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HTTP only")
	}
}

func TestAuthHandler_Signup_MissingFields_Returns400(t *testing.T) {
	svc := &mockAuthService{
		signUpWithEmailFn: func(ctx context.Context, username, email, password string) (*model.User, *model.Session, error) {
			t.Fatal("service should not be called with missing fields")
			return nil, nil, nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	body := `{"username":"Alice","email":"","password":""}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var got apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Code != model.ErrCodeMissingFields {
		t.Errorf("code = %q, want %q", got.Code, model.ErrCodeMissingFields)
	}
}

func TestAuthHandler_Signup_DuplicateEmail_Returns409(t *testing.T) {
	svc := &mockAuthService{
		signUpWithEmailFn: func(ctx context.Context, username, email, password string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewEmailAlreadyInUseError()
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	body := `{"username":"Alice","email":"alice@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	var got apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Code != model.ErrCodeEmailAlreadyInUse {
		t.Errorf("code = %q, want %q", got.Code, model.ErrCodeEmailAlreadyInUse)
	}
}

func TestAuthHandler_Login_Returns200WithCookie(t *testing.T) {
	svc := &mockAuthService{
		signInWithEmailFn: func(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
			return testUser(), testSession(), nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	body := `{"email":"alice@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if sessionCookieFrom(resp) == nil {
		t.Error("expected session_id cookie to be set")
	}
}

func TestAuthHandler_Login_InvalidCredentials_Returns401(t *testing.T) {
	svc := &mockAuthService{
		signInWithEmailFn: func(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	body := `{"email":"alice@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var got apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", got.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestAuthHandler_GoogleLogin_RedirectsToOAuthURL(t *testing.T) {
	svc := &mockAuthService{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()

	h.GoogleLogin(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}

	location := resp.Header.Get("Location")
	if !strings.Contains(location, "accounts.google.com") {
		t.Errorf("Location = %q, want google oauth URL", location)
	}

	// state Cookieが設定されること
	var stateCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "oauth_state" {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("expected oauth_state cookie to be set")
	}
	if !strings.Contains(location, stateCookie.Value) {
		t.Error("oauth URL should carry the state value from the cookie")
	}
}

func TestAuthHandler_GoogleCallback_SetsSessionAndRedirects(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want %q", code, "auth-code")
			}
			return testSession(), nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=valid-state", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "valid-state"})
	w := httptest.NewRecorder()

	h.GoogleCallback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if sessionCookieFrom(resp) == nil {
		t.Error("expected session_id cookie to be set")
	}
	if resp.Header.Get("Location") != "http://localhost:3000" {
		t.Errorf("Location = %q, want %q", resp.Header.Get("Location"), "http://localhost:3000")
	}
}

func TestAuthHandler_GoogleCallback_StateMismatch_Returns400(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			t.Fatal("callback should not be processed with mismatched state")
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=attacker", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "expected-state"})
	w := httptest.NewRecorder()

	h.GoogleCallback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	logoutCalled := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			logoutCalled = true
			if sessionID != "session-1" {
				t.Errorf("sessionID = %q, want %q", sessionID, "session-1")
			}
			return nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-1"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !logoutCalled {
		t.Error("expected Logout to be called on the service")
	}

	cookie := sessionCookieFrom(resp)
	if cookie == nil {
		t.Fatal("expected session_id cookie in response")
	}
	if cookie.MaxAge != -1 {
		t.Errorf("cookie MaxAge = %d, want -1", cookie.MaxAge)
	}
}

func TestAuthHandler_Me_ReturnsCurrentUser(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return testUser(), nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-1"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got userResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", got.Email, "alice@example.com")
	}
}

func TestAuthHandler_Me_NoCookie_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
