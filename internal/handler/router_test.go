package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/clemmont/internal/assistant"
	"github.com/hitoshi/clemmont/internal/middleware"
	"github.com/hitoshi/clemmont/internal/model"
)

// --- テスト用ルーター構築 ---

type mockRouterSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockRouterSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	sessionFinder := &mockRouterSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return &model.Session{
					ID:        id,
					UserID:    "user-router",
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		SessionFinder:     sessionFinder,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		CSRFConfig:        middleware.CSRFConfig{},
		AuthService: &mockAuthService{
			signUpWithEmailFn: func(ctx context.Context, username, email, password string) (*model.User, *model.Session, error) {
				return testUser(), testSession(), nil
			},
		},
		AuthConfig: testAuthConfig(),
		Interpreter: &mockInterpreter{
			handleCommandFn: func(ctx context.Context, userID, userInput string, lang assistant.Language) (string, assistant.Intent) {
				return "Okay, watering the plants now.", assistant.IntentWaterPlants
			},
		},
		DeviceService: &mockDeviceService{
			listDevicesFn: func(ctx context.Context, userID string) ([]*model.Device, error) {
				return []*model.Device{{ID: "CLM-0001", UserID: userID, Name: "Balcony"}}, nil
			},
		},
		SensorService: &mockSensorService{
			snapshotForUserFn: func(ctx context.Context, userID string) (*model.SensorSnapshot, error) {
				return &model.SensorSnapshot{Humidity: 60, WaterLevel: 70, Temperature: 24, Timestamp: time.Now()}, nil
			},
		},
	})
}

// withCSRF はCSRFトークンのCookieとヘッダーを揃えて付与する。
func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	return req
}

// --- テスト ---

func TestRouter_Health_ReturnsOK(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestRouter_ProtectedRoute_NoSession_Returns401(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRouter_ProtectedRoute_WithSession_ReturnsOK(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_Signup_ReachableWithoutSession(t *testing.T) {
	router := newTestRouter(t)

	body := `{"username":"Alice","email":"alice@example.com","password":"secret123"}`
	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

func TestRouter_Signup_WithoutCSRFToken_Returns403(t *testing.T) {
	router := newTestRouter(t)

	body := `{"username":"Alice","email":"alice@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestRouter_Chat_WithSession_ReturnsReply(t *testing.T) {
	router := newTestRouter(t)

	body := `{"message":"water the plants","language":"en"}`
	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Reply != "Okay, watering the plants now." {
		t.Errorf("reply = %q", got.Reply)
	}
}

func TestRouter_ListDevices_WithSession_ReturnsDevices(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []deviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestRouter_SecurityHeaders_Applied(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want configured origin", got)
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// セッションミドルウェアの外なので素の404が返る
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
