// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/clemmont/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUpWithEmail(ctx context.Context, username, email, password string) (*model.User, *model.Session, error)
	SignInWithEmail(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthMetrics は認証ハンドラーが記録するメトリクスのインターフェース。
type AuthMetrics interface {
	RecordAuthAttempt(outcome string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はメール/パスワード認証とGoogle OAuth認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics AuthMetrics
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnil許容。
func NewAuthHandler(service AuthServiceInterface, metrics AuthMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// signupRequest はメール/パスワード登録リクエストのボディ。
type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はメール/パスワードログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は認証成功レスポンスのボディ。
type authResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

// Signup はメール/パスワードでユーザーを登録する。
// POST /api/auth/signup
// 成功時は201でユーザー情報を返し、セッションCookieを設定する。
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldsError("username", "email", "password"))
		return
	}

	missing := missingFields(map[string]string{
		"username": req.Username,
		"email":    req.Email,
		"password": req.Password,
	})
	if len(missing) > 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldsError(missing...))
		return
	}

	user, session, err := h.service.SignUpWithEmail(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.recordAuthAttempt("failure")
		handleServiceError(w, err)
		return
	}

	h.recordAuthAttempt("success")
	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusCreated, authResponse{
		Message: "User registered successfully",
		User:    toUserResponse(user),
	})
}

// Login はメール/パスワードで認証する。
// POST /api/auth/login
// 認証失敗時はユーザー不存在とパスワード不一致を区別せず401を返す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldsError("email", "password"))
		return
	}

	missing := missingFields(map[string]string{
		"email":    req.Email,
		"password": req.Password,
	})
	if len(missing) > 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldsError(missing...))
		return
	}

	user, session, err := h.service.SignInWithEmail(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordAuthAttempt("failure")
		handleServiceError(w, err)
		return
	}

	h.recordAuthAttempt("success")
	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, authResponse{
		Message: "Signed in successfully",
		User:    toUserResponse(user),
	})
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.service.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		h.recordAuthAttempt("failure")
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.recordAuthAttempt("success")

	// 4. セッションCookieを設定（HTTP Only）
	h.setSessionCookie(w, session.ID)

	// 5. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// セッションCookieの取得
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッションをDBから削除
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeUnauthorized(w)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			slog.Warn("failed to get current user", slog.String("error", err.Error()))
			writeUnauthorized(w)
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// setSessionCookie はセッションIDをHTTP Only Cookieに設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// recordAuthAttempt は認証試行のメトリクスを記録する。
func (h *AuthHandler) recordAuthAttempt(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordAuthAttempt(outcome)
	}
}

// missingFields は値が空のフィールド名を列挙する。
func missingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range []string{"username", "email", "password"} {
		value, ok := fields[name]
		if ok && value == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
