package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/clemmont/internal/model"
	"github.com/hitoshi/clemmont/internal/repository"
	"github.com/hitoshi/clemmont/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
	updateAvatarFn       func(ctx context.Context, userID string, avatarData []byte, avatarMime string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) UpdateAvatar(ctx context.Context, userID string, avatarData []byte, avatarMime string) error {
	if m.updateAvatarFn != nil {
		return m.updateAvatarFn(ctx, userID, avatarData, avatarMime)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

type mockAvatarFetcher struct {
	fetchFn func(ctx context.Context, rawURL string) ([]byte, string, error)
}

func (m *mockAvatarFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, rawURL)
	}
	return nil, "", nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ AvatarFetcher = (*mockAvatarFetcher)(nil)

// newTestService はテスト用のServiceを生成する。
func newTestService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	avatars AvatarFetcher,
) *Service {
	return NewService(
		oauth, userRepo, identRepo, sessionRepo,
		NewPasswordHasher(), avatars, security.NewTextSanitizer(),
		ServiceConfig{SessionMaxAge: 86400},
	)
}

// --- テスト ---

func TestSignUpWithEmail_NewUser_CreatesUserAndSession(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, nil // 未登録
		},
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}

	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := newTestService(nil, userRepo, nil, sessionRepo, nil)

	user, session, err := svc.SignUpWithEmail(ctx, "Test User", "test@example.com", "secret-password")
	if err != nil {
		t.Fatalf("SignUpWithEmail() error = %v", err)
	}

	if user == nil || session == nil {
		t.Fatal("expected non-nil user and session")
	}
	if createdUser == nil {
		t.Fatal("expected user to be created")
	}
	if createdUser.Email != "test@example.com" {
		t.Errorf("user email = %q, want %q", createdUser.Email, "test@example.com")
	}
	if createdUser.Username != "Test User" {
		t.Errorf("user username = %q, want %q", createdUser.Username, "Test User")
	}

	// パスワードは平文で保存されないこと
	if createdUser.PasswordHash == "" || createdUser.PasswordHash == "secret-password" {
		t.Errorf("password must be stored hashed, got %q", createdUser.PasswordHash)
	}

	if createdSession == nil {
		t.Fatal("expected session to be created")
	}
	if createdSession.UserID != createdUser.ID {
		t.Errorf("session userID = %q, want %q", createdSession.UserID, createdUser.ID)
	}
}

func TestSignUpWithEmail_DuplicateEmail_ReturnsEmailAlreadyInUse(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "existing-id", Email: email}, nil
		},
		createFn: func(ctx context.Context, user *model.User) error {
			t.Fatal("Create must not be called for duplicate email")
			return nil
		},
	}

	svc := newTestService(nil, userRepo, nil, nil, nil)

	_, _, err := svc.SignUpWithEmail(ctx, "Dup User", "dup@example.com", "password123")
	if err == nil {
		t.Fatal("expected error for duplicate email")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeEmailAlreadyInUse {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeEmailAlreadyInUse)
	}
}

func TestSignUpWithEmail_SanitizesUsername(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}

	svc := newTestService(nil, userRepo, nil, &mockSessionRepo{}, nil)

	_, _, err := svc.SignUpWithEmail(ctx, "  <script>alert(1)</script>Alice  ", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUpWithEmail() error = %v", err)
	}

	if createdUser.Username != "Alice" {
		t.Errorf("sanitized username = %q, want %q", createdUser.Username, "Alice")
	}
}

func TestSignInWithEmail_ValidCredentials_CreatesSession(t *testing.T) {
	ctx := context.Background()

	hasher := NewPasswordHasher()
	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	var createdSession *model.Session

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := newTestService(nil, userRepo, nil, sessionRepo, nil)

	user, session, err := svc.SignInWithEmail(ctx, "user@example.com", "correct-password")
	if err != nil {
		t.Fatalf("SignInWithEmail() error = %v", err)
	}

	if user == nil || session == nil {
		t.Fatal("expected non-nil user and session")
	}
	if createdSession == nil || createdSession.UserID != "user-1" {
		t.Errorf("expected session for user-1, got %+v", createdSession)
	}
}

func TestSignInWithEmail_WrongPassword_ReturnsInvalidCredentials(t *testing.T) {
	ctx := context.Background()

	hasher := NewPasswordHasher()
	hash, _ := hasher.Hash("correct-password")

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}

	svc := newTestService(nil, userRepo, nil, nil, nil)

	_, _, err := svc.SignInWithEmail(ctx, "user@example.com", "wrong-password")
	assertInvalidCredentials(t, err)
}

func TestSignInWithEmail_UnknownUser_ReturnsInvalidCredentials(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, nil
		},
	}

	svc := newTestService(nil, userRepo, nil, nil, nil)

	_, _, err := svc.SignInWithEmail(ctx, "nobody@example.com", "whatever")
	assertInvalidCredentials(t, err)
}

func TestSignInWithEmail_OAuthOnlyUser_ReturnsInvalidCredentials(t *testing.T) {
	ctx := context.Background()

	// Googleサインイン登録ユーザーにはパスワードハッシュがない
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: ""}, nil
		},
	}

	svc := newTestService(nil, userRepo, nil, nil, nil)

	_, _, err := svc.SignInWithEmail(ctx, "oauth@example.com", "whatever")
	assertInvalidCredentials(t, err)
}

// assertInvalidCredentials はエラーがINVALID_CREDENTIALSであることを検証する。
func assertInvalidCredentials(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestHandleCallback_NewUser_CreatesUserIdentityAndStoresAvatar(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdIdentity *model.Identity
	var storedAvatarUserID string
	var storedAvatarMime string

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-123",
				Email:          "test@example.com",
				Name:           "Test User",
				PictureURL:     "https://lh3.googleusercontent.com/photo.jpg",
				Provider:       "google",
			}, nil
		},
	}

	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			createdIdentity = identity
			return nil
		},
		updateAvatarFn: func(ctx context.Context, userID string, avatarData []byte, avatarMime string) error {
			storedAvatarUserID = userID
			storedAvatarMime = avatarMime
			return nil
		},
	}

	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return nil, nil // 新規ユーザー
		},
	}

	avatars := &mockAvatarFetcher{
		fetchFn: func(ctx context.Context, rawURL string) ([]byte, string, error) {
			return []byte{0x89, 0x50, 0x4e, 0x47}, "image/png", nil
		},
	}

	svc := newTestService(provider, userRepo, identityRepo, &mockSessionRepo{}, avatars)

	session, err := svc.HandleCallback(ctx, "auth-code-123")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session == nil || session.ID == "" {
		t.Fatal("expected non-empty session")
	}

	if createdUser == nil {
		t.Fatal("expected user to be created")
	}
	if createdUser.Username != "Test User" {
		t.Errorf("user username = %q, want %q", createdUser.Username, "Test User")
	}
	if createdUser.PhotoURL != "https://lh3.googleusercontent.com/photo.jpg" {
		t.Errorf("user photoURL = %q", createdUser.PhotoURL)
	}

	if createdIdentity == nil {
		t.Fatal("expected identity to be created")
	}
	if createdIdentity.Provider != "google" {
		t.Errorf("identity provider = %q, want %q", createdIdentity.Provider, "google")
	}

	if storedAvatarUserID != createdUser.ID {
		t.Errorf("avatar stored for user %q, want %q", storedAvatarUserID, createdUser.ID)
	}
	if storedAvatarMime != "image/png" {
		t.Errorf("avatar mime = %q, want %q", storedAvatarMime, "image/png")
	}
}

func TestHandleCallback_AvatarFetchFailure_DoesNotFailLogin(t *testing.T) {
	ctx := context.Background()

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-456",
				Email:          "noavatar@example.com",
				Name:           "No Avatar",
				PictureURL:     "https://lh3.googleusercontent.com/broken.jpg",
				Provider:       "google",
			}, nil
		},
	}

	identityRepo := &mockIdentityRepo{}
	avatars := &mockAvatarFetcher{
		fetchFn: func(ctx context.Context, rawURL string) ([]byte, string, error) {
			return nil, "", errors.New("fetch failed")
		},
	}

	svc := newTestService(provider, &mockUserRepo{}, identityRepo, &mockSessionRepo{}, avatars)

	session, err := svc.HandleCallback(ctx, "auth-code-456")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session == nil {
		t.Fatal("expected non-nil session despite avatar fetch failure")
	}
}

func TestHandleCallback_ExistingUser_LogsInAndCreatesSession(t *testing.T) {
	ctx := context.Background()

	existingUserID := "existing-user-id-456"
	var createdSession *model.Session

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-789",
				Email:          "existing@example.com",
				Name:           "Existing User",
				Provider:       "google",
			}, nil
		},
	}

	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return &model.Identity{
				ID:             "identity-id-1",
				UserID:         existingUserID,
				Provider:       "google",
				ProviderUserID: "google-user-789",
			}, nil
		},
	}

	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			t.Fatal("CreateWithIdentity must not be called for existing user")
			return nil
		},
	}

	svc := newTestService(provider, userRepo, identityRepo, sessionRepo, nil)

	session, err := svc.HandleCallback(ctx, "auth-code-existing")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if session == nil || session.UserID != existingUserID {
		t.Fatalf("expected session for %q, got %+v", existingUserID, session)
	}
	if createdSession == nil || createdSession.UserID != existingUserID {
		t.Errorf("expected session record for %q, got %+v", existingUserID, createdSession)
	}
}

func TestHandleCallback_OAuthError_ReturnsError(t *testing.T) {
	ctx := context.Background()

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return nil, errors.New("oauth exchange failed")
		},
	}

	svc := newTestService(provider, nil, nil, nil, nil)

	_, err := svc.HandleCallback(ctx, "bad-code")
	if err == nil {
		t.Fatal("expected error from HandleCallback")
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	ctx := context.Background()

	var deletedSessionID string

	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	}

	svc := newTestService(nil, nil, nil, sessionRepo, nil)

	if err := svc.Logout(ctx, "session-to-delete"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if deletedSessionID != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-delete")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	ctx := context.Background()

	userID := "user-id-123"

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:        "session-valid",
				UserID:    userID,
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: userID, Email: "user@example.com", Username: "Test User"}, nil
		},
	}

	svc := newTestService(nil, userRepo, nil, sessionRepo, nil)

	user, err := svc.GetCurrentUser(ctx, "session-valid")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user == nil || user.ID != userID {
		t.Fatalf("expected user %q, got %+v", userID, user)
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsError(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			// 期限切れセッション -> リポジトリはnilを返す
			return nil, nil
		},
	}

	svc := newTestService(nil, nil, nil, sessionRepo, nil)

	if _, err := svc.GetCurrentUser(context.Background(), "expired-session"); err == nil {
		t.Fatal("expected error for expired session")
	}
}
