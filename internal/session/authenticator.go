package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/clemmont/internal/auth"
	"github.com/hitoshi/clemmont/internal/model"
)

// GoogleFlow はGoogleサインインの対話フローを実行する関数。
// OAuthのリダイレクトを伴うため、実行環境側（ブラウザ起動等）が注入する。
type GoogleFlow func(ctx context.Context) (*Record, error)

// ServiceAuthenticator は認証サービスを直接呼び出すAuthenticator実装。
type ServiceAuthenticator struct {
	svc        *auth.Service
	googleFlow GoogleFlow
}

// NewServiceAuthenticator はServiceAuthenticatorを生成する。
// googleFlowはnil許容で、nilの場合Googleサインインは利用不可として扱う。
func NewServiceAuthenticator(svc *auth.Service, googleFlow GoogleFlow) *ServiceAuthenticator {
	return &ServiceAuthenticator{svc: svc, googleFlow: googleFlow}
}

// SignInWithEmail はメール/パスワードで認証しセッションレコードを返す。
func (a *ServiceAuthenticator) SignInWithEmail(ctx context.Context, email, password string) (*Record, error) {
	user, sess, err := a.svc.SignInWithEmail(ctx, email, password)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return toRecord(user, sess.ID), nil
}

// SignUpWithEmail はメール/パスワードでユーザーを登録しセッションレコードを返す。
func (a *ServiceAuthenticator) SignUpWithEmail(ctx context.Context, username, email, password string) (*Record, error) {
	user, sess, err := a.svc.SignUpWithEmail(ctx, username, email, password)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return toRecord(user, sess.ID), nil
}

// SignInWithGoogle は注入されたGoogleサインインフローを実行する。
func (a *ServiceAuthenticator) SignInWithGoogle(ctx context.Context) (*Record, error) {
	if a.googleFlow == nil {
		return nil, fmt.Errorf("%w: google sign-in is not available", ErrTransport)
	}
	rec, err := a.googleFlow(ctx)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return rec, nil
}

// SignOut はサーバー側のセッションを破棄する。
func (a *ServiceAuthenticator) SignOut(ctx context.Context, sessionID string) error {
	return a.svc.Logout(ctx, sessionID)
}

// Verify はセッションIDの有効性を確認し、有効ならレコードを返す。
func (a *ServiceAuthenticator) Verify(ctx context.Context, sessionID string) (*Record, error) {
	user, err := a.svc.GetCurrentUser(ctx, sessionID)
	if err != nil {
		return nil, nil
	}
	return toRecord(user, sessionID), nil
}

// mapAuthError は認証サービスのエラーをストアのタクソノミに変換する。
func mapAuthError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeInvalidCredentials:
			return ErrInvalidCredentials
		case model.ErrCodeEmailAlreadyInUse:
			return ErrEmailAlreadyInUse
		}
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// toRecord はユーザーとセッションIDからセッションレコードを構築する。
func toRecord(user *model.User, sessionID string) *Record {
	return &Record{
		SessionID: sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		PhotoURL:  user.PhotoURL,
	}
}

// compile-time interface check
var _ Authenticator = (*ServiceAuthenticator)(nil)
