// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはメール/パスワード登録ユーザーのみ保持する（bcrypt）。
// AvatarData/AvatarMimeはGoogleサインイン時に取得したプロフィール画像。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	PhotoURL     string
	AvatarData   []byte
	AvatarMime   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// メール/パスワード登録ユーザーにはレコードが存在しない。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
