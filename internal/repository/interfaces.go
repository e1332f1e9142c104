// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/clemmont/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はメール/パスワード登録ユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// Googleサインインによる初回登録で使用する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateAvatar はユーザーのプロフィール画像データを更新する。
	UpdateAvatar(ctx context.Context, userID string, avatarData []byte, avatarMime string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、devicesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// DeviceRepository はデバイスデータの永続化インターフェース。
type DeviceRepository interface {
	// FindByID は指定IDのデバイスを取得する。見つからない場合はnilを返す。
	// 所有者に関わらず検索する（リンク済み判定に使用）。
	FindByID(ctx context.Context, id string) (*model.Device, error)

	// ListByUserID はユーザーのデバイス一覧をリンク日時の昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Device, error)

	// CountByUserID はユーザーのリンク済みデバイス数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// ListAll は全デバイスを返す。サンプリングワーカーで使用する。
	ListAll(ctx context.Context) ([]*model.Device, error)

	// Create はデバイスを作成する。
	Create(ctx context.Context, device *model.Device) error

	// Delete は指定IDのデバイスを削除する。
	Delete(ctx context.Context, id string) error
}

// ReadingRepository はセンサー計測値の永続化インターフェース。
type ReadingRepository interface {
	// Create は計測値を1件記録する。
	Create(ctx context.Context, reading *model.SensorReading) error

	// LatestByDeviceID はデバイスの最新計測値を取得する。見つからない場合はnilを返す。
	LatestByDeviceID(ctx context.Context, deviceID string) (*model.SensorReading, error)

	// ListByDeviceSince はデバイスの指定時刻以降の計測値をrecorded_at昇順で返す。
	ListByDeviceSince(ctx context.Context, deviceID string, since time.Time) ([]*model.SensorReading, error)

	// DeleteOlderThan は指定時刻より古い計測値を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
