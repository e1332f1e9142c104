// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// MessageとActionは英語の基準文で、UI側がコードをキーにローカライズする。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, device, assistant, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingFields        = "MISSING_FIELDS"
	ErrCodeEmailAlreadyInUse    = "EMAIL_ALREADY_IN_USE"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeDeviceNotFound       = "DEVICE_NOT_FOUND"
	ErrCodeDeviceAlreadyLinked  = "DEVICE_ALREADY_LINKED"
	ErrCodeDeviceLimit          = "DEVICE_LIMIT"
	ErrCodeInvalidLanguage      = "INVALID_LANGUAGE"
	ErrCodeAssistantUnavailable = "ASSISTANT_UNAVAILABLE"
)

// NewMissingFieldsError は必須フィールド欠落エラーを生成する。
func NewMissingFieldsError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  fmt.Sprintf("Missing fields: %v", fields),
		Category: "validation",
		Action:   "Fill in all required fields and try again.",
	}
}

// NewEmailAlreadyInUseError はメールアドレス重複エラーを生成する。
// 登録済みレコードは変更されない。
func NewEmailAlreadyInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyInUse,
		Message:  "User already exists",
		Category: "auth",
		Action:   "Sign in instead, or use a different email address.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// アカウント列挙を防ぐため、ユーザー不存在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
		Action:   "Check your credentials and try again.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewDeviceNotFoundError はデバイス未検出エラーを生成する。
func NewDeviceNotFoundError(deviceID string) *APIError {
	return &APIError{
		Code:     ErrCodeDeviceNotFound,
		Message:  fmt.Sprintf("Device not found: %s", deviceID),
		Category: "device",
		Action:   "Check the device ID on the device label.",
	}
}

// NewDeviceAlreadyLinkedError はデバイス重複リンクエラーを生成する。
func NewDeviceAlreadyLinkedError(deviceID string) *APIError {
	return &APIError{
		Code:     ErrCodeDeviceAlreadyLinked,
		Message:  fmt.Sprintf("Device is already linked: %s", deviceID),
		Category: "device",
		Action:   "Each device can be linked to one account at a time.",
	}
}

// NewDeviceLimitError はデバイス上限エラーを生成する。
func NewDeviceLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeDeviceLimit,
		Message:  fmt.Sprintf("Device limit reached (%d).", limit),
		Category: "device",
		Action:   "Unlink an unused device before linking a new one.",
	}
}

// NewAssistantUnavailableError はアシスタント利用不可エラーを生成する。
func NewAssistantUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAssistantUnavailable,
		Message:  "Assistant is temporarily unavailable.",
		Category: "assistant",
		Action:   "Try again in a few minutes.",
	}
}

// NewInvalidLanguageError は未対応言語エラーを生成する。
func NewInvalidLanguageError(lang string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLanguage,
		Message:  fmt.Sprintf("Unsupported language: %s", lang),
		Category: "validation",
		Action:   "Use one of: en, es.",
	}
}
