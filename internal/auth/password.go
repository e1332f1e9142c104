package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost はパスワードハッシュ化のコストパラメータ。
const bcryptCost = 10

// PasswordHasher はパスワードのハッシュ化と検証のインターフェースを定義する。
type PasswordHasher interface {
	// Hash は平文パスワードをハッシュ化する。
	Hash(password string) (string, error)
	// Compare はハッシュと平文パスワードを比較する。
	// 一致しない場合はエラーを返す。
	Compare(hash, password string) error
}

// bcryptHasher はbcryptによるPasswordHasherの実装。
type bcryptHasher struct{}

// NewPasswordHasher はbcryptベースのPasswordHasherを生成する。
func NewPasswordHasher() *bcryptHasher {
	return &bcryptHasher{}
}

// Hash は平文パスワードをbcryptでハッシュ化する。
func (h *bcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare はbcryptハッシュと平文パスワードを比較する。
func (h *bcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// compile-time interface check
var _ PasswordHasher = (*bcryptHasher)(nil)
