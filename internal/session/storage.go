package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage はセッション永続化のキーバリューインターフェース。
// 固定キーの下にJSONシリアライズされたセッションレコードを1件保存する。
type Storage interface {
	// Get は指定キーの値を取得する。キーが存在しない場合はfalseを返す。
	Get(key string) ([]byte, bool, error)
	// Set は指定キーに値を保存する。
	Set(key string, value []byte) error
	// Delete は指定キーを削除する。キーが存在しなくてもエラーにしない。
	Delete(key string) error
}

// FileStorage はファイルベースのStorage実装。
// ディレクトリ内にキー名のJSONファイルとして保存する。
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

// NewFileStorage はFileStorageを生成する。ディレクトリがなければ作成する。
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Get は指定キーのファイルを読み込む。
func (s *FileStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session file: %w", err)
	}
	return data, true, nil
}

// Set は指定キーのファイルに値を書き込む。
// 一時ファイルに書いてからリネームすることで、途中で中断されても
// 壊れたレコードが残らないようにする。
func (s *FileStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("failed to rename session file: %w", err)
	}
	return nil
}

// Delete は指定キーのファイルを削除する。
func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// MemoryStorage はインメモリのStorage実装。テストで使用する。
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Get は指定キーの値を取得する。
func (s *MemoryStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set は指定キーに値を保存する。
func (s *MemoryStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

// Delete は指定キーを削除する。
func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// compile-time interface checks
var _ Storage = (*FileStorage)(nil)
var _ Storage = (*MemoryStorage)(nil)

// encodeRecord はセッションレコードをJSONにシリアライズする。
func encodeRecord(rec *Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session record: %w", err)
	}
	return data, nil
}

// decodeRecord はJSONからセッションレコードを復元する。
func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	if rec.SessionID == "" || rec.UserID == "" {
		return nil, fmt.Errorf("incomplete session record")
	}
	return &rec, nil
}
