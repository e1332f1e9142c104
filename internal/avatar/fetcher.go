// Package avatar は外部IdPのプロフィール画像取得を提供する。
package avatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxAvatarSize はプロフィール画像の最大サイズ（2MB）。
const maxAvatarSize = 2 * 1024 * 1024

// fetchTimeout はプロフィール画像取得のタイムアウト。
const fetchTimeout = 5 * time.Second

// SSRFValidator はSSRF防止機能のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FetcherService はプロフィール画像取得のインターフェース。
type FetcherService interface {
	// Fetch は指定URLから画像データとMIMEタイプを取得する。
	// SSRFブロック、サイズ超過、画像以外のContent-Typeはエラーを返す。
	Fetch(ctx context.Context, rawURL string) (data []byte, mimeType string, err error)
}

// Fetcher はプロフィール画像取得機能の実装。
type Fetcher struct {
	ssrfGuard SSRFValidator
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator) *Fetcher {
	return &Fetcher{
		ssrfGuard: ssrfGuard,
	}
}

// Fetch は指定URLからプロフィール画像を取得する。
// 呼び出し元（認証サービス）はエラーをログ記録のみで扱い、ログインは継続する。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if rawURL == "" {
		return nil, "", fmt.Errorf("empty avatar URL")
	}

	// SSRF検証
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(rawURL); err != nil {
			return nil, "", fmt.Errorf("avatar URL blocked: %w", err)
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create avatar request: %w", err)
	}
	req.Header.Set("User-Agent", "Clemmont/1.0 Irrigation Assistant")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("avatar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("avatar fetch failed with status %d", resp.StatusCode)
	}

	// レスポンスボディを読み込み（最大2MB）
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read avatar response: %w", err)
	}

	if int64(len(body)) > maxAvatarSize {
		return nil, "", fmt.Errorf("avatar exceeds size limit: %d bytes", len(body))
	}

	contentType := resp.Header.Get("Content-Type")
	mimeType := extractMimeType(contentType)

	if !isImageMime(mimeType) {
		return nil, "", fmt.Errorf("avatar is not an image: %s", contentType)
	}

	return body, mimeType, nil
}

// getHTTPClient はHTTPクライアントを取得する。
func (f *Fetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(fetchTimeout, maxAvatarSize)
	}
	return &http.Client{Timeout: fetchTimeout}
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ FetcherService = (*Fetcher)(nil)
