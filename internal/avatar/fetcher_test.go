package avatar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// mockSSRFValidator はテスト用のSSRFValidator。
type mockSSRFValidator struct {
	validateURLFn func(rawURL string) error
}

func (m *mockSSRFValidator) ValidateURL(rawURL string) error {
	if m.validateURLFn != nil {
		return m.validateURLFn(rawURL)
	}
	return nil
}

func (m *mockSSRFValidator) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

var _ SSRFValidator = (*mockSSRFValidator)(nil)

func TestFetch_ValidImage_ReturnsDataAndMime(t *testing.T) {
	pngData := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFValidator{})

	data, mime, err := fetcher.Fetch(context.Background(), server.URL+"/photo.png")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if mime != "image/png" {
		t.Errorf("mime = %q, want %q", mime, "image/png")
	}
	if len(data) != len(pngData) {
		t.Errorf("data length = %d, want %d", len(data), len(pngData))
	}
}

func TestFetch_ContentTypeWithCharset_ExtractsMediaType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=utf-8")
		w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFValidator{})

	_, mime, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want %q", mime, "image/jpeg")
	}
}

func TestFetch_NonImageContentType_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFValidator{})

	if _, _, err := fetcher.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for non-image content type")
	}
}

func TestFetch_OversizedImage_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte(strings.Repeat("x", maxAvatarSize+1)))
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFValidator{})

	if _, _, err := fetcher.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for oversized image")
	}
}

func TestFetch_HTTPError_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFValidator{})

	if _, _, err := fetcher.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetch_SSRFBlocked_ReturnsError(t *testing.T) {
	guard := &mockSSRFValidator{
		validateURLFn: func(rawURL string) error {
			return errors.New("blocked IP address")
		},
	}
	fetcher := NewFetcher(guard)

	if _, _, err := fetcher.Fetch(context.Background(), "http://169.254.169.254/latest/meta-data"); err == nil {
		t.Fatal("expected error for blocked URL")
	}
}

func TestFetch_EmptyURL_ReturnsError(t *testing.T) {
	fetcher := NewFetcher(nil)

	if _, _, err := fetcher.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
