package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"citelink/internal/classify"
	"citelink/internal/config"
)

// Fetched describes a cached page body.
type Fetched struct {
	// Path is the on-disk cache location of the body.
	Path string
	// ContentType is the response's media type.
	ContentType string
	// FromCache reports whether the body was served from disk without a
	// network round trip.
	FromCache bool
	Size      int64
}

// Fetcher retrieves page content and caches bodies on disk, keyed by URL
// hash. Cached entries are reused across runs; the cache is best-effort and
// safe to delete.
type Fetcher struct {
	cacheDir   string
	userAgent  string
	maxBody    int64
	httpClient *http.Client
}

// NewFetcher builds a fetcher from configuration.
func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		cacheDir:  cfg.Paths.ContentCacheDir,
		userAgent: cfg.Fetch.UserAgent,
		maxBody:   cfg.Fetch.MaxBodyBytes,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		},
	}
}

// WithHTTPClient overrides the fetcher's HTTP client.
func (f *Fetcher) WithHTTPClient(client *http.Client) *Fetcher {
	if client != nil {
		f.httpClient = client
	}
	return f
}

// cachePath derives the deterministic cache location for a URL.
func (f *Fetcher) cachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:16]))
}

// Fetch returns the page body for a URL, downloading it when the cache has
// no entry. Unreachable hosts surface as network errors; HTTP failures
// surface as StatusError for classification.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Fetched, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("url must not be empty")
	}

	path := f.cachePath(rawURL)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		contentType, _ := os.ReadFile(path + ".type")
		return &Fetched{
			Path:        path,
			ContentType: strings.TrimSpace(string(contentType)),
			FromCache:   true,
			Size:        info.Size(),
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, classify.Wrap(classify.ErrValidation, "scan", "fetch", "malformed url", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, classify.Wrap(classify.ErrNetwork, "scan", "fetch", "GET "+rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &classify.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(f.cacheDir, ".download-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxBody))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, classify.Wrap(classify.ErrNetwork, "scan", "fetch", "read body", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("store cached body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.TrimSpace(contentType)
	if err := os.WriteFile(path+".type", []byte(contentType), 0o644); err != nil {
		return nil, fmt.Errorf("store content type: %w", err)
	}

	return &Fetched{Path: path, ContentType: contentType, Size: size}, nil
}

// Evict drops the cached body for a URL, if any.
func (f *Fetcher) Evict(rawURL string) error {
	path := f.cachePath(rawURL)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(path + ".type"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
