// Package loader resolves voucher image locators. File paths are read
// directly; http(s) URLs are fetched once and cached on disk keyed by the
// locator hash.
package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

// ErrSourceUnavailable signals that the locator could not be resolved to a
// decodable image: missing file, network failure or undecodable payload.
var ErrSourceUnavailable = errors.New("loader: source unavailable")

// Loader fetches and decodes voucher images.
type Loader struct {
	cacheDir string
	client   *http.Client
	log      *slog.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithCacheDir enables the URL fetch cache in the given directory.
func WithCacheDir(dir string) Option {
	return func(l *Loader) { l.cacheDir = dir }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) { l.client = client }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New creates a loader. Without WithCacheDir every URL load hits the
// network.
func New(opts ...Option) *Loader {
	l := &Loader{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsURL reports whether the locator is an http(s) URL.
func IsURL(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

// Load resolves the locator and decodes it. Relative paths resolve against
// the process working directory. Failures of any kind wrap
// ErrSourceUnavailable.
func (l *Loader) Load(ctx context.Context, locator string) (image.Image, error) {
	if locator == "" {
		return nil, fmt.Errorf("%w: empty locator", ErrSourceUnavailable)
	}
	if IsURL(locator) {
		return l.loadURL(ctx, locator)
	}
	return l.loadFile(locator)
}

func (l *Loader) loadFile(path string) (image.Image, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	return img, nil
}

func (l *Loader) loadURL(ctx context.Context, url string) (image.Image, error) {
	if l.cacheDir != "" {
		if img, ok := l.loadCached(url); ok {
			return img, nil
		}
	}

	data, err := l.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, url, err)
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, url, err)
	}

	if l.cacheDir != "" {
		if err := l.writeCache(url, data); err != nil {
			l.log.Warn("cache voucher image", "url", url, "error", err)
		}
	}
	return img, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// CacheKey returns the content-address of a locator used for cache files.
func CacheKey(locator string) string {
	sum := sha256.Sum256([]byte(locator))
	return hex.EncodeToString(sum[:])
}

func (l *Loader) cachePath(url string) string {
	return filepath.Join(l.cacheDir, CacheKey(url)+".img")
}

func (l *Loader) loadCached(url string) (image.Image, bool) {
	f, err := os.Open(l.cachePath(url))
	if err != nil {
		return nil, false
	}
	defer f.Close()
	img, _, err := utils.DecodeImage(f)
	if err != nil {
		l.log.Warn("decode cached voucher image", "url", url, "error", err)
		return nil, false
	}
	return img, true
}

func (l *Loader) writeCache(url string, data []byte) error {
	if err := os.MkdirAll(l.cacheDir, 0o750); err != nil {
		return err
	}
	path := l.cachePath(url)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
