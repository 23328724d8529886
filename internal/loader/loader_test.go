package loader

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pngBytes(t, 8, 6), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeTestImage(t, t.TempDir(), "voucher.png")
	img, err := New().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoad_UndecodablePayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-image.png")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))
	_, err := New().Load(context.Background(), path)
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoad_EmptyLocator(t *testing.T) {
	_, err := New().Load(context.Background(), "")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoad_URLFetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes(t, 8, 6))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	l := New(WithCacheDir(cacheDir))
	ctx := context.Background()

	img, err := l.Load(ctx, srv.URL+"/voucher.png")
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, int32(1), hits.Load())

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CacheKey(srv.URL+"/voucher.png")+".img", entries[0].Name())

	// Second load is served from cache without network I/O.
	_, err = l.Load(ctx, srv.URL+"/voucher.png")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestLoad_URLErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(WithCacheDir(t.TempDir())).Load(context.Background(), srv.URL+"/missing.png")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoad_URLWithoutCacheDirAlwaysFetches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes(t, 8, 6))
	}))
	defer srv.Close()

	l := New()
	ctx := context.Background()
	_, err := l.Load(ctx, srv.URL)
	require.NoError(t, err)
	_, err = l.Load(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestLoad_CorruptCacheFallsBackToFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes(t, 8, 6))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	url := srv.URL + "/v.png"
	require.NoError(t, os.WriteFile(
		filepath.Join(cacheDir, CacheKey(url)+".img"), []byte("garbage"), 0o600))

	img, err := New(WithCacheDir(cacheDir)).Load(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestCacheKey_Deterministic(t *testing.T) {
	assert.Equal(t, CacheKey("http://a/b.png"), CacheKey("http://a/b.png"))
	assert.NotEqual(t, CacheKey("http://a/b.png"), CacheKey("http://a/c.png"))
	assert.Len(t, CacheKey("x"), 64)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "b.png")
	writeTestImage(t, dir, "a.jpg")
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o750))
	writeTestImage(t, sub, "c.jpeg")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	paths, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), paths[0])
	assert.Equal(t, filepath.Join(dir, "b.png"), paths[1])
	assert.Equal(t, filepath.Join(sub, "c.jpeg"), paths[2])
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrSourceUnavailable)
}
