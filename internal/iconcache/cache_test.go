package iconcache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image-data")

type fakeServer struct {
	*httptest.Server
	listCalls  atomic.Int32
	imageCalls atomic.Int32
}

func newFakeServer(t *testing.T, apps []Application) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/application", func(w http.ResponseWriter, r *http.Request) {
		fs.listCalls.Add(1)
		if r.URL.Query().Get("token") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apps)
	})
	mux.HandleFunc("/image/", func(w http.ResponseWriter, r *http.Request) {
		fs.imageCalls.Add(1)
		if r.URL.Query().Get("token") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(pngBytes)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func TestGetIcon_FetchesOnceThenHits(t *testing.T) {
	srv := newFakeServer(t, []Application{
		{ID: 1, Name: "other", Image: "image/other.png"},
		{ID: 42, Name: "backup", Image: "image/backup.png"},
	})
	dir := t.TempDir()
	cache := New(dir, srv.URL, "secret", srv.Client(), nil)

	path, err := cache.GetIcon(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "42.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	again, err := cache.GetIcon(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	assert.Equal(t, int32(1), srv.listCalls.Load())
	assert.Equal(t, int32(1), srv.imageCalls.Load())
}

func TestGetIcon_PreCachedMakesNoRequests(t *testing.T) {
	srv := newFakeServer(t, nil)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7.jpg"), pngBytes, 0644))

	cache := New(dir, srv.URL, "secret", srv.Client(), nil)
	path, err := cache.GetIcon(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "7.jpg"), path)
	assert.Zero(t, srv.listCalls.Load())
}

func TestGetIcon_UnknownApplication(t *testing.T) {
	srv := newFakeServer(t, []Application{{ID: 1, Image: "image/one.png"}})
	dir := t.TempDir()
	cache := New(dir, srv.URL, "secret", srv.Client(), nil)

	path, err := cache.GetIcon(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownApplication)
	assert.Equal(t, filepath.Join(dir, "99.jpg"), path)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.Zero(t, srv.imageCalls.Load())
}

func TestGetIcon_ServerErrorDegrades(t *testing.T) {
	srv := newFakeServer(t, []Application{{ID: 3, Image: "image/three.png"}})
	dir := t.TempDir()
	cache := New(dir, srv.URL, "wrong", srv.Client(), nil)

	path, err := cache.GetIcon(context.Background(), 3)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 3, fetchErr.AppID)
	assert.Equal(t, filepath.Join(dir, "3.jpg"), path)
	assert.NotContains(t, err.Error(), "wrong")
}

func TestGetIcon_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cache := New(t.TempDir(), base, "s3cr3t-token", nil, nil)
	path, err := cache.GetIcon(context.Background(), 5)
	require.Error(t, err)
	assert.NotEmpty(t, path)
	assert.NotContains(t, err.Error(), "s3cr3t-token")
}

func TestGetIcon_OversizedImageNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/application" {
			_, _ = w.Write([]byte(`[{"id":8,"name":"huge","image":"image/huge.png"}]`))
			return
		}
		_, _ = w.Write(make([]byte, maxImageSize+1000))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cache := New(dir, srv.URL, "secret", srv.Client(), nil)

	path, err := cache.GetIcon(context.Background(), 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "failed to download image", fetchErr.Message)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestGetIcon_ImageAtSizeLimitIsCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/application" {
			_, _ = w.Write([]byte(`[{"id":9,"name":"big","image":"image/big.png"}]`))
			return
		}
		_, _ = w.Write(make([]byte, maxImageSize))
	}))
	t.Cleanup(srv.Close)

	cache := New(t.TempDir(), srv.URL, "secret", srv.Client(), nil)

	path, err := cache.GetIcon(context.Background(), 9)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(maxImageSize), info.Size())
}

func TestGetIcon_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	t.Cleanup(srv.Close)

	cache := New(t.TempDir(), srv.URL, "secret", srv.Client(), nil)
	_, err := cache.GetIcon(context.Background(), 1)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "failed to list applications", fetchErr.Message)
}

func TestListApplications_SendsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		_, _ = w.Write([]byte(`[{"id":1,"name":"a","image":"static/defaultapp.png"}]`))
	}))
	t.Cleanup(srv.Close)

	cache := New(t.TempDir(), srv.URL+"/", "secret", srv.Client(), nil)
	cache.SetUserAgent("gotify-dunst/test")

	apps, err := cache.ListApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "static/defaultapp.png", apps[0].Image)
	assert.Equal(t, "gotify-dunst/test", ua)
}
