package imagecache

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausmedia/embylatest/internal/config"
	"github.com/hausmedia/embylatest/internal/fetch"
	"github.com/hausmedia/embylatest/internal/log"
)

func testConfig(t *testing.T, serverURL, cacheDir string) config.Config {
	t.Helper()

	host := "emby.local"
	port := 8096
	if serverURL != "" {
		u, err := url.Parse(serverURL)
		require.NoError(t, err)
		h, p, err := net.SplitHostPort(u.Host)
		require.NoError(t, err)
		host = h
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}

	return config.Config{
		Server: config.ServerConfig{
			Host:          host,
			Port:          port,
			APIKey:        "key123",
			UserID:        "user1",
			MaxItems:      5,
			GroupEpisodes: true,
		},
		Cache: config.CacheConfig{
			Directory:     cacheDir,
			RetentionDays: 30,
		},
	}
}

func newTestStore(t *testing.T, serverURL, cacheDir string) *Store {
	t.Helper()
	store, err := New(testConfig(t, serverURL, cacheDir), fetch.New(log.NullLogger()), log.NullLogger())
	require.NoError(t, err)
	return store
}

// webCacheDir returns a cache directory under a /www/ web root.
func webCacheDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config", "www", "emby_images")
}

func jpgFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	require.NoError(t, err)
	return matches
}

func TestFilenameDeterministic(t *testing.T) {
	name := Filename("42", "Primary")
	assert.Equal(t, "42_Primary_7ab37ce5.jpg", name)
	assert.Equal(t, name, Filename("42", "Primary"))

	assert.Equal(t, "abc123_Backdrop_c5404151.jpg", Filename("abc123", "Backdrop"))
	assert.NotEqual(t, Filename("42", "Primary"), Filename("42", "Backdrop"))
}

func TestResolveImageURLCacheDisabled(t *testing.T) {
	store := newTestStore(t, "", "")

	got := store.ResolveImageURL("42", "Primary")
	want := "http://emby.local:8096/Items/42/Images/Primary?maxHeight=360&maxWidth=640&quality=90&api_key=key123"
	assert.Equal(t, want, got)

	// Repeated calls stay on the remote URL.
	assert.Equal(t, want, store.ResolveImageURL("42", "Primary"))
}

func TestNewCreatesCacheDirectory(t *testing.T) {
	dir := webCacheDir(t)
	newTestStore(t, "", dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveImageURLPopulatesInBackground(t *testing.T) {
	payload := []byte("fake jpeg bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Items/item1/Images/Primary", r.URL.Path)
		assert.Equal(t, "key123", r.URL.Query().Get("api_key"))
		w.Write(payload)
	}))
	defer srv.Close()

	dir := webCacheDir(t)
	store := newTestStore(t, srv.URL, dir)

	got := store.ResolveImageURL("item1", "Primary")
	assert.Equal(t, "/local/emby_images/item1_Primary_faa0712a.jpg", got)

	cached := filepath.Join(dir, "item1_Primary_faa0712a.jpg")
	require.Eventually(t, func() bool {
		_, err := os.Stat(cached)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "background population never produced the file")

	data, err := os.ReadFile(cached)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// A second resolve hits the cached file and returns the same path.
	assert.Equal(t, got, store.ResolveImageURL("item1", "Primary"))
	assert.Len(t, jpgFiles(t, dir), 1)
}

func TestResolveImageURLCoalescesDuplicateFetches(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	dir := webCacheDir(t)
	store := newTestStore(t, srv.URL, dir)

	// Both calls land before the first download can finish.
	store.ResolveImageURL("item1", "Primary")
	store.ResolveImageURL("item1", "Primary")
	close(release)

	require.Eventually(t, func() bool {
		return len(jpgFiles(t, dir)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), requests.Load())
}

func TestPopulateFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := webCacheDir(t)
	store := newTestStore(t, srv.URL, dir)

	store.ResolveImageURL("missing", "Primary")

	assert.Never(t, func() bool {
		return len(jpgFiles(t, dir)) > 0
	}, 500*time.Millisecond, 50*time.Millisecond, "a failed download must not leave a cache file")
}

func TestResolveImageURLWithoutWebRootFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "emby_images") // no /www/ segment
	store := newTestStore(t, srv.URL, dir)

	got := store.ResolveImageURL("42", "Primary")
	assert.Equal(t, fmt.Sprintf("%s/Items/42/Images/Primary?maxHeight=360&maxWidth=640&quality=90&api_key=key123", srv.URL), got)
}

func writeAgedFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestNewSweepsExpiredEntries(t *testing.T) {
	dir := webCacheDir(t)
	require.NoError(t, os.MkdirAll(dir, 0755))

	old := filepath.Join(dir, "old_Primary_00000000.jpg")
	fresh := filepath.Join(dir, "fresh_Primary_11111111.jpg")
	foreign := filepath.Join(dir, "notes.txt")
	writeAgedFile(t, old, 40*24*time.Hour)
	writeAgedFile(t, fresh, 24*time.Hour)
	writeAgedFile(t, foreign, 40*24*time.Hour)

	newTestStore(t, "", dir)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, foreign, "only .jpg entries may be evicted")
}

func TestSweepExpiredCutoff(t *testing.T) {
	dir := webCacheDir(t)
	store := newTestStore(t, "", dir)

	expired := filepath.Join(dir, "a_Primary_aaaaaaaa.jpg")
	kept := filepath.Join(dir, "b_Primary_bbbbbbbb.jpg")
	writeAgedFile(t, expired, 31*24*time.Hour)
	writeAgedFile(t, kept, 29*24*time.Hour)

	deleted := store.SweepExpired(time.Now())

	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, expired)
	assert.FileExists(t, kept)
}

func TestSweepExpiredCacheDisabled(t *testing.T) {
	store := newTestStore(t, "", "")
	assert.Zero(t, store.SweepExpired(time.Now()))
}
