// Package imagecache mirrors Emby item artwork to a local directory so
// the host's web server can serve it instead of proxying the media
// server. The filesystem is the source of truth: no entry records are
// held in memory, and a cache miss is answered with the local path
// anyway while a background fetch populates it (eventual availability,
// not strong consistency).
//
// One Store owns one directory. Several stores sharing a directory is
// unsupported and undefined.
package imagecache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hausmedia/embylatest/internal/config"
	"github.com/hausmedia/embylatest/internal/fetch"
)

// cacheSuffix marks files the retention sweep is allowed to delete.
const cacheSuffix = ".jpg"

// Store caches item artwork on disk with age-based eviction.
type Store struct {
	dir           string
	retentionDays int
	baseURL       string
	apiKey        string
	fetcher       *fetch.Fetcher
	logger        *slog.Logger

	// inflight holds filenames with an active background download so
	// a second resolve for the same missing key does not spawn a
	// duplicate fetch.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a Store. With no cache directory configured the store
// runs in pass-through mode and never touches the filesystem.
// Otherwise the directory is created (parents included) and expired
// entries are swept once, synchronously. Directory creation failure is
// fatal: the store cannot work without a writable directory it was
// explicitly configured to use.
func New(cfg config.Config, f *fetch.Fetcher, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if f == nil {
		f = fetch.New(logger)
	}

	s := &Store{
		dir:           cfg.Cache.Directory,
		retentionDays: cfg.Cache.RetentionDays,
		baseURL:       cfg.BaseURL(),
		apiKey:        cfg.Server.APIKey,
		fetcher:       f,
		logger:        logger,
		inflight:      make(map[string]struct{}),
	}

	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", s.dir, err)
		}
		logger.Info("image cache directory ready", "dir", s.dir)
		s.SweepExpired(time.Now())
	}

	return s, nil
}

// Filename derives the deterministic cache name for an (itemID,
// imageType) pair: "{id}_{type}_{hash8}.jpg". Repeated calls must
// produce the same name so an existing entry is recognized.
func Filename(itemID, imageType string) string {
	base := itemID + "_" + imageType
	sum := md5.Sum([]byte(base))
	return base + "_" + hex.EncodeToString(sum[:])[:8] + cacheSuffix
}

// ResolveImageURL returns a URL the host can render for an item's
// artwork. In pass-through mode that is the remote Emby URL. With a
// cache directory it is the local /local/... path, and a missing entry
// triggers a background download without blocking; the caller may see
// a brief 404 window until the file lands. When the directory is not
// under a /www/ web root the remote URL is returned instead.
func (s *Store) ResolveImageURL(itemID, imageType string) string {
	remote := s.remoteURL(itemID, imageType)
	if s.dir == "" {
		return remote
	}

	filename := Filename(itemID, imageType)
	if _, err := os.Stat(filepath.Join(s.dir, filename)); err != nil {
		s.populate(remote, filename)
	}

	local, ok := ServablePath(s.dir, filename)
	if !ok {
		s.logger.Warn("cache directory is not under a /www/ web root, serving remote URL", "dir", s.dir)
		return remote
	}
	return local
}

func (s *Store) remoteURL(itemID, imageType string) string {
	return fmt.Sprintf("%s/Items/%s/Images/%s?maxHeight=360&maxWidth=640&quality=90&api_key=%s",
		s.baseURL, itemID, imageType, s.apiKey)
}

// populate schedules a fire-and-forget download for filename unless
// one is already running. Success or failure is never surfaced to the
// resolve caller, which has already returned.
func (s *Store) populate(remoteURL, filename string) {
	s.mu.Lock()
	if _, busy := s.inflight[filename]; busy {
		s.mu.Unlock()
		return
	}
	s.inflight[filename] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, filename)
			s.mu.Unlock()
		}()
		s.download(remoteURL, filename)
	}()
}

// download fetches the image bytes and moves them into place. Writes
// go to a temp name first and are renamed on success, so a concurrent
// reader never observes a partially written file as a cache hit. Any
// failure is logged and leaves no file behind; there is no retry.
func (s *Store) download(remoteURL, filename string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetch.Timeout)
	defer cancel()

	status, body, err := s.fetcher.GetStream(ctx, remoteURL)
	if err != nil {
		s.logger.Error("error downloading image", "file", filename, "error", err)
		return
	}
	defer body.Close()

	if status != http.StatusOK {
		s.logger.Warn("image download failed", "file", filename, "status", status)
		return
	}

	tmp, err := os.CreateTemp(s.dir, filename+".tmp-*")
	if err != nil {
		s.logger.Error("could not create temp file", "dir", s.dir, "error", err)
		return
	}

	size, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		s.logger.Error("error writing image", "file", filename, "error", err)
		return
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, filename)); err != nil {
		os.Remove(tmp.Name())
		s.logger.Error("error placing image", "file", filename, "error", err)
		return
	}

	s.logger.Info("downloaded image", "file", filename, "bytes", size)
}

// SweepExpired deletes cache files whose mtime is older than the
// retention window before now. Only *.jpg entries are considered;
// per-file failures are logged and skipped. Returns the number of
// files deleted. Runs once during construction and may be invoked
// again by the host on its own schedule.
func (s *Store) SweepExpired(now time.Time) int {
	if s.dir == "" {
		return 0
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("error during cache sweep", "dir", s.dir, "error", err)
		return 0
	}

	cutoff := now.Add(-time.Duration(s.retentionDays) * 24 * time.Hour)
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), cacheSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("could not stat cache entry", "file", entry.Name(), "error", err)
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				s.logger.Warn("could not delete cache entry", "file", entry.Name(), "error", err)
				continue
			}
			deleted++
			s.logger.Debug("deleted old image", "file", entry.Name())
		}
	}

	if deleted > 0 {
		s.logger.Info("cleaned up old images", "count", deleted, "retention_days", s.retentionDays)
	}
	return deleted
}
