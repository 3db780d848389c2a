// Package store manages the on-disk recordings directory: clip naming,
// listing, and best-effort deletion. Clips are the only durable artifact the
// session manager produces; everything else is session-scoped.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClipInfo describes a recorded clip on disk.
type ClipInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store owns a dedicated recordings directory.
type Store struct {
	dir    string
	prefix string
	ext    string
}

// New creates a store rooted at dir. The directory is created lazily on the
// first clip allocation.
func New(dir, prefix, ext string) *Store {
	if prefix == "" {
		prefix = "voicenote_"
	}
	if ext == "" {
		ext = ".m4a"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Store{dir: dir, prefix: prefix, ext: ext}
}

// Dir returns the recordings directory path.
func (s *Store) Dir() string { return s.dir }

// EnsureDir creates the recordings directory if it does not exist.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return nil
}

// NewClipPath allocates a unique path for a new clip. The name embeds the
// creation timestamp; the uuid fragment keeps two clips started within the
// same millisecond from colliding.
func (s *Store) NewClipPath(now time.Time) (string, error) {
	if err := s.EnsureDir(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s%d_%s%s", s.prefix, now.UnixMilli(), uuid.NewString()[:8], s.ext)
	return filepath.Join(s.dir, name), nil
}

// Resolve maps a bare clip name to its path inside the recordings
// directory, rejecting anything that would escape it.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid clip name: %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// List returns the clips in the recordings directory, newest first. A
// missing directory yields an empty list.
func (s *Store) List() ([]ClipInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var clips []ClipInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), s.ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		clips = append(clips, ClipInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(s.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(clips, func(i, j int) bool {
		return clips[i].ModTime.After(clips[j].ModTime)
	})
	return clips, nil
}

// Delete removes a clip's backing file. Best effort: the result is a flag,
// never an error. Deleting an already-absent clip reports false.
func (s *Store) Delete(path string) bool {
	if path == "" {
		return false
	}
	if !filepath.IsAbs(path) {
		resolved, err := s.Resolve(path)
		if err != nil {
			return false
		}
		path = resolved
	}
	return os.Remove(path) == nil
}
