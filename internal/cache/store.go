// Package cache persists the results of expensive pipeline stages as JSON
// files keyed by the seed URL. Entries never expire; delete them to force a
// recompute.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Kind names the pipeline stage a cache entry belongs to.
type Kind string

const (
	KindScrape          Kind = "scrape_result"
	KindJobs            Kind = "processed_jobs"
	KindRecommendations Kind = "recommendations"
)

// Kinds lists every cache kind, in pipeline order.
var Kinds = []Kind{KindScrape, KindJobs, KindRecommendations}

// SafeKey turns a URL into a file-name token by replacing slashes.
//
// Two URLs that differ only by '/' versus '_' in the same position map to
// the same token and therefore share cache files.
func SafeKey(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

// Store is a directory of cache files.
type Store struct {
	dir   string
	locks sync.Map // path -> *sync.Mutex
}

// NewStore creates the directory if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file that holds kind for key.
func (s *Store) Path(kind Kind, key string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", kind, SafeKey(key)))
}

// Load decodes the entry for kind/key into v. It reports false with a nil
// error when no entry exists.
func (s *Store) Load(kind Kind, key string, v any) (bool, error) {
	data, err := os.ReadFile(s.Path(kind, key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache: %w", err)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, errors.New("decode cache: empty entry")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode cache: %w", err)
	}
	return true, nil
}

// Save writes v for kind/key as indented UTF-8 JSON. The file is written to
// a temp file and renamed so readers never see a partial entry.
func (s *Store) Save(kind Kind, key string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(kind)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(kind, key)); err != nil {
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}

// Remove deletes every kind of entry for key and returns the removed paths.
func (s *Store) Remove(key string) ([]string, error) {
	var removed []string
	for _, kind := range Kinds {
		path := s.Path(kind, key)
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// Entry describes one cache file.
type Entry struct {
	Kind    Kind
	Key     string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns all cache entries in the store, sorted by path.
func (s *Store) List() ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(f.Name(), ".json")
		for _, kind := range Kinds {
			prefix := string(kind) + "-"
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
			}
			entries = append(entries, Entry{
				Kind:    kind,
				Key:     strings.TrimPrefix(name, prefix),
				Path:    filepath.Join(s.dir, f.Name()),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
			break
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (s *Store) lock(path string) func() {
	mu, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// ComputeFunc produces a fresh result. ok=false means the result is unusable
// and must not be cached; a non-nil error is returned to the caller as is.
type ComputeFunc[T any] func(ctx context.Context) (result T, ok bool, err error)

// Cached returns the stored entry for kind/key if it exists and decodes,
// otherwise runs compute and persists a usable result before returning it.
// An unreadable or corrupt entry counts as a miss and is overwritten.
// Calls for the same entry are serialized within a process.
func Cached[T any](ctx context.Context, s *Store, kind Kind, key string, compute ComputeFunc[T]) (T, bool, error) {
	path := s.Path(kind, key)
	unlock := s.lock(path)
	defer unlock()

	var cached T
	found, err := s.Load(kind, key, &cached)
	switch {
	case err != nil:
		slog.Warn("ignoring unreadable cache entry", "kind", kind, "path", path, "error", err)
	case found:
		slog.Info("using cached result", "kind", kind, "path", path)
		return cached, true, nil
	}

	result, ok, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if !ok {
		return result, false, nil
	}

	if err := s.Save(kind, key, result); err != nil {
		slog.Error("failed to write cache entry", "kind", kind, "path", path, "error", err)
	} else {
		slog.Debug("cached result", "kind", kind, "path", path)
	}
	return result, true, nil
}
