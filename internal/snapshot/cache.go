// Package snapshot issues unique WAV paths in a process-lifetime temporary
// directory and writes the recordings handed to the recognition engine.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	KindPre  = "pre"
	KindPost = "post"

	defaultPrefix = "voice-input"
)

// Options configure a Cache.
type Options struct {
	// Dir is the parent directory; empty means os.TempDir().
	Dir string
	// Prefix names the per-process directory: <prefix>-<pid>.
	Prefix string
	// TTL removes issued snapshots after this long. Zero keeps them until Close.
	TTL    time.Duration
	Logger zerolog.Logger
}

// Cache hands out snapshot paths and removes them when they expire.
type Cache struct {
	dir   string
	items *cache.Cache
	log   zerolog.Logger
}

// New creates the per-process snapshot directory.
func New(opts Options) (*Cache, error) {
	parent := opts.Dir
	if parent == "" {
		parent = os.TempDir()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	dir := filepath.Join(parent, fmt.Sprintf("%s-%d", prefix, os.Getpid()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	ttl, cleanup := cache.NoExpiration, time.Duration(0)
	if opts.TTL > 0 {
		ttl, cleanup = opts.TTL, opts.TTL/2
	}

	c := &Cache{
		dir:   dir,
		items: cache.New(ttl, cleanup),
		log:   opts.Logger.With().Str("component", "snapshot").Logger(),
	}
	c.items.OnEvicted(c.remove)
	return c, nil
}

// Dir returns the snapshot directory.
func (c *Cache) Dir() string { return c.dir }

// Path returns a new unique path for a snapshot of the given kind.
func (c *Cache) Path(kind string) string {
	name := fmt.Sprintf("%s_%d_%s.wav", kind, time.Now().UnixMilli(), uuid.NewString())
	path := filepath.Join(c.dir, name)
	c.items.Set(path, kind, cache.DefaultExpiration)
	return path
}

// Len returns the number of tracked snapshot paths.
func (c *Cache) Len() int { return c.items.ItemCount() }

// Forget removes path now instead of waiting for it to expire.
func (c *Cache) Forget(path string) {
	c.items.Delete(path)
}

// Clear removes every tracked snapshot.
func (c *Cache) Clear() {
	for path := range c.items.Items() {
		c.items.Delete(path)
	}
}

// Close removes the snapshot directory and everything in it.
func (c *Cache) Close() error {
	c.Clear()
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("remove snapshot dir: %w", err)
	}
	return nil
}

func (c *Cache) remove(path string, _ any) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.Warn().Err(err).Str("path", path).Msg("Failed to remove snapshot")
		return
	}
	c.log.Debug().Str("path", path).Msg("Snapshot removed")
}
