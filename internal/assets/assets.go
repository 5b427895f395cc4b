// Package assets reads mesh file bytes for the decoders. Archive entries
// ("archive.grf#inner" paths) are served from archives kept open for the
// life of the store and cached by full path; plain files are read from
// disk every time.
package assets

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/multierr"

	"github.com/Faultbox/geomcache/pkg/grf"
)

// Store opens archives on first use and keeps them until Close.
type Store struct {
	archives map[string]*grf.Archive
	cache    *Cache
	mu       sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		archives: make(map[string]*grf.Archive),
		cache:    NewCache(),
	}
}

// Read returns the contents of path.
func (s *Store) Read(path string) ([]byte, error) {
	archivePath, inner, ok := grf.SplitPath(path)
	if !ok {
		return os.ReadFile(path)
	}

	if data, ok := s.cache.Get(path); ok {
		return data, nil
	}

	archive, err := s.archive(archivePath)
	if err != nil {
		return nil, err
	}
	data, err := archive.Read(inner)
	if err != nil {
		return nil, err
	}
	s.cache.Set(path, data)
	return data, nil
}

func (s *Store) archive(path string) (*grf.Archive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.archives[path]; ok {
		return a, nil
	}
	a, err := grf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	s.archives[path] = a
	return a, nil
}

// Archives returns the number of open archives.
func (s *Store) Archives() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.archives)
}

// Stats returns the entry cache statistics.
func (s *Store) Stats() (hits, misses int) {
	return s.cache.Stats()
}

// Close closes every archive and empties the cache.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for path, a := range s.archives {
		if cerr := a.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("closing archive %s: %w", path, cerr))
		}
	}
	clear(s.archives)
	s.cache.Clear()
	return err
}

// Cache holds archive entries by full path.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an entry.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an entry.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear drops every entry and resets the statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.data)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
