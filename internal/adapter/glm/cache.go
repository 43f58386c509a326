package glm

import (
	"fmt"
	"os"
	"path/filepath"
)

// Cache hands out per-storm scratch directories under a shared root. Each
// storm's directory exists only while its event stream is open; Release
// deletes it so concurrent storms never exceed workers × one storm of
// cached objects.
type Cache struct {
	root string
}

// NewCache creates a Cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{root: dir}
}

// Acquire creates (or empties) the storm's scratch directory.
func (c *Cache) Acquire(code string) (string, error) {
	dir := filepath.Join(c.root, code)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear cache dir for %s: %w", code, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir for %s: %w", code, err)
	}
	return dir, nil
}

// Release deletes the storm's scratch directory.
func (c *Cache) Release(code string) error {
	return os.RemoveAll(filepath.Join(c.root, code))
}
