package tiles

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// extentsFileName is the metadata file written next to a generated tile
// pyramid.
const extentsFileName = "extents.json"

// Cache checks for previously generated tile pyramids so the pipeline can
// skip the external toolchain. Caching is best effort: any failure at any
// step of a lookup is a miss, never an error.
type Cache struct {
	root string // tile root directory; one subdirectory per image base name
}

// NewCache creates a Cache over the given tile root directory.
func NewCache(root string) *Cache {
	return &Cache{root: root}
}

// Dir returns the tile directory for an image base name.
func (c *Cache) Dir(baseName string) string {
	return filepath.Join(c.root, baseName)
}

// Lookup returns the cached extents for baseName if a valid entry exists.
// An entry is valid only if the metadata file parses with all four fields
// AND at least one numeric zoom-level subdirectory exists; either condition
// failing means "no cache", never a partial hit.
func (c *Cache) Lookup(baseName string) (Extents, bool) {
	dir := c.Dir(baseName)

	data, err := os.ReadFile(filepath.Join(dir, extentsFileName))
	if err != nil {
		return Extents{}, false
	}

	ext, err := ParseExtents(string(data))
	if err != nil {
		log.Printf("[TileCache] Corrupt extents record for %s: %v", baseName, err)
		return Extents{}, false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Extents{}, false
	}
	for _, entry := range entries {
		if entry.IsDir() && isNumeric(entry.Name()) {
			return ext, true
		}
	}

	return Extents{}, false
}

// Store persists the extents record for a generated tile pyramid, creating
// parent directories as needed. Failures are the caller's to log; they never
// fail the pipeline.
func (c *Cache) Store(baseName string, ext Extents) error {
	dir := c.Dir(baseName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create tile directory: %w", err)
	}

	data, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("marshal extents: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, extentsFileName), data, 0644); err != nil {
		return fmt.Errorf("write extents file: %w", err)
	}

	return nil
}

// isNumeric reports whether s is non-empty and composed only of digits,
// which is how zoom-level directories are named.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
