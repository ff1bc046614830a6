package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// TagCache persists the last successfully registered tag set so a token
// refresh can replay registration without user action.
type TagCache interface {
	// Load returns the cached tags, or (nil, nil) when nothing is cached.
	Load() ([]string, error)
	// Store replaces the cached tags.
	Store(tags []string) error
	// Clear removes the cached tags. Clearing an empty cache is a no-op.
	Clear() error
}

// FileTagCache stores the tag set as a JSON file with owner-only permissions,
// standing in for the platform's secure storage.
type FileTagCache struct {
	path string
}

func NewFileTagCache(path string) *FileTagCache {
	return &FileTagCache{path: path}
}

func (c *FileTagCache) Load() ([]string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tag cache: %w", err)
	}

	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("tag cache is corrupt: %w", err)
	}
	return tags, nil
}

func (c *FileTagCache) Store(tags []string) error {
	// nil would marshal to "null" and read back as nothing cached.
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write tag cache: %w", err)
	}
	return nil
}

func (c *FileTagCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear tag cache: %w", err)
	}
	return nil
}
