package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalBackend stores objects as files below a base directory
type LocalBackend struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalBackend creates the base directory if needed
func NewLocalBackend(config LocalConfig) (*LocalBackend, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("local storage base_path is required")
	}
	if config.Permissions == 0 {
		config.Permissions = 0755
	}

	if err := os.MkdirAll(config.BasePath, config.Permissions); err != nil {
		return nil, fmt.Errorf("failed to create base directory %s: %w", config.BasePath, err)
	}

	return &LocalBackend{
		basePath:    filepath.Clean(config.BasePath),
		permissions: config.Permissions,
	}, nil
}

func (lb *LocalBackend) Provider() ProviderType { return ProviderLocal }

// Write stores data at key. metadata is not persisted on local disk.
func (lb *LocalBackend) Write(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := lb.path(key)
	if err := os.MkdirAll(filepath.Dir(path), lb.permissions); err != nil {
		return err
	}

	// write then rename so a reader never sees a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (lb *LocalBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(lb.path(key))
}

// Keys lists the files below prefix in lexical order
func (lb *LocalBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(lb.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(lb.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

func (lb *LocalBackend) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := lb.path(key)
	if err := os.Remove(path); err != nil {
		return err
	}

	// drop the manifest directory once it is empty
	dir := filepath.Dir(path)
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 && dir != lb.basePath {
		_ = os.Remove(dir)
	}
	return nil
}

func (lb *LocalBackend) Location(key string) string {
	return lb.path(key)
}

// BasePath returns the root directory
func (lb *LocalBackend) BasePath() string {
	return lb.basePath
}

func (lb *LocalBackend) path(key string) string {
	return filepath.Join(lb.basePath, filepath.FromSlash(key))
}
