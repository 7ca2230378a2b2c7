package fileutil

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// FindFileFS は fs.FS 版の FindFileCaseInsensitive。
// fs.FS のパスは常に "/" 区切り。
func FindFileFS(fsys fs.FS, dir, filename string) (string, error) {
	direct := path.Join(dir, filename)
	if info, err := fs.Stat(fsys, direct); err == nil && !info.IsDir() {
		return direct, nil
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), filename) {
			return path.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

// ResolveFS resolves a legacy path inside fsys, matching every component
// case-insensitively.
func ResolveFS(fsys fs.FS, name string) (string, error) {
	parts := SplitLegacyPath(name)
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: empty path %q", ErrNotFound, name)
	}

	dir := "."
	for _, part := range parts[:len(parts)-1] {
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		found := ""
		for _, entry := range entries {
			if entry.IsDir() && strings.EqualFold(entry.Name(), part) {
				found = path.Join(dir, entry.Name())
				break
			}
		}
		if found == "" {
			return "", fmt.Errorf("%w: directory %s (searched in %s)", ErrNotFound, part, dir)
		}
		dir = found
	}
	return FindFileFS(fsys, dir, parts[len(parts)-1])
}

// ReadFileFS reads a legacy path from fsys.
func ReadFileFS(fsys fs.FS, name string) ([]byte, error) {
	p, err := ResolveFS(fsys, name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(fsys, p)
}
