// Package fileutil resolves file names found in legacy game data against the
// host file system.
//
// Scripts and movie data references name files the way the original
// platform did: DOS paths with backslashes, classic Mac OS paths with colons,
// and names whose case rarely matches what is on disk.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no directory entry matches a name.
var ErrNotFound = errors.New("file not found")

// separators lists every path separator seen in legacy data.
const separators = `\/:`

// FindFileCaseInsensitive は dir 内から大文字小文字を無視して filename を探し、
// 実際のパスを返す。
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

// BaseName returns the last component of a DOS, Mac or Unix path.
func BaseName(name string) string {
	if i := strings.LastIndexAny(name, separators); i >= 0 {
		return name[i+1:]
	}
	return name
}

// SplitLegacyPath splits a path on any legacy separator, dropping empty and
// "." components. ".." components are dropped too so the result never
// escapes the directory it is resolved against.
func SplitLegacyPath(name string) []string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	out := parts[:0]
	for _, p := range parts {
		if p == "." || p == ".." {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Resolve は root 配下で name の各要素を大文字小文字を無視して辿り、
// 実在するファイルのパスを返す。
func Resolve(root, name string) (string, error) {
	parts := SplitLegacyPath(name)
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: empty path %q", ErrNotFound, name)
	}

	dir := root
	for _, part := range parts[:len(parts)-1] {
		next, err := findDirCaseInsensitive(dir, part)
		if err != nil {
			return "", err
		}
		dir = next
	}
	return FindFileCaseInsensitive(dir, parts[len(parts)-1])
}

func findDirCaseInsensitive(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: directory %s (searched in %s)", ErrNotFound, name, dir)
}
