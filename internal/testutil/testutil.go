// Package testutil provides testing utilities for mb tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// WriteFiles creates each named file under dir, using the slash-separated
// name as its content. Parent directories are created as needed.
func WriteFiles(t *testing.T, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		WriteFile(t, dir, name, name)
	}
}

// WriteFile creates or replaces one file under dir.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	fullPath := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", name, err)
	}
	return fullPath
}

// ReadFile returns the content of a file under dir.
func ReadFile(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("failed to read file %s: %v", name, err)
	}
	return string(data)
}

// ListFiles returns every regular file under dir as sorted slash paths.
// A missing directory yields no files.
func ListFiles(t *testing.T, dir string) []string {
	t.Helper()

	files := []string{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to list files in %s: %v", dir, err)
	}
	sort.Strings(files)
	return files
}
