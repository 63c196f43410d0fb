// Package modelzip provides reading functionality for packaged model ZIP
// deliveries.
package modelzip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Archive represents an opened model package.
type Archive struct {
	rc      *zip.ReadCloser
	entries map[string]*zip.File
}

// Open opens a model ZIP package for reading.
func Open(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}

	archive := &Archive{
		rc:      rc,
		entries: make(map[string]*zip.File),
	}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		archive.entries[normalizePath(f.Name)] = f
	}

	return archive, nil
}

// Close closes the underlying package file.
func (a *Archive) Close() error {
	return a.rc.Close()
}

// List returns the names of all files in the package.
func (a *Archive) List() []string {
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	return names
}

// Contains reports whether the package holds the given file.
func (a *Archive) Contains(name string) bool {
	_, ok := a.entries[normalizePath(name)]
	return ok
}

// Read returns the full contents of a file in the package.
func (a *Archive) Read(name string) ([]byte, error) {
	entry, ok := a.entries[normalizePath(name)]
	if !ok {
		return nil, fmt.Errorf("file not found in package: %s", name)
	}

	r, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// ExtractAll writes every file in the package under destDir, preserving
// the package's directory structure. Entries that would escape destDir
// are rejected.
func (a *Archive) ExtractAll(destDir string) error {
	for name, entry := range a.entries {
		target := filepath.Join(destDir, filepath.FromSlash(name))
		rel, err := filepath.Rel(destDir, target)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("unsafe path in package: %s", name)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", name, err)
		}

		r, err := entry.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}

		if err := os.WriteFile(target, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
	}
	return nil
}

// ExtractToTemp extracts a model ZIP into a fresh temporary directory and
// returns its path. The caller owns the directory and its cleanup.
func ExtractToTemp(zipPath string) (string, error) {
	archive, err := Open(zipPath)
	if err != nil {
		return "", err
	}
	defer archive.Close()

	tmpDir, err := os.MkdirTemp("", "geoconv_model_")
	if err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}

	if err := archive.ExtractAll(tmpDir); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	return tmpDir, nil
}

// normalizePath converts entry names to forward slashes without leading
// separators, so lookups work regardless of the archiver's conventions.
func normalizePath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(name, "/")
}
