// Package pathutil provides utilities for converting between absolute and
// relative paths.
//
// symgraph uses project-relative, slash-separated paths everywhere a path
// participates in identity (symbol ids, store keys, file records) and
// absolute paths only at the OS boundary. This package is the conversion
// layer between the two representations.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root
// directory, normalized to forward slashes. Falls back to the original
// path if conversion fails or the path lies outside the root.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return filepath.ToSlash(absPath)
	}
	if !filepath.IsAbs(absPath) {
		return filepath.ToSlash(absPath)
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return filepath.ToSlash(absPath)
	}
	if strings.HasPrefix(relPath, "..") {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(relPath)
}

// ToAbsolute resolves a project-relative path against the root. Absolute
// inputs are cleaned and returned unchanged.
func ToAbsolute(relPath, rootDir string) string {
	if relPath == "" {
		return rootDir
	}
	if filepath.IsAbs(relPath) {
		return filepath.Clean(relPath)
	}
	return filepath.Join(rootDir, filepath.FromSlash(relPath))
}
