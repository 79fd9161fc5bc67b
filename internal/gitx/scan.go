package gitx

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// FileFilter decides whether a project-relative path is indexable.
type FileFilter struct {
	include    []string
	exclude    []string
	ignore     *gitignore.GitIgnore
	maxSize    int64
	extensions map[string]bool
}

// NewFileFilter compiles the include/exclude globs and, when asked,
// the project's .gitignore. extensions limits scanning to files a
// language adapter owns; empty means no extension gate.
func NewFileFilter(rootDir string, include, exclude []string, respectGitignore bool, maxSize int64, extensions []string) *FileFilter {
	f := &FileFilter{include: include, exclude: exclude, maxSize: maxSize}
	if respectGitignore {
		if ign, err := gitignore.CompileIgnoreFile(filepath.Join(rootDir, ".gitignore")); err == nil {
			f.ignore = ign
		}
	}
	if len(extensions) > 0 {
		f.extensions = make(map[string]bool, len(extensions))
		for _, ext := range extensions {
			f.extensions[ext] = true
		}
	}
	return f
}

// Match reports whether a relative path passes every gate.
func (f *FileFilter) Match(relPath string, size int64) bool {
	if f.maxSize > 0 && size > f.maxSize {
		return false
	}
	if f.extensions != nil && !f.extensions[filepath.Ext(relPath)] {
		return false
	}
	for _, pattern := range f.exclude {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return false
		}
	}
	if f.ignore != nil && f.ignore.MatchesPath(relPath) {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	for _, pattern := range f.include {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// WalkTree enumerates every indexable file under root, relative with
// forward slashes. Used for the initial index and as the no-git
// fallback.
func WalkTree(root string, filter *FileFilter) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // skip unreadable entries, keep walking
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel == "." {
				return nil
			}
			if info.Name() == ".git" || info.Name() == ".symgraph" {
				return filepath.SkipDir
			}
			for _, pattern := range filter.exclude {
				if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if filter.Match(rel, info.Size()) {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}
