// Package config holds symgraph's runtime configuration: project
// layout, indexing limits, language-server pool sizing, cache budgets,
// and the environment overrides recognized by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
)

// Environment variables recognized everywhere. FallbackOnly forces
// regex-only extraction, Parallelism overrides the worker ceiling,
// SYMGRAPH_DEBUG is consumed by internal/debug.
const (
	EnvFallbackOnly = "SYMGRAPH_FALLBACK_ONLY"
	EnvParallelism  = "SYMGRAPH_PARALLELISM"
	EnvDebug        = "SYMGRAPH_DEBUG"
)

type Config struct {
	Version     int
	Project     Project
	Index       Index
	Performance Performance
	Lsp         Lsp
	Cache       Cache
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	StorePath        string // relative to root; default .symgraph/index.db
	Include          []string
	Exclude          []string
	RespectGitignore bool
	MaxFileSize      int64
	WatchDebounceMs  int
}

type Performance struct {
	Parallelism     int // 0 = auto-detect (NumCPU)
	CycleTimeoutSec int // deadline for one whole update cycle
}

type Lsp struct {
	PoolSize       int  // clients per language
	MaxIdleMinutes int  // idle client shutdown
	FallbackOnly   bool // skip language servers entirely
}

type Cache struct {
	L1Entries  int    // L1 entry cap
	L2MaxBytes int64  // L2 total-size cap
	ScratchDir string // relative to root; default .symgraph/cache
}

// Default returns the baseline configuration for a project root.
func Default(root string) *Config {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return &Config{
		Version: 1,
		Project: Project{Root: absRoot, Name: filepath.Base(absRoot)},
		Index: Index{
			StorePath:        filepath.Join(".symgraph", "index.db"),
			Include:          []string{},
			Exclude:          []string{"**/.git/**", "**/node_modules/**", "**/target/**", "**/.symgraph/**"},
			RespectGitignore: true,
			MaxFileSize:      10 * 1024 * 1024,
			WatchDebounceMs:  250,
		},
		Performance: Performance{
			Parallelism:     0,
			CycleTimeoutSec: 300,
		},
		Lsp: Lsp{
			PoolSize:       4,
			MaxIdleMinutes: 5,
		},
		Cache: Cache{
			L1Entries:  512,
			L2MaxBytes: 64 * 1024 * 1024,
			ScratchDir: filepath.Join(".symgraph", "cache"),
		},
	}
}

// Load builds the configuration for a project: defaults, then
// .symgraph.kdl if present, then environment overrides.
func Load(root string) (*Config, error) {
	cfg := Default(root)
	kdlCfg, err := LoadKDL(cfg.Project.Root)
	if err != nil {
		return nil, err
	}
	if kdlCfg != nil {
		cfg = kdlCfg
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies the recognized environment overrides in place.
func (c *Config) ApplyEnv() {
	switch os.Getenv(EnvFallbackOnly) {
	case "1", "true":
		c.Lsp.FallbackOnly = true
	}
	if raw := os.Getenv(EnvParallelism); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.Performance.Parallelism = n
		}
	}
}

// EffectiveParallelism resolves the worker ceiling; zero means core count.
func (c *Config) EffectiveParallelism() int {
	if c.Performance.Parallelism > 0 {
		return c.Performance.Parallelism
	}
	return runtime.NumCPU()
}

// StoreFile returns the absolute store path.
func (c *Config) StoreFile() string {
	if filepath.IsAbs(c.Index.StorePath) {
		return c.Index.StorePath
	}
	return filepath.Join(c.Project.Root, c.Index.StorePath)
}

// ScratchDir returns the absolute L2 cache directory.
func (c *Config) ScratchDir() string {
	if filepath.IsAbs(c.Cache.ScratchDir) {
		return c.Cache.ScratchDir
	}
	return filepath.Join(c.Project.Root, c.Cache.ScratchDir)
}

// Validate rejects unusable values early. Glob patterns are compiled
// once here so the scanners can assume they parse.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return &sgerrors.ConfigError{Field: "project.root", Value: "", Underlying: fmt.Errorf("empty")}
	}
	for _, pattern := range append(append([]string{}, c.Index.Include...), c.Index.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return &sgerrors.ConfigError{Field: "index.include/exclude", Value: pattern,
				Underlying: fmt.Errorf("invalid glob pattern")}
		}
	}
	if c.Lsp.PoolSize < 1 || c.Lsp.PoolSize > 32 {
		return &sgerrors.ConfigError{Field: "lsp.pool_size", Value: strconv.Itoa(c.Lsp.PoolSize),
			Underlying: fmt.Errorf("must be 1-32")}
	}
	if c.Cache.L1Entries < 1 {
		return &sgerrors.ConfigError{Field: "cache.l1_entries", Value: strconv.Itoa(c.Cache.L1Entries),
			Underlying: fmt.Errorf("must be positive")}
	}
	return nil
}
