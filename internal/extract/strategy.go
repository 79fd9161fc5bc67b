package extract

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/standardbeagle/symgraph/internal/cache"
	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/debug"
	"github.com/standardbeagle/symgraph/internal/types"
)

// Strategy is one means of converting a file into symbols and edges.
// Extract receives a project-relative path; errors are treated as
// "try the next strategy", never surfaced past the pipeline.
type Strategy interface {
	Name() string
	Priority() int
	Supports(file string) bool
	Extract(ctx context.Context, file string) (*types.ExtractionResult, error)
}

// Strategy priorities. The pipeline runs strategies in descending
// order until one yields a non-empty result.
const (
	PriorityPrimary   = 100
	PriorityHybrid    = 95
	PriorityWorkspace = 90
	PriorityFallback  = 10
)

// Pipeline runs the strategy chain over single files, consulting the
// cache hierarchy first. It never returns an error: at worst a file
// yields an empty symbol list.
type Pipeline struct {
	strategies []Strategy
	caches     *cache.Hierarchy
}

// NewPipeline sorts the given strategies once by descending priority.
func NewPipeline(caches *cache.Hierarchy, strategies ...Strategy) *Pipeline {
	sorted := make([]Strategy, len(strategies))
	copy(sorted, strategies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Pipeline{strategies: sorted, caches: caches}
}

// DefaultStrategies assembles the built-in chain. When fallbackOnly is
// set (configuration or SYMGRAPH_FALLBACK_ONLY) only the regex
// fallback is used.
func DefaultStrategies(deps Deps, fallbackOnly bool) []Strategy {
	fallback := NewFallbackStrategy(deps.RootDir, deps.Adapters)
	if fallbackOnly || deps.Pool == nil {
		return []Strategy{fallback}
	}
	primary := NewPrimaryStrategy(deps)
	workspace := NewWorkspaceStrategy(deps)
	hybrid := NewHybridStrategy(workspace, primary)
	return []Strategy{primary, hybrid, workspace, fallback}
}

// Deps carries what the language-server strategies need.
type Deps struct {
	Pool     ClientPool
	Adapters []config.Adapter
	RootDir  string
}

// ExtractFile runs the chain for one file. hash is the file's current
// content fingerprint, used for cache keys.
func (p *Pipeline) ExtractFile(ctx context.Context, file string, hash uint64) *types.ExtractionResult {
	key := cache.Key{Path: file, Hash: hash, Op: "extract"}
	if p.caches != nil {
		if data, ok := p.caches.Get(key); ok {
			var cached types.ExtractionResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached
			}
		}
	}

	for _, strategy := range p.strategies {
		if !strategy.Supports(file) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		result, err := strategy.Extract(ctx, file)
		if err != nil {
			debug.Verbosef("EXTRACT", "%s failed for %s: %v", strategy.Name(), file, err)
			continue
		}
		if result.Empty() {
			continue
		}
		if p.caches != nil {
			if data, err := json.Marshal(result); err == nil {
				p.caches.Put(key, data)
			}
		}
		return result
	}
	return &types.ExtractionResult{File: file, Source: types.SourceFallback}
}

// Invalidate drops cached results for a path whose hash changed.
func (p *Pipeline) Invalidate(file string) {
	if p.caches != nil {
		p.caches.Invalidate(file)
	}
	for _, strategy := range p.strategies {
		if inv, ok := strategy.(interface{ Invalidate(string) }); ok {
			inv.Invalidate(file)
		}
	}
}
