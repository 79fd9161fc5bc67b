package extract

import (
	"context"
	"sync"

	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/types"
)

// HybridStrategy tries the workspace-wide request once per language and
// serves per-file extraction from it while it holds; when the request
// fails or comes back empty it falls through to per-file documentSymbol
// requests until the next invalidation.
type HybridStrategy struct {
	workspace *WorkspaceStrategy
	primary   *PrimaryStrategy

	mu       sync.Mutex
	degraded map[string]bool // language -> workspace attempt failed/empty
}

// NewHybridStrategy composes the two underlying strategies.
func NewHybridStrategy(workspace *WorkspaceStrategy, primary *PrimaryStrategy) *HybridStrategy {
	return &HybridStrategy{
		workspace: workspace,
		primary:   primary,
		degraded:  make(map[string]bool),
	}
}

func (s *HybridStrategy) Name() string  { return "hybrid" }
func (s *HybridStrategy) Priority() int { return PriorityHybrid }

func (s *HybridStrategy) Supports(file string) bool {
	return s.workspace.Supports(file)
}

func (s *HybridStrategy) Extract(ctx context.Context, file string) (*types.ExtractionResult, error) {
	language := config.LanguageForFile(s.workspace.adapters, file)

	s.mu.Lock()
	degraded := s.degraded[language]
	s.mu.Unlock()

	if !degraded {
		result, err := s.workspace.Extract(ctx, file)
		if err == nil && !result.Empty() {
			return result, nil
		}
		s.mu.Lock()
		s.degraded[language] = true
		s.mu.Unlock()
	}
	return s.primary.Extract(ctx, file)
}

// Invalidate resets the degraded flag so the workspace request is
// attempted again after file changes.
func (s *HybridStrategy) Invalidate(file string) {
	language := config.LanguageForFile(s.workspace.adapters, file)
	s.mu.Lock()
	delete(s.degraded, language)
	s.mu.Unlock()
	s.workspace.Invalidate(file)
}
