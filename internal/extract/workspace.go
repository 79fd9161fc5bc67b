package extract

import (
	"context"
	"sync"

	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/lsp"
	"github.com/standardbeagle/symgraph/internal/types"
)

// WorkspaceStrategy issues a single workspace/symbol request with an
// empty query per language and serves subsequent per-file extractions
// from the distributed result. A per-session processed set records each
// file served (see Processed; Invalidate clears the entry). Extract does
// not consult that set: a file requested twice is served twice from the
// same per-file map.
type WorkspaceStrategy struct {
	pool     ClientPool
	adapters []config.Adapter
	rootDir  string

	mu        sync.Mutex
	fetched   map[string]bool // language -> whole-project request done
	byFile    map[string][]lsp.SymbolInformation
	processed map[string]bool
}

// NewWorkspaceStrategy builds the workspace-wide strategy.
func NewWorkspaceStrategy(deps Deps) *WorkspaceStrategy {
	return &WorkspaceStrategy{
		pool:      deps.Pool,
		adapters:  deps.Adapters,
		rootDir:   deps.RootDir,
		fetched:   make(map[string]bool),
		byFile:    make(map[string][]lsp.SymbolInformation),
		processed: make(map[string]bool),
	}
}

func (s *WorkspaceStrategy) Name() string  { return "workspace-wide" }
func (s *WorkspaceStrategy) Priority() int { return PriorityWorkspace }

func (s *WorkspaceStrategy) Supports(file string) bool {
	return config.AdapterForFile(s.adapters, file) != nil
}

// ensureFetched populates the file map for one language on first use.
func (s *WorkspaceStrategy) ensureFetched(ctx context.Context, language string) error {
	s.mu.Lock()
	done := s.fetched[language]
	s.mu.Unlock()
	if done {
		return nil
	}

	var infos []lsp.SymbolInformation
	err := s.pool.Do(ctx, language, func(c *lsp.Client) error {
		result, err := c.WorkspaceSymbols(ctx, "")
		if err != nil {
			return err
		}
		infos = result
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched[language] = true
	for _, info := range infos {
		rel := relPathFromURI(info.Location.URI, s.rootDir)
		s.byFile[rel] = append(s.byFile[rel], info)
	}
	return nil
}

func (s *WorkspaceStrategy) Extract(ctx context.Context, file string) (*types.ExtractionResult, error) {
	language := config.LanguageForFile(s.adapters, file)
	if err := s.ensureFetched(ctx, language); err != nil {
		return nil, err
	}

	s.mu.Lock()
	infos := s.byFile[file]
	s.processed[file] = true
	s.mu.Unlock()

	symbols, edges := fromSymbolInformation(file, language, infos)
	return &types.ExtractionResult{
		File:    file,
		Symbols: symbols,
		Edges:   edges,
		Source:  types.SourceWorkspace,
	}, nil
}

// Invalidate clears the per-language map so the next extraction
// re-issues the workspace request.
func (s *WorkspaceStrategy) Invalidate(file string) {
	language := config.LanguageForFile(s.adapters, file)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processed, file)
	if s.fetched[language] {
		s.fetched[language] = false
		for path := range s.byFile {
			if config.LanguageForFile(s.adapters, path) == language {
				delete(s.byFile, path)
			}
		}
	}
}

// Processed reports whether a file was already served this session.
func (s *WorkspaceStrategy) Processed(file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[file]
}
