package extract

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/standardbeagle/symgraph/internal/config"
	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
	"github.com/standardbeagle/symgraph/internal/types"
	"github.com/standardbeagle/symgraph/pkg/pathutil"
)

// defPattern is one line-based definition matcher. The first capture
// group must be the identifier.
type defPattern struct {
	re   *regexp.Regexp
	kind types.SymbolKind
}

// fallbackPatterns maps language ids to definition-keyword scanners.
// These produce definitions only: no type information, no references.
var fallbackPatterns = map[string][]defPattern{
	"rust": {
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindFunction},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindStruct},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindEnum},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindInterface},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?type\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindTypeAlias},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:const|static)\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindConstant},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindModule},
	},
	"go": {
		{regexp.MustCompile(`^func\s+\([^)]*\)\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindMethod},
		{regexp.MustCompile(`^func\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindFunction},
		{regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+struct\b`), types.KindStruct},
		{regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+interface\b`), types.KindInterface},
		{regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindTypeAlias},
		{regexp.MustCompile(`^const\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindConstant},
		{regexp.MustCompile(`^var\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindVariable},
	},
	"python": {
		{regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindFunction},
		{regexp.MustCompile(`^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`), types.KindStruct},
	},
	"typescript": {
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][A-Za-z0-9_$]*)`), types.KindFunction},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`), types.KindStruct},
		{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_$][A-Za-z0-9_$]*)`), types.KindInterface},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:const\s+)?enum\s+([A-Za-z_$][A-Za-z0-9_$]*)`), types.KindEnum},
		{regexp.MustCompile(`^\s*(?:export\s+)?type\s+([A-Za-z_$][A-Za-z0-9_$]*)`), types.KindTypeAlias},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)`), types.KindVariable},
	},
}

// FallbackStrategy is the language-server-free extractor: a line-based
// regular-expression scan for definition keywords. Always last in the
// chain, and the whole chain when no server is installed.
type FallbackStrategy struct {
	rootDir  string
	adapters []config.Adapter
}

// NewFallbackStrategy builds the regex fallback.
func NewFallbackStrategy(rootDir string, adapters []config.Adapter) *FallbackStrategy {
	return &FallbackStrategy{rootDir: rootDir, adapters: adapters}
}

func (s *FallbackStrategy) Name() string  { return "fallback" }
func (s *FallbackStrategy) Priority() int { return PriorityFallback }

func (s *FallbackStrategy) Supports(file string) bool {
	language := config.LanguageForFile(s.adapters, file)
	_, ok := fallbackPatterns[language]
	return ok
}

func (s *FallbackStrategy) Extract(ctx context.Context, file string) (*types.ExtractionResult, error) {
	language := config.LanguageForFile(s.adapters, file)
	patterns := fallbackPatterns[language]

	f, err := os.Open(pathutil.ToAbsolute(file, s.rootDir))
	if err != nil {
		return nil, sgerrors.NewFileError("read", file, err)
	}
	defer f.Close()

	var symbols []*types.Symbol
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lineNo++
		line := scanner.Text()
		for _, pattern := range patterns {
			m := pattern.re.FindStringSubmatchIndex(line)
			if m == nil {
				continue
			}
			name := line[m[2]:m[3]]
			column := m[2] + 1
			s := &types.Symbol{
				ID:   types.MakeSymbolID(file, lineNo, column, name),
				Name: name,
				Kind: pattern.kind,
				File: file,
				Range: types.Range{
					Start: types.Position{Line: lineNo, Column: 1},
					End:   types.Position{Line: lineNo + 1, Column: 1},
				},
				SelectionRange: types.Range{
					Start: types.Position{Line: lineNo, Column: column},
					End:   types.Position{Line: lineNo, Column: column + len(name)},
				},
				Language: language,
				Exported: isExported(language, name, strings.TrimSpace(line)),
			}
			symbols = append(symbols, s)
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, sgerrors.NewFileError("scan", file, err)
	}

	return &types.ExtractionResult{
		File:    file,
		Symbols: symbols,
		Source:  types.SourceFallback,
	}, nil
}
