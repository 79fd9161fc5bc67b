package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fallbackFor(t *testing.T, root string) *FallbackStrategy {
	t.Helper()
	return NewFallbackStrategy(root, config.BuiltinAdapters())
}

func namesAndKinds(result *types.ExtractionResult) map[string]types.SymbolKind {
	out := make(map[string]types.SymbolKind)
	for _, sym := range result.Symbols {
		out[sym.Name] = sym.Kind
	}
	return out
}

func TestFallbackRust(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", `pub fn main() {
    helper();
}
fn helper() {}
pub struct Config {
    value: u32,
}
trait Runner {}
pub const LIMIT: usize = 10;
mod inner {}
`)
	result, err := fallbackFor(t, root).Extract(context.Background(), "a.rs")
	require.NoError(t, err)
	assert.Equal(t, types.SourceFallback, result.Source)

	got := namesAndKinds(result)
	assert.Equal(t, types.KindFunction, got["main"])
	assert.Equal(t, types.KindFunction, got["helper"])
	assert.Equal(t, types.KindStruct, got["Config"])
	assert.Equal(t, types.KindInterface, got["Runner"])
	assert.Equal(t, types.KindConstant, got["LIMIT"])
	assert.Equal(t, types.KindModule, got["inner"])
}

func TestFallbackRustPositionsAndIds(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() { helper(); }\nfn helper() {}\n")

	result, err := fallbackFor(t, root).Extract(context.Background(), "a.rs")
	require.NoError(t, err)
	require.Len(t, result.Symbols, 2)

	main := result.Symbols[0]
	helper := result.Symbols[1]
	assert.Equal(t, types.SymbolID("a.rs#1:4:main"), main.ID)
	assert.Equal(t, types.SymbolID("a.rs#2:4:helper"), helper.ID)
	assert.True(t, main.Range.Contains(types.Position{Line: 1, Column: 20}))
}

func TestFallbackExportedHeuristics(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "pub fn visible() {}\nfn hidden() {}\n")

	result, err := fallbackFor(t, root).Extract(context.Background(), "a.rs")
	require.NoError(t, err)
	byName := make(map[string]*types.Symbol)
	for _, sym := range result.Symbols {
		byName[sym.Name] = sym
	}
	assert.True(t, byName["visible"].Exported)
	assert.False(t, byName["hidden"].Exported)
}

func TestFallbackGo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "m.go", `package m

func Public() {}
func private() {}
func (s *Server) Handle() {}
type Server struct{}
type Handler interface{}
const limit = 5
var Registry = map[string]int{}
`)
	result, err := fallbackFor(t, root).Extract(context.Background(), "m.go")
	require.NoError(t, err)

	got := namesAndKinds(result)
	assert.Equal(t, types.KindFunction, got["Public"])
	assert.Equal(t, types.KindMethod, got["Handle"])
	assert.Equal(t, types.KindStruct, got["Server"])
	assert.Equal(t, types.KindInterface, got["Handler"])
	assert.Equal(t, types.KindConstant, got["limit"])
	assert.Equal(t, types.KindVariable, got["Registry"])
}

func TestFallbackPython(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", `class Service:
    def run(self):
        pass

def _internal():
    pass

async def fetch():
    pass
`)
	result, err := fallbackFor(t, root).Extract(context.Background(), "app.py")
	require.NoError(t, err)

	got := namesAndKinds(result)
	assert.Equal(t, types.KindStruct, got["Service"])
	assert.Equal(t, types.KindFunction, got["run"])
	assert.Equal(t, types.KindFunction, got["_internal"])
	assert.Equal(t, types.KindFunction, got["fetch"])
}

func TestFallbackTypeScript(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.ts", `export function render() {}
export class Widget {}
interface Props {}
export const VERSION = "1";
enum Mode { A, B }
`)
	result, err := fallbackFor(t, root).Extract(context.Background(), "app.ts")
	require.NoError(t, err)

	got := namesAndKinds(result)
	assert.Equal(t, types.KindFunction, got["render"])
	assert.Equal(t, types.KindStruct, got["Widget"])
	assert.Equal(t, types.KindInterface, got["Props"])
	assert.Equal(t, types.KindVariable, got["VERSION"])
	assert.Equal(t, types.KindEnum, got["Mode"])
}

func TestFallbackUnsupportedExtension(t *testing.T) {
	root := t.TempDir()
	s := fallbackFor(t, root)
	assert.False(t, s.Supports("README.md"))
	assert.True(t, s.Supports("a.rs"))
}
