package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symgraph/internal/cache"
	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/extract"
	"github.com/standardbeagle/symgraph/internal/store"
	"github.com/standardbeagle/symgraph/internal/types"
)

// newTestIndexer wires a fallback-only indexer over a temp project
// with no version control (walk-based detection).
func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()

	cfg := config.Default(root)
	cfg.Lsp.FallbackOnly = true
	cfg.Performance.Parallelism = 2

	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	adapters := config.BuiltinAdapters()
	deps := extract.Deps{Adapters: adapters, RootDir: root}
	pipeline := extract.NewPipeline(cache.New(64, "", 0), extract.DefaultStrategies(deps, true)...)

	ix, err := Open(Options{
		Config:   cfg,
		Adapters: adapters,
		Store:    st,
		Pipeline: pipeline,
	})
	require.NoError(t, err)
	return ix
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestInitialIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() { helper(); }\nfn helper() {}\n")
	ix := newTestIndexer(t, root)

	stats, err := ix.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesAdded)
	assert.Equal(t, 2, stats.SymbolsAdded)

	g := ix.Graph()
	assert.NotNil(t, g.Symbol(types.SymbolID("a.rs#1:4:main")))
	assert.NotNil(t, g.Symbol(types.SymbolID("a.rs#2:4:helper")))

	rec, ok, err := ix.Store().FileRecord("a.rs")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rec.Symbols, 2)
	assert.NotZero(t, rec.Hash)
}

func TestPersistedGraphMatchesMemory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\nfn helper() {}\n")
	writeFile(t, root, "lib.rs", "pub struct Config {}\n")
	ix := newTestIndexer(t, root)

	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	loaded, err := ix.Store().LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, ix.Graph().Symbols(), loaded.Symbols())
	assert.Equal(t, ix.Graph().Edges(), loaded.Edges())
}

func TestNoOpUpdate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() { helper(); }\nfn helper() {}\n")
	ix := newTestIndexer(t, root)

	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	stats, err := ix.Update(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.FilesAdded)
	assert.Zero(t, stats.FilesModified)
	assert.Zero(t, stats.FilesDeleted)
	assert.Zero(t, stats.SymbolsAdded)
	assert.Zero(t, stats.SymbolsRemoved)
	assert.Equal(t, 1, stats.FilesUnchanged)
}

func TestRenameFileRewritesIdPrefixes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\nfn helper() {}\n")
	ix := newTestIndexer(t, root)

	_, err := ix.Index(context.Background())
	require.NoError(t, err)
	edgesBefore := ix.Graph().EdgeLen()

	require.NoError(t, os.Rename(filepath.Join(root, "a.rs"), filepath.Join(root, "b.rs")))
	stats, err := ix.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesRenamed)

	g := ix.Graph()
	assert.Empty(t, g.SymbolsIn("a.rs"))
	for _, sym := range g.SymbolsIn("b.rs") {
		assert.Equal(t, "b.rs", sym.ID.File())
	}
	assert.Equal(t, edgesBefore, g.EdgeLen())

	// Persisted state moved with the rename.
	_, ok, err := ix.Store().FileRecord("a.rs")
	require.NoError(t, err)
	assert.False(t, ok)
	rec, ok, err := ix.Store().FileRecord("b.rs")
	require.NoError(t, err)
	require.True(t, ok)
	for _, id := range rec.Symbols {
		assert.Equal(t, "b.rs", id.File())
	}

	loaded, err := ix.Store().LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, g.Symbols(), loaded.Symbols())
}

func TestContentChangeReplacesSymbol(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() { helper(); }\nfn helper() {}\n")
	ix := newTestIndexer(t, root)

	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "a.rs", "fn main() { helper2(); }\nfn helper2() {}\n")
	stats, err := ix.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesModified)

	g := ix.Graph()
	assert.Nil(t, g.Symbol(types.SymbolID("a.rs#2:4:helper")))
	assert.NotNil(t, g.Symbol(types.SymbolID("a.rs#2:4:helper2")))

	loaded, err := ix.Store().LoadGraph()
	require.NoError(t, err)
	assert.Nil(t, loaded.Symbol(types.SymbolID("a.rs#2:4:helper")))
	assert.NotNil(t, loaded.Symbol(types.SymbolID("a.rs#2:4:helper2")))
}

func TestDeleteFileRemovesSymbolsAndRecord(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\n")
	writeFile(t, root, "b.rs", "fn helper() {}\n")
	ix := newTestIndexer(t, root)

	_, err := ix.Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, ix.Graph().Len())

	require.NoError(t, os.Remove(filepath.Join(root, "b.rs")))
	stats, err := ix.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesDeleted)
	assert.Equal(t, 1, stats.SymbolsRemoved)

	assert.Equal(t, 1, ix.Graph().Len())
	_, ok, err := ix.Store().FileRecord("b.rs")
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := ix.Store().LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestUnchangedHashKeepsSymbolSet(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\n")
	ix := newTestIndexer(t, root)

	_, err := ix.Index(context.Background())
	require.NoError(t, err)
	before, _, err := ix.Store().FileRecord("a.rs")
	require.NoError(t, err)

	// Rewrite identical bytes: mtime changes, the fingerprint does not.
	writeFile(t, root, "a.rs", "fn main() {}\n")
	_, err = ix.Update(context.Background())
	require.NoError(t, err)

	after, _, err := ix.Store().FileRecord("a.rs")
	require.NoError(t, err)
	assert.Equal(t, before.Symbols, after.Symbols, "unchanged hash keeps the owned symbol set")
}

func TestIndexIsIdempotentAcrossReopen(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\nfn helper() {}\n")

	storePath := filepath.Join(t.TempDir(), "index.db")
	open := func() *Indexer {
		cfg := config.Default(root)
		cfg.Lsp.FallbackOnly = true
		st, err := store.Open(storePath)
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		adapters := config.BuiltinAdapters()
		deps := extract.Deps{Adapters: adapters, RootDir: root}
		ix, err := Open(Options{
			Config:   cfg,
			Adapters: adapters,
			Store:    st,
			Pipeline: extract.NewPipeline(nil, extract.DefaultStrategies(deps, true)...),
		})
		require.NoError(t, err)
		return ix
	}

	first := open()
	_, err := first.Index(context.Background())
	require.NoError(t, err)
	symbolsBefore := first.Graph().Symbols()
	require.NoError(t, first.Store().Close())

	second := open()
	assert.Equal(t, symbolsBefore, second.Graph().Symbols(), "reopened graph equals the committed one")

	stats, err := second.Update(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.SymbolsAdded)
	assert.Zero(t, stats.SymbolsRemoved)
}
