package gitx

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symgraph/internal/types"
)

// fakeLister is a canned version-control view.
type fakeLister struct {
	revision string
	changes  []Change
	err      error
}

func (f *fakeLister) CurrentRevision(ctx context.Context) (string, error) {
	return f.revision, nil
}

func (f *fakeLister) ListChangesSince(ctx context.Context, revision string) ([]Change, error) {
	return f.changes, f.err
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func record(root, rel string) types.FileRecord {
	hash, _ := types.FingerprintFile(filepath.Join(root, filepath.FromSlash(rel)))
	return types.FileRecord{Path: rel, Hash: hash, LastIndexedAt: time.Now()}
}

func rustFilter(root string) *FileFilter {
	return NewFileFilter(root, nil, nil, false, 0, []string{".rs"})
}

func TestDetectInitialIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\n")
	writeFile(t, root, "src/b.rs", "fn b() {}\n")
	writeFile(t, root, "notes.txt", "not source\n")

	d := NewDetector(nil, root, rustFilter(root))
	cs, err := d.Detect(context.Background(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.rs", "src/b.rs"}, cs.Added)
	assert.Empty(t, cs.Modified)
	assert.Empty(t, cs.Deleted)
	assert.Contains(t, cs.Hashes, "a.rs")
}

func TestDetectReconcilesEditorSaveNoise(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\n")
	records := map[string]types.FileRecord{"a.rs": record(root, "a.rs")}

	// Git claims modified, the fingerprint says otherwise.
	lister := &fakeLister{revision: "rev1", changes: []Change{{Path: "a.rs", Status: StatusModified}}}
	d := NewDetector(lister, root, rustFilter(root))
	cs, err := d.Detect(context.Background(), "rev1", records)
	require.NoError(t, err)

	assert.Empty(t, cs.Modified)
	assert.Equal(t, []string{"a.rs"}, cs.Unchanged)
}

func TestDetectReconcilesSilentModification(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\n")
	records := map[string]types.FileRecord{"a.rs": record(root, "a.rs")}
	writeFile(t, root, "a.rs", "fn main() { changed(); }\n")

	// Git reports nothing, the fingerprint disagrees.
	lister := &fakeLister{revision: "rev1"}
	d := NewDetector(lister, root, rustFilter(root))
	cs, err := d.Detect(context.Background(), "rev1", records)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.rs"}, cs.Modified)
	assert.Empty(t, cs.Unchanged)
}

func TestDetectAddedAndDeleted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "kept.rs", "fn kept() {}\n")
	writeFile(t, root, "gone.rs", "fn gone() {}\n")
	records := map[string]types.FileRecord{
		"kept.rs": record(root, "kept.rs"),
		"gone.rs": record(root, "gone.rs"),
	}
	require.NoError(t, os.Remove(filepath.Join(root, "gone.rs")))
	writeFile(t, root, "fresh.rs", "fn fresh() {}\n")

	lister := &fakeLister{revision: "rev1", changes: []Change{
		{Path: "fresh.rs", Status: StatusAdded},
		{Path: "gone.rs", Status: StatusDeleted},
	}}
	d := NewDetector(lister, root, rustFilter(root))
	cs, err := d.Detect(context.Background(), "rev1", records)
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh.rs"}, cs.Added)
	assert.Equal(t, []string{"gone.rs"}, cs.Deleted)
	assert.Equal(t, []string{"kept.rs"}, cs.Unchanged)
}

func TestDetectRenameIdenticalContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn main() {}\n")
	records := map[string]types.FileRecord{"a.rs": record(root, "a.rs")}

	require.NoError(t, os.Rename(filepath.Join(root, "a.rs"), filepath.Join(root, "b.rs")))

	lister := &fakeLister{revision: "rev1", changes: []Change{
		{Path: "a.rs", Status: StatusDeleted},
		{Path: "b.rs", Status: StatusAdded},
	}}
	d := NewDetector(lister, root, rustFilter(root))
	cs, err := d.Detect(context.Background(), "rev1", records)
	require.NoError(t, err)

	require.Len(t, cs.Renamed, 1)
	assert.Equal(t, Rename{Old: "a.rs", New: "b.rs", ContentChanged: false}, cs.Renamed[0])
	assert.Empty(t, cs.Added)
	assert.Empty(t, cs.Deleted)
}

func TestDetectRenameWithEdit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "parser.rs", "fn parse() {}\n")
	records := map[string]types.FileRecord{"parser.rs": record(root, "parser.rs")}

	require.NoError(t, os.Remove(filepath.Join(root, "parser.rs")))
	writeFile(t, root, "src/parser2.rs", "fn parse() { rewritten(); }\n")

	lister := &fakeLister{revision: "rev1", changes: []Change{
		{Path: "parser.rs", Status: StatusDeleted},
		{Path: "src/parser2.rs", Status: StatusAdded},
	}}
	d := NewDetector(lister, root, rustFilter(root))
	cs, err := d.Detect(context.Background(), "rev1", records)
	require.NoError(t, err)

	require.Len(t, cs.Renamed, 1)
	assert.Equal(t, "parser.rs", cs.Renamed[0].Old)
	assert.Equal(t, "src/parser2.rs", cs.Renamed[0].New)
	assert.True(t, cs.Renamed[0].ContentChanged)
}

func TestDetectUnrelatedDeleteAndAdd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.rs", "fn alpha() {}\n")
	records := map[string]types.FileRecord{"alpha.rs": record(root, "alpha.rs")}

	require.NoError(t, os.Remove(filepath.Join(root, "alpha.rs")))
	writeFile(t, root, "zeta.rs", "fn zeta() { different(); }\n")

	lister := &fakeLister{revision: "rev1", changes: []Change{
		{Path: "alpha.rs", Status: StatusDeleted},
		{Path: "zeta.rs", Status: StatusAdded},
	}}
	d := NewDetector(lister, root, rustFilter(root))
	cs, err := d.Detect(context.Background(), "rev1", records)
	require.NoError(t, err)

	assert.Empty(t, cs.Renamed)
	assert.Equal(t, []string{"zeta.rs"}, cs.Added)
	assert.Equal(t, []string{"alpha.rs"}, cs.Deleted)
}

func TestFileFilter(t *testing.T) {
	root := t.TempDir()
	filter := NewFileFilter(root, []string{"src/**"}, []string{"**/generated/**"}, false, 100, []string{".rs"})

	assert.True(t, filter.Match("src/a.rs", 10))
	assert.False(t, filter.Match("src/a.txt", 10), "extension gate")
	assert.False(t, filter.Match("other/a.rs", 10), "include gate")
	assert.False(t, filter.Match("src/generated/a.rs", 10), "exclude gate")
	assert.False(t, filter.Match("src/a.rs", 1000), "size gate")
}

func TestWalkTreeSkipsDotGit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn a() {}\n")
	writeFile(t, root, ".git/objects/x.rs", "not really source\n")

	files, err := WalkTree(root, rustFilter(root))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.rs"}, files)
}
