// Package gitx classifies working-tree files against the last indexed
// revision. It asks git for a candidate change set, then reconciles the
// candidates with the store's content fingerprints so editor-save noise
// and version-control mis-reporting cannot cause spurious re-indexing.
package gitx

// Status is a candidate classification from the version-control tool.
type Status string

const (
	StatusAdded     Status = "added"
	StatusModified  Status = "modified"
	StatusDeleted   Status = "deleted"
	StatusUnchanged Status = "unchanged"
)

// Change is one candidate from the version-control layer. Paths are
// project-relative with forward slashes.
type Change struct {
	Path   string
	Status Status
}

// Rename is a collapsed delete+add pair. ContentChanged marks renames
// that also need re-extraction (modified semantics on top).
type Rename struct {
	Old            string
	New            string
	ContentChanged bool
}

// ChangeSet is the reconciled classification of one cycle. Hashes
// carries the current content fingerprint of every live classified
// file so the indexer does not hash twice.
type ChangeSet struct {
	Added     []string
	Modified  []string
	Unchanged []string
	Deleted   []string
	Renamed   []Rename

	Hashes map[string]uint64
}

// Empty reports whether nothing needs indexing.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Modified) == 0 &&
		len(cs.Deleted) == 0 && len(cs.Renamed) == 0
}
