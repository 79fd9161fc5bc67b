package gitx

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/symgraph/internal/debug"
	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
	"github.com/standardbeagle/symgraph/internal/types"
	"github.com/standardbeagle/symgraph/pkg/pathutil"
)

// renameSimilarity is the basename similarity above which a changed
// delete+add pair is still collapsed into a rename.
const renameSimilarity = 0.85

// Detector classifies the working tree against the store's file
// records. Two stages: the version-control candidates first, then
// reconciliation with stored content fingerprints.
type Detector struct {
	lister  Lister // nil when the tree is not under version control
	rootDir string
	filter  *FileFilter
}

// NewDetector builds a detector. lister may be nil; detection then
// falls back to a full-tree walk with fingerprint comparison.
func NewDetector(lister Lister, rootDir string, filter *FileFilter) *Detector {
	return &Detector{lister: lister, rootDir: rootDir, filter: filter}
}

// Detect classifies every file given the records of the last committed
// cycle and the revision recorded in the store's meta. An empty
// recorded revision means initial index: every source file is added.
func (d *Detector) Detect(ctx context.Context, recordedRevision string, records map[string]types.FileRecord) (*ChangeSet, error) {
	if d.lister == nil || recordedRevision == "" {
		return d.detectByWalk(ctx, records)
	}

	candidates, err := d.lister.ListChangesSince(ctx, recordedRevision)
	if err != nil {
		debug.Logf("DETECT", "git candidates unavailable (%v), walking tree", err)
		return d.detectByWalk(ctx, records)
	}

	candidateStatus := make(map[string]Status, len(candidates))
	for _, change := range candidates {
		candidateStatus[change.Path] = change.Status
	}

	cs := &ChangeSet{Hashes: make(map[string]uint64)}

	// Stage two over known files: trust the fingerprint, not the tool.
	for path, rec := range records {
		if ctx.Err() != nil {
			return nil, sgerrors.ErrCancelled
		}
		hash, err := d.hashFile(path)
		if os.IsNotExist(err) {
			cs.Deleted = append(cs.Deleted, path)
			continue
		}
		if err != nil {
			// Unreadable this cycle: leave it untouched so the next
			// cycle retries.
			debug.Logf("DETECT", "skipping unreadable %s: %v", path, err)
			cs.Unchanged = append(cs.Unchanged, path)
			continue
		}
		cs.Hashes[path] = hash
		if hash == rec.Hash {
			cs.Unchanged = append(cs.Unchanged, path)
		} else {
			cs.Modified = append(cs.Modified, path)
		}
	}

	// Candidates never indexed before are additions.
	for path, status := range candidateStatus {
		if _, known := records[path]; known || status == StatusDeleted {
			continue
		}
		info, err := os.Stat(pathutil.ToAbsolute(path, d.rootDir))
		if err != nil || info.IsDir() || !d.filter.Match(path, info.Size()) {
			continue
		}
		hash, err := d.hashFile(path)
		if err != nil {
			continue
		}
		cs.Hashes[path] = hash
		cs.Added = append(cs.Added, path)
	}

	d.collapseRenames(cs, records)
	sortSet(cs)
	return cs, nil
}

// detectByWalk classifies by enumerating the tree and comparing
// fingerprints. Handles the initial index (no records) and trees
// without usable version control.
func (d *Detector) detectByWalk(ctx context.Context, records map[string]types.FileRecord) (*ChangeSet, error) {
	files, err := WalkTree(d.rootDir, d.filter)
	if err != nil {
		return nil, err
	}

	cs := &ChangeSet{Hashes: make(map[string]uint64)}
	seen := make(map[string]bool, len(files))
	for _, path := range files {
		if ctx.Err() != nil {
			return nil, sgerrors.ErrCancelled
		}
		seen[path] = true
		hash, err := d.hashFile(path)
		if err != nil {
			debug.Logf("DETECT", "skipping unreadable %s: %v", path, err)
			continue
		}
		cs.Hashes[path] = hash
		rec, known := records[path]
		switch {
		case !known:
			cs.Added = append(cs.Added, path)
		case rec.Hash == hash:
			cs.Unchanged = append(cs.Unchanged, path)
		default:
			cs.Modified = append(cs.Modified, path)
		}
	}
	for path := range records {
		if !seen[path] {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	d.collapseRenames(cs, records)
	sortSet(cs)
	return cs, nil
}

// collapseRenames pairs deleted and added paths. Identical content
// fingerprints always collapse; differing content still collapses when
// the basenames are near-identical, carrying modified semantics.
func (d *Detector) collapseRenames(cs *ChangeSet, records map[string]types.FileRecord) {
	if len(cs.Deleted) == 0 || len(cs.Added) == 0 {
		return
	}

	usedAdd := make(map[string]bool)
	var remainingDeleted []string
	for _, oldPath := range cs.Deleted {
		oldHash := records[oldPath].Hash
		matched := ""
		contentChanged := false

		for _, newPath := range cs.Added {
			if usedAdd[newPath] {
				continue
			}
			if cs.Hashes[newPath] == oldHash {
				matched = newPath
				break
			}
		}
		if matched == "" {
			// No content twin: accept a near-identical basename as a
			// rename-with-edit.
			bestScore := float32(0)
			for _, newPath := range cs.Added {
				if usedAdd[newPath] {
					continue
				}
				score, err := edlib.StringsSimilarity(
					filepath.Base(oldPath), filepath.Base(newPath), edlib.JaroWinkler)
				if err == nil && score > bestScore {
					bestScore = score
					matched = newPath
				}
			}
			if bestScore < renameSimilarity {
				matched = ""
			}
			contentChanged = matched != ""
		}

		if matched == "" {
			remainingDeleted = append(remainingDeleted, oldPath)
			continue
		}
		usedAdd[matched] = true
		cs.Renamed = append(cs.Renamed, Rename{Old: oldPath, New: matched, ContentChanged: contentChanged})
	}

	cs.Deleted = remainingDeleted
	var remainingAdded []string
	for _, path := range cs.Added {
		if !usedAdd[path] {
			remainingAdded = append(remainingAdded, path)
		}
	}
	cs.Added = remainingAdded
}

func (d *Detector) hashFile(relPath string) (uint64, error) {
	return types.FingerprintFile(pathutil.ToAbsolute(relPath, d.rootDir))
}

func sortSet(cs *ChangeSet) {
	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Unchanged)
	sort.Strings(cs.Deleted)
	sort.Slice(cs.Renamed, func(i, j int) bool { return cs.Renamed[i].Old < cs.Renamed[j].Old })
}
