package gitx

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Lister is the version-control contract the detector consumes. The
// git-backed Provider implements it; tests substitute a fake.
type Lister interface {
	// CurrentRevision returns an opaque revision identifier, or "" when
	// the tree has no history yet.
	CurrentRevision(ctx context.Context) (string, error)
	// ListChangesSince diffs the working tree (including untracked
	// files) against a recorded revision.
	ListChangesSince(ctx context.Context, revision string) ([]Change, error)
}

// Provider wraps git commands to observe working-tree changes.
type Provider struct {
	repoRoot string
}

// NewProvider creates a git provider rooted at the repository holding
// repoRoot. Fails when repoRoot is not inside a git repository.
func NewProvider(repoRoot string) (*Provider, error) {
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid repo root: %w", err)
	}

	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = absRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s", absRoot)
	}
	return &Provider{repoRoot: strings.TrimSpace(string(output))}, nil
}

// RepoRoot returns the resolved repository root.
func (p *Provider) RepoRoot() string {
	return p.repoRoot
}

// CurrentRevision returns the HEAD commit hash, or "" before the first
// commit.
func (p *Provider) CurrentRevision(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return "", nil // unborn HEAD
	}
	return strings.TrimSpace(string(output)), nil
}

// ListChangesSince diffs the working tree against a revision and
// appends untracked files as additions. Rename detection is disabled at
// the git level; the detector collapses renames itself from content
// fingerprints.
func (p *Provider) ListChangesSince(ctx context.Context, revision string) ([]Change, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-status", "--no-renames", revision)
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed for %s: %w", revision, err)
	}
	changes, err := parseNameStatus(output)
	if err != nil {
		return nil, err
	}

	untracked, err := p.untrackedFiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, path := range untracked {
		changes = append(changes, Change{Path: path, Status: StatusAdded})
	}
	return changes, nil
}

func (p *Provider) untrackedFiles(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--others", "--exclude-standard")
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}
	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			files = append(files, filepath.ToSlash(line))
		}
	}
	return files, scanner.Err()
}

// parseNameStatus parses `git diff --name-status` output lines of the
// form "M\tpath".
func parseNameStatus(output []byte) ([]Change, error) {
	var changes []Change
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		path := filepath.ToSlash(parts[1])
		switch parts[0][0] {
		case 'A':
			changes = append(changes, Change{Path: path, Status: StatusAdded})
		case 'M', 'T':
			changes = append(changes, Change{Path: path, Status: StatusModified})
		case 'D':
			changes = append(changes, Change{Path: path, Status: StatusDeleted})
		}
	}
	return changes, scanner.Err()
}
