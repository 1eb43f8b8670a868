// Package changeset lists the files touched by a resolved comparison.
package changeset

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/changegate/internal/revision"
	"github.com/Sumatoshi-tech/changegate/pkg/gitlib"
)

// ErrHistoryAccess is the sentinel for failures reading repository
// history. It is fatal and must never be conflated with an empty change
// set; the driver reacts with the conservative default decision.
var ErrHistoryAccess = errors.New("history access failed")

// Mode records which strategy produced a change set.
type Mode int

const (
	// ModeDiff means the paths come from a base..head tree diff.
	ModeDiff Mode = iota
	// ModeSingleCommit means the paths are the head commit's own change list.
	ModeSingleCommit
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	if m == ModeDiff {
		return "diff"
	}

	return "single-commit"
}

// ChangeSet is the result of comparing two revisions or inspecting one.
// Paths are repository-relative, deduplicated, and sorted.
type ChangeSet struct {
	Paths []string
	Mode  Mode
}

// Extract lists the files touched by the comparison. All failures wrap
// ErrHistoryAccess, including an unresolvable head revision: the
// resolver guarantees head is carried opaquely, so this is where a bad
// head surfaces.
func Extract(ctx context.Context, repo *gitlib.Repository, cmp revision.Comparison) (ChangeSet, error) {
	if err := ctx.Err(); err != nil {
		return ChangeSet{}, fmt.Errorf("%w: %w", ErrHistoryAccess, err)
	}

	headCommit, err := lookupSpec(repo, cmp.Head)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("%w: head %q: %w", ErrHistoryAccess, cmp.Head, err)
	}
	defer headCommit.Free()

	if cmp.Strategy == revision.StrategySingle {
		paths, singleErr := gitlib.CommitChangedPaths(repo, headCommit)
		if singleErr != nil {
			return ChangeSet{}, fmt.Errorf("%w: single-commit change list: %w", ErrHistoryAccess, singleErr)
		}

		return ChangeSet{Paths: paths, Mode: ModeSingleCommit}, nil
	}

	if err = ctx.Err(); err != nil {
		return ChangeSet{}, fmt.Errorf("%w: %w", ErrHistoryAccess, err)
	}

	baseCommit, err := lookupSpec(repo, cmp.Base)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("%w: base %q: %w", ErrHistoryAccess, cmp.Base, err)
	}
	defer baseCommit.Free()

	paths, err := rangeDiffPaths(repo, baseCommit, headCommit)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("%w: range diff: %w", ErrHistoryAccess, err)
	}

	return ChangeSet{Paths: paths, Mode: ModeDiff}, nil
}

// lookupSpec resolves a revision spec and loads its commit.
func lookupSpec(repo *gitlib.Repository, spec string) (*gitlib.Commit, error) {
	hash, err := repo.ResolveRevision(spec)
	if err != nil {
		return nil, err
	}

	return repo.LookupCommit(hash)
}

// rangeDiffPaths diffs the trees of two commits.
func rangeDiffPaths(repo *gitlib.Repository, base, head *gitlib.Commit) ([]string, error) {
	baseTree, err := base.Tree()
	if err != nil {
		return nil, fmt.Errorf("base tree: %w", err)
	}
	defer baseTree.Free()

	headTree, err := head.Tree()
	if err != nil {
		return nil, fmt.Errorf("head tree: %w", err)
	}
	defer headTree.Free()

	return gitlib.TreeDiffPaths(repo, baseTree, headTree)
}
