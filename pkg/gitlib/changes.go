package gitlib

import (
	"fmt"
	"sort"

	git2go "github.com/libgit2/git2go/v34"
)

// TreeDiffPaths returns the repository-relative paths of files differing
// between two trees, deduplicated and sorted. Renames contribute both
// sides so a relevance match on either name triggers.
// Skips the diff entirely when both tree OIDs are equal.
func TreeDiffPaths(repo *Repository, oldTree, newTree *Tree) ([]string, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return []string{}, nil
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	numDeltas, numErr := diff.NumDeltas()
	if numErr != nil {
		return nil, fmt.Errorf("get num deltas: %w", numErr)
	}

	seen := make(map[string]struct{}, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("get delta %d: %w", i, deltaErr)
		}

		switch delta.Status {
		case git2go.DeltaAdded:
			seen[delta.NewFile.Path] = struct{}{}
		case git2go.DeltaDeleted:
			seen[delta.OldFile.Path] = struct{}{}
		case git2go.DeltaModified, git2go.DeltaRenamed, git2go.DeltaCopied, git2go.DeltaTypeChange:
			seen[delta.OldFile.Path] = struct{}{}
			seen[delta.NewFile.Path] = struct{}{}
		case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
			git2go.DeltaUnreadable, git2go.DeltaConflicted:
			continue
		}
	}

	return sortedPaths(seen), nil
}

// CommitChangedPaths returns the paths touched by a single commit: the
// diff against its first parent, or every blob in the tree for a root
// commit. Merge commits follow the first parent, matching what a CI
// build of the merge result sees as "this push".
func CommitChangedPaths(repo *Repository, commit *Commit) ([]string, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}
	defer tree.Free()

	if commit.NumParents() == 0 {
		return treeBlobPaths(repo, tree)
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("first parent: %w", err)
	}
	defer parent.Free()

	parentTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("parent tree: %w", err)
	}
	defer parentTree.Free()

	return TreeDiffPaths(repo, parentTree, tree)
}

// treeBlobPaths lists every blob path in a tree. Used for root commits
// where everything counts as an insertion.
func treeBlobPaths(repo *Repository, tree *Tree) ([]string, error) {
	seen := make(map[string]struct{})

	err := walkTree(repo, tree, "", func(path string, entry *TreeEntry) error {
		if entry.IsBlob() {
			seen[path] = struct{}{}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return sortedPaths(seen), nil
}

// walkTree recursively walks a tree and calls the callback for each entry.
func walkTree(repo *Repository, tree *Tree, prefix string, cb func(path string, entry *TreeEntry) error) error {
	count := tree.EntryCount()

	for i := range count {
		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		walkErr := processTreeEntry(repo, entry, prefix, cb)
		if walkErr != nil {
			return walkErr
		}
	}

	return nil
}

// processTreeEntry handles a single tree entry, either calling cb for blobs or recursing for subtrees.
func processTreeEntry(repo *Repository, entry *TreeEntry, prefix string, cb func(path string, entry *TreeEntry) error) error {
	path := entry.Name()
	if prefix != "" {
		path = prefix + "/" + path
	}

	if entry.IsBlob() {
		return cb(path, entry)
	}

	if entry.Type() != git2go.ObjectTree {
		return nil
	}

	subtree, lookupErr := repo.LookupTree(entry.Hash())
	if lookupErr != nil {
		return nil // Skip entries we can't look up.
	}
	defer subtree.Free()

	return walkTree(repo, subtree, path, cb)
}

func sortedPaths(seen map[string]struct{}) []string {
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}
