// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/changegate/pkg/gitlib"
)

// Repo is a throwaway repository with helpers for staging and committing.
type Repo struct {
	T      *testing.T
	Path   string
	native *git2go.Repository
}

// New creates an empty repository in a temp directory.
func New(t *testing.T) *Repo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &Repo{T: t, Path: dir, native: repo}
}

// WriteFile creates or overwrites a file in the working directory.
func (r *Repo) WriteFile(name, content string) {
	r.T.Helper()

	path := filepath.Join(r.Path, name)
	dir := filepath.Dir(path)

	if dir != r.Path {
		err := os.MkdirAll(dir, 0o755)
		require.NoError(r.T, err)
	}

	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(r.T, err)
}

// RemoveFile deletes a file from the working directory.
func (r *Repo) RemoveFile(name string) {
	r.T.Helper()

	err := os.Remove(filepath.Join(r.Path, name))
	require.NoError(r.T, err)
}

// Commit stages all changes (including deletions) and commits them.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.T.Helper()

	index, err := r.native.Index()
	require.NoError(r.T, err)

	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	require.NoError(r.T, err)

	err = index.UpdateAll([]string{"*"}, nil)
	require.NoError(r.T, err)

	err = index.Write()
	require.NoError(r.T, err)

	treeID, err := index.WriteTree()
	require.NoError(r.T, err)

	tree, err := r.native.LookupTree(treeID)
	require.NoError(r.T, err)

	defer tree.Free()

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Now(),
	}

	var parents []*git2go.Commit

	head, err := r.native.Head()
	if err == nil {
		headCommit, lookupErr := r.native.LookupCommit(head.Target())
		require.NoError(r.T, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := r.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(r.T, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// Open opens the repository through gitlib and registers cleanup.
func (r *Repo) Open() *gitlib.Repository {
	r.T.Helper()

	repo, err := gitlib.OpenRepository(r.Path)
	require.NoError(r.T, err)

	r.T.Cleanup(repo.Free)

	return repo
}
