package gitlib_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/changegate/pkg/gitlib"
)

// testRepo wraps a throwaway repository for integration testing.
type testRepo struct {
	t       *testing.T
	path    string
	native  *git2go.Repository
	cleanup func()
}

// newTestRepo creates a new test repository.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	return &testRepo{
		t:      t,
		path:   dir,
		native: repo,
		cleanup: func() {
			repo.Free()
		},
	}
}

// createFile creates a file in the working directory.
func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	dir := filepath.Dir(path)

	if dir != tr.path {
		err := os.MkdirAll(dir, 0o755)
		require.NoError(tr.t, err)
	}

	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(tr.t, err)
}

// deleteFile removes a file from the working directory.
func (tr *testRepo) deleteFile(name string) {
	tr.t.Helper()

	err := os.Remove(filepath.Join(tr.path, name))
	require.NoError(tr.t, err)
}

// commit stages all changes (including deletions) and creates a commit.
func (tr *testRepo) commit(message string) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	require.NoError(tr.t, err)

	err = index.UpdateAll([]string{"*"}, nil)
	require.NoError(tr.t, err)

	err = index.Write()
	require.NoError(tr.t, err)

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Now(),
	}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// open opens the test repository through gitlib.
func (tr *testRepo) open() *gitlib.Repository {
	tr.t.Helper()

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(tr.t, err)

	tr.t.Cleanup(repo.Free)

	return repo
}

// Hash tests.

func TestHashRoundTrip(t *testing.T) {
	t.Parallel()

	const hexHash = "89abcdef0123456789abcdef0123456789abcdef"

	hash := gitlib.NewHash(hexHash)
	assert.Equal(t, hexHash, hash.String())
	assert.False(t, hash.IsZero())
}

func TestZeroHash(t *testing.T) {
	t.Parallel()

	assert.True(t, gitlib.ZeroHash().IsZero())
	assert.Equal(t, "0000000000000000000000000000000000000000", gitlib.ZeroHash().String())
	assert.True(t, gitlib.NewHash("0000000000000000000000000000000000000000").IsZero())
}

func TestNewHashInvalidInput(t *testing.T) {
	t.Parallel()

	assert.True(t, gitlib.NewHash("not hex at all!").IsZero())
	assert.True(t, gitlib.NewHash("").IsZero())
}

// Repository tests.

func TestOpenRepository(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("test.txt", "content")
	tr.commit("initial")

	repo := tr.open()

	assert.Equal(t, tr.path, repo.Path())
	assert.NotNil(t, repo.Native())
}

func TestOpenRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo, err := gitlib.OpenRepository("/nonexistent/path/to/repo")

	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}

func TestOpenRepositoryRejectsRemote(t *testing.T) {
	t.Parallel()

	for _, uri := range []string{"https://example.com/repo.git", "git@example.com:org/repo.git"} {
		repo, err := gitlib.OpenRepository(uri)

		assert.Nil(t, repo)
		require.ErrorIs(t, err, gitlib.ErrRemoteNotSupported)
	}
}

func TestRepositoryHead(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("test.txt", "hello")
	expectedHash := tr.commit("initial")

	repo := tr.open()

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, expectedHash, head)
}

// ResolveRevision tests.

func TestResolveRevisionByHash(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	hash := tr.commit("first")

	repo := tr.open()

	resolved, err := repo.ResolveRevision(hash.String())
	require.NoError(t, err)
	assert.Equal(t, hash, resolved)
}

func TestResolveRevisionHEAD(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	tr.commit("first")
	tr.createFile("b.txt", "b")
	second := tr.commit("second")

	repo := tr.open()

	resolved, err := repo.ResolveRevision("HEAD")
	require.NoError(t, err)
	assert.Equal(t, second, resolved)
}

func TestResolveRevisionNotFound(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	tr.commit("first")

	repo := tr.open()

	_, err := repo.ResolveRevision("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	require.ErrorIs(t, err, gitlib.ErrRevisionNotFound)

	_, err = repo.ResolveRevision("no-such-branch")
	require.ErrorIs(t, err, gitlib.ErrRevisionNotFound)
}

// Commit tests.

func TestLookupCommit(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("file.go", "package main")
	commitHash := tr.commit("add file\n\nbody text")

	repo := tr.open()

	commit, err := repo.LookupCommit(commitHash)
	require.NoError(t, err)

	defer commit.Free()

	assert.Equal(t, commitHash, commit.Hash())
	assert.Equal(t, "add file", commit.Summary())
	assert.Equal(t, "Test User", commit.Author().Name)
	assert.Equal(t, 0, commit.NumParents())
}

func TestLookupCommitNotFound(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("file.go", "package main")
	tr.commit("add file")

	repo := tr.open()

	_, err := repo.LookupCommit(gitlib.NewHash("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"))
	require.ErrorIs(t, err, gitlib.ErrRevisionNotFound)
}

// Change listing tests.

func TestCommitChangedPathsRootCommit(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("README.md", "readme")
	tr.createFile("src/app.js", "app")
	hash := tr.commit("initial")

	repo := tr.open()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	paths, err := gitlib.CommitChangedPaths(repo, commit)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "src/app.js"}, paths)
}

func TestCommitChangedPathsAgainstParent(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("README.md", "readme")
	tr.createFile("src/app.js", "app")
	tr.commit("initial")

	tr.createFile("src/app.js", "app v2")
	tr.createFile("docs/guide.md", "guide")
	hash := tr.commit("change app, add guide")

	repo := tr.open()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	paths, err := gitlib.CommitChangedPaths(repo, commit)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/guide.md", "src/app.js"}, paths)
}

func TestCommitChangedPathsDeletion(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("old.txt", "old")
	tr.createFile("keep.txt", "keep")
	tr.commit("initial")

	tr.deleteFile("old.txt")
	hash := tr.commit("remove old")

	repo := tr.open()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	paths, err := gitlib.CommitChangedPaths(repo, commit)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.txt"}, paths)
}

func TestTreeDiffPathsRange(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	base := tr.commit("first")

	tr.createFile("b.txt", "b")
	tr.commit("second")

	tr.createFile("a.txt", "a v2")
	head := tr.commit("third")

	repo := tr.open()

	baseCommit, err := repo.LookupCommit(base)
	require.NoError(t, err)

	defer baseCommit.Free()

	headCommit, err := repo.LookupCommit(head)
	require.NoError(t, err)

	defer headCommit.Free()

	baseTree, err := baseCommit.Tree()
	require.NoError(t, err)

	defer baseTree.Free()

	headTree, err := headCommit.Tree()
	require.NoError(t, err)

	defer headTree.Free()

	paths, err := gitlib.TreeDiffPaths(repo, baseTree, headTree)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths)
}

func TestTreeDiffPathsIdenticalTrees(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	hash := tr.commit("first")

	repo := tr.open()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	tree, err := commit.Tree()
	require.NoError(t, err)

	defer tree.Free()

	paths, err := gitlib.TreeDiffPaths(repo, tree, tree)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestParentNotFound(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	hash := tr.commit("first")

	repo := tr.open()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	_, err = commit.Parent(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gitlib.ErrParentNotFound))
}
