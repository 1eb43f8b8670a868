package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/changegate/internal/policy"
)

func runPolicy(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()

	cmd := NewPolicyCommand()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	return &out, cmd.Execute()
}

func TestPolicyCheckOK(t *testing.T) {
	isolateConfig(t)

	out, err := runPolicy(t, "check", "--pattern", `\.go$`, "--pattern", `^Makefile$`, "--no-color")

	require.NoError(t, err)
	assert.Contains(t, out.String(), "policy ok (2 patterns)")
}

func TestPolicyCheckFile(t *testing.T) {
	isolateConfig(t)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns:\n  - '\\.go$'\n"), 0o600))

	out, err := runPolicy(t, "check", "--policy", path, "--no-color")

	require.NoError(t, err)
	assert.Contains(t, out.String(), "policy ok (1 patterns)")
}

func TestPolicyCheckBadPattern(t *testing.T) {
	isolateConfig(t)

	_, err := runPolicy(t, "check", "--pattern", "[", "--no-color")

	require.ErrorIs(t, err, policy.ErrPolicy)
}

func TestPolicyCheckNoSource(t *testing.T) {
	isolateConfig(t)

	_, err := runPolicy(t, "check", "--no-color")

	require.ErrorIs(t, err, ErrNoPolicySource)
}

func TestPolicyMatch(t *testing.T) {
	isolateConfig(t)

	out, err := runPolicy(t, "match", "src/app.go", "docs/readme.md", "--pattern", `\.go$`, "--no-color")

	require.NoError(t, err)
	assert.Contains(t, out.String(), "match    src/app.go")
	assert.Contains(t, out.String(), "no match docs/readme.md")
}
