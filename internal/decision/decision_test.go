package decision_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/changegate/internal/decision"
)

func TestSelectMatched(t *testing.T) {
	t.Parallel()

	d := decision.Select(decision.SelectInput{
		Matched:      []string{"src/app.js", "src/util.js"},
		ChangedFiles: 5,
		Strategy:     "range",
		Base:         "def456",
		Head:         "abc123",
		Variants:     decision.DefaultVariants(),
	})

	assert.True(t, d.ShouldRun)
	assert.Equal(t, "full", d.Workflow)
	assert.Equal(t, []string{"src/app.js", "src/util.js"}, d.MatchedPaths)
	assert.False(t, d.FallbackUsed)
	assert.Contains(t, d.Reason, "src/app.js")
	assert.Equal(t, 5, d.ChangedFiles)
	assert.Equal(t, map[string]int{"JavaScript": 2}, d.Languages)
}

func TestSelectNoMatches(t *testing.T) {
	t.Parallel()

	d := decision.Select(decision.SelectInput{
		Matched:      nil,
		ChangedFiles: 1,
		FallbackUsed: true,
		Strategy:     "single",
		Head:         "abc123",
		Variants:     decision.DefaultVariants(),
	})

	assert.False(t, d.ShouldRun)
	assert.Equal(t, "skip", d.Workflow)
	assert.NotNil(t, d.MatchedPaths)
	assert.Empty(t, d.MatchedPaths)
	assert.True(t, d.FallbackUsed)
	assert.Equal(t, "no relevant paths changed", d.Reason)
}

func TestSelectDeterministic(t *testing.T) {
	t.Parallel()

	in := decision.SelectInput{
		Matched:      []string{"a.go", "b.go"},
		ChangedFiles: 2,
		Variants:     decision.DefaultVariants(),
	}

	assert.Equal(t, decision.Select(in), decision.Select(in))
}

func TestSelectReasonTruncation(t *testing.T) {
	t.Parallel()

	matched := []string{"a.go", "b.go", "c.go", "d.go", "e.go", "f.go", "g.go"}

	d := decision.Select(decision.SelectInput{Matched: matched, ChangedFiles: 7, Variants: decision.DefaultVariants()})

	assert.Contains(t, d.Reason, "7 relevant path(s)")
	assert.Contains(t, d.Reason, "and 2 more")
	assert.NotContains(t, d.Reason, "g.go")
	assert.Len(t, d.MatchedPaths, 7)
}

func TestDefaultDecision(t *testing.T) {
	t.Parallel()

	d := decision.DefaultDecision(decision.DefaultVariants(), "history access failed", true)

	assert.True(t, d.ShouldRun)
	assert.Equal(t, "full", d.Workflow)
	assert.True(t, d.FallbackUsed)
	assert.Contains(t, d.Reason, "defaulting to full run")
	assert.Contains(t, d.Reason, "history access failed")
}

func TestDefaultDecisionWithoutResolverFallback(t *testing.T) {
	t.Parallel()

	d := decision.DefaultDecision(decision.DefaultVariants(), "history access failed", false)

	assert.True(t, d.ShouldRun)
	assert.False(t, d.FallbackUsed)
}

func TestEmitJSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := decision.Select(decision.SelectInput{
		Matched:      []string{"src/app.js"},
		ChangedFiles: 2,
		Strategy:     "range",
		Base:         "def456",
		Head:         "abc123",
		Variants:     decision.DefaultVariants(),
	})

	var buf strings.Builder

	err := decision.Emitter{Format: decision.FormatJSON}.Emit(original, &buf)
	require.NoError(t, err)

	parsed, err := decision.Parse([]byte(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestEmitYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	original := decision.Select(decision.SelectInput{
		Matched:      []string{},
		ChangedFiles: 1,
		FallbackUsed: true,
		Strategy:     "single",
		Head:         "abc123",
		Variants:     decision.DefaultVariants(),
	})

	var buf strings.Builder

	err := decision.Emitter{Format: decision.FormatYAML}.Emit(original, &buf)
	require.NoError(t, err)

	parsed, err := decision.Parse([]byte(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestEmitUnknownFormat(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	err := decision.Emitter{Format: "xml"}.Emit(decision.Decision{}, &buf)
	require.ErrorIs(t, err, decision.ErrEmit)
	assert.Empty(t, buf.String())
}

func TestEmitInvalidDocumentRejectedBeforeWrite(t *testing.T) {
	t.Parallel()

	// Empty workflow and reason violate the schema; nothing reaches the sink.
	var buf strings.Builder

	err := decision.Emitter{}.Emit(decision.Decision{MatchedPaths: []string{}}, &buf)
	require.ErrorIs(t, err, decision.ErrEmit)
	assert.Empty(t, buf.String())
}

func TestEmitFailingSink(t *testing.T) {
	t.Parallel()

	d := decision.DefaultDecision(decision.DefaultVariants(), "x", true)

	err := decision.Emitter{}.Emit(d, failingWriter{})
	require.ErrorIs(t, err, decision.ErrEmit)
}

func TestParseGarbage(t *testing.T) {
	t.Parallel()

	_, err := decision.Parse([]byte("{not json"))
	require.ErrorIs(t, err, decision.ErrEmit)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}
