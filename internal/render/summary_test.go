package render_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/changegate/internal/decision"
	"github.com/Sumatoshi-tech/changegate/internal/render"
)

func TestSummaryRun(t *testing.T) {
	doc := &decision.Decision{
		ShouldRun:    true,
		Workflow:     "full",
		Reason:       "2 relevant paths changed: src/a.js, src/b.js",
		MatchedPaths: []string{"src/a.js", "src/b.js"},
		ChangedFiles: 3,
		Strategy:     "range",
		Languages:    map[string]int{"JavaScript": 2},
	}

	var buf bytes.Buffer

	render.Summary(&buf, doc, render.Options{NoColor: true})

	out := buf.String()
	assert.Contains(t, out, "RUN full")
	assert.Contains(t, out, "changed files: 3")
	assert.Contains(t, out, "matched paths: 2")
	assert.Contains(t, out, "strategy: range")
	assert.Contains(t, out, "src/a.js")
	assert.Contains(t, out, "JavaScript: 2")
}

func TestSummarySkip(t *testing.T) {
	doc := &decision.Decision{
		ShouldRun:    false,
		Workflow:     "skip",
		Reason:       "no relevant paths changed",
		MatchedPaths: []string{},
		ChangedFiles: 1,
	}

	var buf bytes.Buffer

	render.Summary(&buf, doc, render.Options{NoColor: true})

	out := buf.String()
	assert.Contains(t, out, "SKIP (workflow skip)")
	assert.Contains(t, out, "no relevant paths changed")
	assert.NotContains(t, out, "PATH")
}

func TestSummaryFallback(t *testing.T) {
	doc := &decision.Decision{
		ShouldRun:    true,
		Workflow:     "full",
		Reason:       "decision engine failure; defaulting to full run: boom",
		MatchedPaths: []string{},
		FallbackUsed: true,
	}

	var buf bytes.Buffer

	render.Summary(&buf, doc, render.Options{NoColor: true})

	assert.Contains(t, buf.String(), "fallback comparison used")
}

func TestSummaryTruncatesLongTable(t *testing.T) {
	matched := make([]string, 30)
	for i := range matched {
		matched[i] = fmt.Sprintf("src/file%02d.go", i)
	}

	doc := &decision.Decision{
		ShouldRun:    true,
		Workflow:     "full",
		Reason:       "relevant paths changed",
		MatchedPaths: matched,
		ChangedFiles: 30,
	}

	var buf bytes.Buffer

	render.Summary(&buf, doc, render.Options{NoColor: true})

	out := buf.String()
	assert.Contains(t, out, "src/file00.go")
	assert.NotContains(t, out, "src/file29.go")
	assert.Contains(t, out, "and 5 more")
}
