// Package render prints human-readable decision summaries.
package render

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/changegate/internal/decision"
)

// maxTablePaths bounds the matched-path table to keep terminal output
// readable on large changesets.
const maxTablePaths = 25

// Options controls summary rendering.
type Options struct {
	NoColor bool
	// Elapsed is the wall time of the evaluation; zero omits the line.
	Elapsed time.Duration
}

// Summary writes a human-readable rendition of a decision to w.
// The machine-readable document goes to the configured sink; this view
// is for the person watching the CI log.
func Summary(w io.Writer, doc *decision.Decision, opts Options) {
	if opts.NoColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	writeVerdict(w, doc)

	fmt.Fprintf(w, "  changed files: %s\n", humanize.Comma(int64(doc.ChangedFiles)))
	fmt.Fprintf(w, "  matched paths: %s\n", humanize.Comma(int64(len(doc.MatchedPaths))))

	if doc.Strategy != "" {
		fmt.Fprintf(w, "  strategy: %s\n", doc.Strategy)
	}

	if doc.FallbackUsed {
		color.New(color.FgYellow).Fprintf(w, "  fallback comparison used\n")
	}

	if opts.Elapsed > 0 {
		fmt.Fprintf(w, "  elapsed: %s\n", opts.Elapsed.Round(time.Millisecond))
	}

	if len(doc.MatchedPaths) > 0 {
		fmt.Fprintf(w, "\n%s\n", matchedTable(doc))
	}
}

func writeVerdict(w io.Writer, doc *decision.Decision) {
	if doc.ShouldRun {
		color.New(color.FgGreen).Fprintf(w, "RUN %s\n", doc.Workflow)
	} else {
		color.New(color.FgCyan).Fprintf(w, "SKIP (workflow %s)\n", doc.Workflow)
	}

	fmt.Fprintf(w, "  reason: %s\n", doc.Reason)
}

// matchedTable renders the matched paths with their detected language.
func matchedTable(doc *decision.Decision) string {
	paths := doc.MatchedPaths
	truncated := 0

	if len(paths) > maxTablePaths {
		truncated = len(paths) - maxTablePaths
		paths = paths[:maxTablePaths]
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"path", "ext"})

	for _, p := range paths {
		tbl.AppendRow(table.Row{p, strings.TrimPrefix(path.Ext(p), ".")})
	}

	if truncated > 0 {
		tbl.AppendFooter(table.Row{fmt.Sprintf("and %d more", truncated)})
	}

	out := tbl.Render()

	if len(doc.Languages) > 0 {
		out += "\n" + languageLine(doc.Languages)
	}

	return out
}

func languageLine(langs map[string]int) string {
	names := make([]string, 0, len(langs))
	for name := range langs {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %d", name, langs[name]))
	}

	return "languages: " + strings.Join(parts, " | ")
}
