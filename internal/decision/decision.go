// Package decision produces and serializes the pipeline decision record.
package decision

import (
	"fmt"
	"strings"

	"github.com/src-d/enry/v2"
)

// maxReasonPaths bounds how many matched paths are named in the reason
// string; the full list is always in MatchedPaths.
const maxReasonPaths = 5

// Variants are the named workflow variants a decision can select.
type Variants struct {
	Run  string
	Skip string
}

// DefaultVariants returns the standard workflow variant names.
func DefaultVariants() Variants {
	return Variants{Run: "full", Skip: "skip"}
}

// Decision is the output contract consumed by the CI orchestrator.
// It is created once per invocation and never persisted.
type Decision struct {
	ShouldRun    bool           `json:"should_run" yaml:"should_run"`
	Workflow     string         `json:"workflow" yaml:"workflow"`
	Reason       string         `json:"reason" yaml:"reason"`
	MatchedPaths []string       `json:"matched_paths" yaml:"matched_paths"`
	FallbackUsed bool           `json:"fallback_used" yaml:"fallback_used"`
	Strategy     string         `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Base         string         `json:"base,omitempty" yaml:"base,omitempty"`
	Head         string         `json:"head,omitempty" yaml:"head,omitempty"`
	ChangedFiles int            `json:"changed_files" yaml:"changed_files"`
	Languages    map[string]int `json:"languages,omitempty" yaml:"languages,omitempty"`
}

// SelectInput carries everything the selector needs. All fields are
// value types; selection is a pure function of this input.
type SelectInput struct {
	Matched      []string
	ChangedFiles int
	FallbackUsed bool
	Strategy     string
	Base         string
	Head         string
	Variants     Variants
}

// Select maps the relevance verdict to a workflow variant. Deterministic:
// identical inputs always yield identical decisions.
func Select(in SelectInput) Decision {
	d := Decision{
		MatchedPaths: in.Matched,
		FallbackUsed: in.FallbackUsed,
		Strategy:     in.Strategy,
		Base:         in.Base,
		Head:         in.Head,
		ChangedFiles: in.ChangedFiles,
	}

	if d.MatchedPaths == nil {
		d.MatchedPaths = []string{}
	}

	if len(in.Matched) == 0 {
		d.ShouldRun = false
		d.Workflow = in.Variants.Skip
		d.Reason = "no relevant paths changed"

		return d
	}

	d.ShouldRun = true
	d.Workflow = in.Variants.Run
	d.Reason = matchReason(in.Matched)
	d.Languages = languageBreakdown(in.Matched)

	return d
}

// DefaultDecision is the conservative default emitted when the engine
// itself fails: always run everything. fallbackUsed reports whether
// revision resolution degraded to single-commit mode before the
// failure, not the failure itself.
func DefaultDecision(variants Variants, cause string, fallbackUsed bool) Decision {
	return Decision{
		ShouldRun:    true,
		Workflow:     variants.Run,
		Reason:       "decision engine failure; defaulting to full run: " + cause,
		MatchedPaths: []string{},
		FallbackUsed: fallbackUsed,
	}
}

// matchReason names the matched paths, truncating long lists.
func matchReason(matched []string) string {
	shown := matched
	if len(shown) > maxReasonPaths {
		shown = shown[:maxReasonPaths]
	}

	reason := fmt.Sprintf("%d relevant path(s) changed: %s", len(matched), strings.Join(shown, ", "))
	if len(matched) > maxReasonPaths {
		reason += fmt.Sprintf(" (and %d more)", len(matched)-maxReasonPaths)
	}

	return reason
}

// languageBreakdown counts matched paths per language, classified by
// file extension. Unclassifiable paths are grouped under "Other".
func languageBreakdown(paths []string) map[string]int {
	langs := make(map[string]int, len(paths))

	for _, path := range paths {
		lang, _ := enry.GetLanguageByExtension(path)
		if lang == "" {
			lang = "Other"
		}

		langs[lang]++
	}

	return langs
}
