// Package revision decides how two revision identifiers are compared.
//
// CI systems hand the tool a base revision that is frequently unusable:
// empty on API-triggered builds, the all-zero sentinel on first pushes,
// or absent from local history in shallow clones. Resolution therefore
// never fails; every ambiguity degrades to inspecting the head revision
// alone so the calling pipeline always reaches a decision.
package revision

import (
	"strings"

	"github.com/Sumatoshi-tech/changegate/pkg/gitlib"
)

// Strategy identifies how the change set will be computed.
type Strategy int

const (
	// StrategyRange diffs the base revision against the head revision.
	StrategyRange Strategy = iota
	// StrategySingle inspects the head revision's own change list.
	StrategySingle
)

// String returns the wire name of the strategy.
func (s Strategy) String() string {
	if s == StrategyRange {
		return "range"
	}

	return "single"
}

// zeroSentinel is the all-zero revision CI vendors send when no
// previous commit exists.
const zeroSentinel = "0000000000000000000000000000000000000000"

// Comparison is the resolved plan for change extraction. Head is carried
// as an opaque spec; it is resolved during extraction so that a bad head
// surfaces as a history access failure there, not here.
type Comparison struct {
	Strategy     Strategy
	Base         string
	Head         string
	FallbackUsed bool
}

// Resolve determines the comparison strategy for the given base and head
// specs. It returns StrategyRange only when base names a commit present
// in the locally accessible history; otherwise it degrades to
// StrategySingle with FallbackUsed set. Resolve never returns an error.
func Resolve(repo *gitlib.Repository, base, head string) Comparison {
	base = strings.TrimSpace(base)

	if base == "" || base == zeroSentinel {
		return Comparison{Strategy: StrategySingle, Head: head, FallbackUsed: true}
	}

	_, err := repo.ResolveRevision(base)
	if err != nil {
		// Shallow clone, unknown ref, or garbage input. Degrade rather
		// than fail; the distinction is recorded via FallbackUsed.
		return Comparison{Strategy: StrategySingle, Head: head, FallbackUsed: true}
	}

	return Comparison{Strategy: StrategyRange, Base: base, Head: head}
}
