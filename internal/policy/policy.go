// Package policy defines which changed paths matter for CI.
//
// Pattern semantics: Go (RE2) regular expressions, case-sensitive,
// unanchored, matched against the slash-separated repository-relative
// path. Matching is a logical OR over the pattern list; order never
// affects the outcome, only which pattern short-circuits first.
package policy

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrPolicy is the sentinel for malformed pattern configuration. It is
// fatal at startup, before any revision work begins.
var ErrPolicy = errors.New("invalid relevance policy")

// Policy is the external configuration: an ordered list of patterns.
// An empty list is valid and matches nothing.
type Policy struct {
	Patterns []string `yaml:"patterns" mapstructure:"patterns"`
}

// LoadFile reads a policy from a YAML file with a top-level
// `patterns:` list.
func LoadFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: read %s: %w", ErrPolicy, path, err)
	}

	var p Policy

	err = yaml.Unmarshal(data, &p)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: parse %s: %w", ErrPolicy, path, err)
	}

	return p, nil
}

// Compiled is a policy with its patterns compiled, ready for matching.
type Compiled struct {
	patterns []*regexp.Regexp
}

// Compile compiles every pattern. The first malformed pattern aborts
// with an error wrapping ErrPolicy that names the offender.
func (p Policy) Compile() (*Compiled, error) {
	compiled := make([]*regexp.Regexp, 0, len(p.Patterns))

	for _, pattern := range p.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %w", ErrPolicy, pattern, err)
		}

		compiled = append(compiled, re)
	}

	return &Compiled{patterns: compiled}, nil
}

// Match reports whether any pattern matches the path.
func (c *Compiled) Match(path string) bool {
	for _, re := range c.patterns {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}

// FilterPaths returns the sub-slice of paths matching the policy, in
// input order. Empty input yields an empty (non-nil) result.
func (c *Compiled) FilterPaths(paths []string) []string {
	matched := make([]string, 0, len(paths))

	for _, path := range paths {
		if c.Match(path) {
			matched = append(matched, path)
		}
	}

	return matched
}

// Len returns the number of compiled patterns.
func (c *Compiled) Len() int {
	return len(c.patterns)
}
