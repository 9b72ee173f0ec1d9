// Package safety screens student-authored text before it reaches the model.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Result is the outcome of screening one message.
type Result struct {
	Allowed      bool     `json:"allowed"`
	Reason       string   `json:"reason,omitempty"`
	FlaggedTerms []string `json:"flagged_terms,omitempty"`
}

// Gate classifies a message as allowed or blocked against an immutable
// rule set. Check never errors; an empty rule set allows everything.
type Gate struct {
	terms    []string
	patterns []*regexp.Regexp
}

// New builds a gate from blocked terms and regex patterns. Terms match
// case-insensitively as substrings. An invalid pattern fails construction.
func New(terms []string, patterns []string) (*Gate, error) {
	g := &Gate{}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			g.terms = append(g.terms, t)
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid safety pattern %q: %w", p, err)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// Check screens one message. All matching terms are reported so the
// caller can show the student what was flagged.
func (g *Gate) Check(text string) Result {
	lower := strings.ToLower(text)

	var flagged []string
	for _, term := range g.terms {
		if strings.Contains(lower, term) {
			flagged = append(flagged, term)
		}
	}
	if len(flagged) > 0 {
		return Result{
			Allowed:      false,
			Reason:       "message contains blocked terms",
			FlaggedTerms: flagged,
		}
	}

	for _, re := range g.patterns {
		if m := re.FindString(text); m != "" {
			return Result{
				Allowed:      false,
				Reason:       "message matches a blocked pattern",
				FlaggedTerms: []string{m},
			}
		}
	}

	return Result{Allowed: true}
}

// DefaultTerms returns the built-in blocked term list. Deployments
// extend or replace it through configuration.
func DefaultTerms() []string {
	return []string{
		"kill yourself",
		"kys",
		"idiot",
		"stupid",
		"shut up",
		"hate you",
	}
}
