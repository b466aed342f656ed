package diff

import (
	"fmt"
	"strings"
	"unicode"
)

// MatchPolicy selects how context lines are compared against the target file.
// The validator and the applier share one policy so a diff that validates
// also applies under the same rules.
type MatchPolicy int

const (
	// MatchStrippedWhitespace compares lines with all whitespace removed.
	// This is the default: generated markup frequently differs only in
	// indentation churn.
	MatchStrippedWhitespace MatchPolicy = iota
	// MatchNormalizedWhitespace collapses interior whitespace runs to a
	// single space and trims the ends before comparing.
	MatchNormalizedWhitespace
	// MatchExact requires byte equality.
	MatchExact
)

// String returns the CLI-facing name of the policy.
func (p MatchPolicy) String() string {
	switch p {
	case MatchNormalizedWhitespace:
		return "normalized"
	case MatchExact:
		return "exact"
	default:
		return "stripped"
	}
}

// ParseMatchPolicy resolves a CLI/env policy name.
func ParseMatchPolicy(name string) (MatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "stripped":
		return MatchStrippedWhitespace, nil
	case "normalized":
		return MatchNormalizedWhitespace, nil
	case "exact":
		return MatchExact, nil
	default:
		return MatchStrippedWhitespace, fmt.Errorf("unknown match policy %q", name)
	}
}

// matchLine reports whether actual satisfies expected under the policy.
func matchLine(policy MatchPolicy, expected, actual string) bool {
	switch policy {
	case MatchExact:
		return expected == actual
	case MatchNormalizedWhitespace:
		return collapseWhitespace(expected) == collapseWhitespace(actual)
	default:
		return stripWhitespace(expected) == stripWhitespace(actual)
	}
}

// findContext scans forward from index from looking for a line that matches
// text under the policy. The scan is relaxed on purpose: it confirms the
// expected text still exists at or after the declared offset, not that it
// sits at the exact position.
func findContext(lines []string, from int, text string, policy MatchPolicy) bool {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(lines); i++ {
		// Buffers may carry newline-terminated lines; context text never
		// does.
		if matchLine(policy, text, strings.TrimSuffix(lines[i], "\n")) {
			return true
		}
	}
	return false
}

// contextHolds checks every non-blank context line of the hunk against the
// buffer starting at the hunk's declared old offset. Hunks without non-blank
// context (pure insertions) always hold.
func contextHolds(lines []string, hunk Hunk, start int, policy MatchPolicy) bool {
	for _, change := range hunk.ContextChanges() {
		if strings.TrimSpace(change.Text) == "" {
			continue
		}
		if !findContext(lines, start, change.Text, policy) {
			return false
		}
	}
	return true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripWhitespace(s string) string {
	if s == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
