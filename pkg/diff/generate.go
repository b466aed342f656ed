package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContextLines is the context width used when none is configured.
const DefaultContextLines = 3

// Generator produces unified-diff text between two versions of a document
// using an LCS-based line differ.
//
// Both inputs are stripped of blank (whitespace-only) lines before diffing.
// The downstream documents are markup-like, where blank-line-only differences
// are formatting noise rather than meaningful edits; including them produces
// spurious hunks.
type Generator struct {
	// ContextLines is the number of unchanged lines emitted on each side of
	// a change run. Zero means DefaultContextLines.
	ContextLines int
}

// Generate returns the unified diff between original and modified, labelled
// with "a/<path>" and "b/<path>" file headers. When the blank-line-filtered
// inputs are identical it returns the empty string; callers treat that as
// the "no changes" signal, not as an error.
func (g Generator) Generate(original, modified, path string) (string, error) {
	context := g.ContextLines
	if context <= 0 {
		context = DefaultContextLines
	}

	unified := difflib.UnifiedDiff{
		A:        nonBlankLines(original),
		B:        nonBlankLines(modified),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  context,
		Eol:      "\n",
	}

	text, err := difflib.GetUnifiedDiffString(unified)
	if err != nil {
		return "", fmt.Errorf("generate unified diff: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}

// GenerateMarkup normalizes line endings before delegating to Generate. It
// exists to keep diffs stable across insignificant line-ending and blank-line
// churn in generated markup; interior whitespace is left untouched.
func (g Generator) GenerateMarkup(original, modified, path string) (string, error) {
	return g.Generate(normalizeLineEndings(original), normalizeLineEndings(modified), path)
}

// Generate is a convenience wrapper around Generator with default settings.
func Generate(original, modified, path string) (string, error) {
	return Generator{}.Generate(original, modified, path)
}

// nonBlankLines splits content into newline-terminated lines with all
// whitespace-only lines removed.
func nonBlankLines(content string) []string {
	var out []string
	for _, line := range splitLines(content) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line+"\n")
	}
	return out
}

func normalizeLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}
