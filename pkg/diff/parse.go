package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ChangeKind identifies the role of a single line inside a hunk.
type ChangeKind int

const (
	// ChangeContext is an unchanged line carried for locating the hunk.
	ChangeContext ChangeKind = iota
	// ChangeDeletion is a line removed from the old version.
	ChangeDeletion
	// ChangeAddition is a line inserted in the new version.
	ChangeAddition
)

// Change is one typed line of a hunk. Text carries the line without its
// leading marker and without a trailing newline.
type Change struct {
	Kind ChangeKind
	Text string
}

// Hunk is one contiguous block of a unified diff. Start values are 1-based
// line numbers as declared by the hunk header; counts are the declared sizes
// and may drift from the actual change lines by a small tolerance when the
// diff was produced from blank-line-stripped input.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Changes  []Change
}

// Patch is an ordered sequence of hunks parsed from unified-diff text. File
// header lines are informational only and are not retained.
type Patch struct {
	Hunks []Hunk
}

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse converts unified-diff text into a structured Patch.
//
// File header lines ("---", "+++") are skipped. Every "@@" line must match
// the hunk header grammar or parsing fails with a MALFORMED_HUNK_HEADER
// error. Inside a hunk, lines prefixed with space, '-' and '+' become
// Context, Deletion and Addition changes; a line starting with '\' (such as
// the "no newline at end of file" marker) ends content collection for the
// current hunk; anything else is ignored. Empty input, or input without any
// "@@" line, yields a Patch with zero hunks rather than an error.
func Parse(diffText string) (*Patch, error) {
	patch := &Patch{}
	var current *Hunk
	collecting := false

	for _, line := range splitLines(diffText) {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			continue
		}

		if strings.HasPrefix(line, "@@") {
			if current != nil {
				patch.Hunks = append(patch.Hunks, *current)
			}
			hunk, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			current = hunk
			collecting = true
			continue
		}

		if current == nil || !collecting || line == "" {
			continue
		}

		switch line[0] {
		case ' ':
			current.Changes = append(current.Changes, Change{Kind: ChangeContext, Text: line[1:]})
		case '-':
			current.Changes = append(current.Changes, Change{Kind: ChangeDeletion, Text: line[1:]})
		case '+':
			current.Changes = append(current.Changes, Change{Kind: ChangeAddition, Text: line[1:]})
		case '\\':
			// End-of-content marker; the rest of this hunk is not diff body.
			collecting = false
		}
	}

	if current != nil {
		patch.Hunks = append(patch.Hunks, *current)
	}
	return patch, nil
}

// parseHunkHeader decodes "@@ -start[,count] +start[,count] @@". Absent
// counts default to 1, matching standard patch tooling.
func parseHunkHeader(line string) (*Hunk, error) {
	match := hunkHeaderPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, &Error{
			Code:    CodeMalformedHunkHeader,
			Message: fmt.Sprintf("invalid hunk header: %s", line),
		}
	}
	return &Hunk{
		OldStart: mustAtoiDefault(match[1], 1),
		OldCount: mustAtoiDefault(match[2], 1),
		NewStart: mustAtoiDefault(match[3], 1),
		NewCount: mustAtoiDefault(match[4], 1),
	}, nil
}

func mustAtoiDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	value, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return value
}

// ContextChanges returns the hunk's context lines in order.
func (h Hunk) ContextChanges() []Change {
	var out []Change
	for _, change := range h.Changes {
		if change.Kind == ChangeContext {
			out = append(out, change)
		}
	}
	return out
}

// NewLines returns the lines the hunk produces in the new version (context
// plus additions), each normalized to end with a newline.
func (h Hunk) NewLines() []string {
	var out []string
	for _, change := range h.Changes {
		if change.Kind == ChangeDeletion {
			continue
		}
		text := change.Text
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		out = append(out, text)
	}
	return out
}

func splitLines(input string) []string {
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}
