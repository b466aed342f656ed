// Package render turns engine results into terminal output: colorized diff
// text and markdown validation reports.
package render

import (
	"fmt"
	"strings"

	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asynkron/patchkit/pkg/diff"
)

// Styles groups the lipgloss styles used for diff rendering.
type Styles struct {
	FileHeader lipgloss.Style
	HunkHeader lipgloss.Style
	Addition   lipgloss.Style
	Deletion   lipgloss.Style
	Context    lipgloss.Style
}

// DefaultStyles returns the standard diff palette. When the terminal
// advertises no color support every style collapses to a no-op so output
// stays pipe-friendly.
func DefaultStyles() Styles {
	if termenv.EnvColorProfile() == termenv.Ascii {
		plain := lipgloss.NewStyle()
		return Styles{FileHeader: plain, HunkHeader: plain, Addition: plain, Deletion: plain, Context: plain}
	}
	return Styles{
		FileHeader: lipgloss.NewStyle().Bold(true),
		HunkHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Addition:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Deletion:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Context:    lipgloss.NewStyle().Faint(true),
	}
}

// Diff colorizes unified-diff text line by line.
func Diff(diffText string, styles Styles) string {
	lines := strings.Split(strings.TrimRight(diffText, "\n"), "\n")
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			rendered = append(rendered, styles.FileHeader.Render(line))
		case strings.HasPrefix(line, "@@"):
			rendered = append(rendered, styles.HunkHeader.Render(line))
		case strings.HasPrefix(line, "+"):
			rendered = append(rendered, styles.Addition.Render(line))
		case strings.HasPrefix(line, "-"):
			rendered = append(rendered, styles.Deletion.Render(line))
		default:
			rendered = append(rendered, styles.Context.Render(line))
		}
	}
	return strings.Join(rendered, "\n")
}

// Report formats a validation result as markdown.
func Report(result *diff.ValidationResult) string {
	var b strings.Builder

	b.WriteString("# Validation report\n\n")
	if result.Valid {
		b.WriteString("**Result:** valid\n\n")
	} else {
		b.WriteString("**Result:** INVALID\n\n")
	}

	if len(result.Errors) > 0 {
		b.WriteString("## Errors\n\n")
		for _, issue := range result.Errors {
			fmt.Fprintf(&b, "- `%s` %s\n", issue.Kind, issue.Message)
		}
		b.WriteString("\n")
	}
	if len(result.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, issue := range result.Warnings {
			fmt.Fprintf(&b, "- `%s` %s\n", issue.Kind, issue.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Statistics\n\n")
	fmt.Fprintf(&b, "- hunks: %d\n", result.Stats.HunkCount)
	fmt.Fprintf(&b, "- additions: %d\n", result.Stats.AdditionLines)
	fmt.Fprintf(&b, "- deletions: %d\n", result.Stats.DeletionLines)
	fmt.Fprintf(&b, "- context: %d\n", result.Stats.ContextLines)
	fmt.Fprintf(&b, "- total lines: %d\n", result.Stats.TotalLines)

	return b.String()
}

// Markdown renders markdown for the terminal. On renderer failures the raw
// markdown is returned so the report is never lost.
func Markdown(markdown string, width int) string {
	if width <= 0 {
		width = 80
	}
	renderer, err := glam.NewTermRenderer(
		glam.WithAutoStyle(),
		glam.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
