package render

import (
	"strings"
	"testing"

	"github.com/asynkron/patchkit/pkg/diff"
)

func TestDiffKeepsEveryLine(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"--- a/f.html",
		"+++ b/f.html",
		"@@ -1,2 +1,2 @@",
		" keep",
		"-old",
		"+new",
	}, "\n")

	out := Diff(input, Styles{}) // zero styles render text unchanged
	if got, want := len(strings.Split(out, "\n")), 6; got != want {
		t.Fatalf("line count changed during rendering: got %d want %d", got, want)
	}
	for _, fragment := range []string{"keep", "-old", "+new", "@@ -1,2 +1,2 @@"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("missing %q in rendered diff:\n%s", fragment, out)
		}
	}
}

func TestReportListsIssuesAndStats(t *testing.T) {
	t.Parallel()

	result := &diff.ValidationResult{
		Valid: false,
		Errors: []diff.Issue{
			{Kind: diff.KindSystemPathTargeted, Message: "diff targets system path /etc/passwd"},
		},
		Warnings: []diff.Issue{
			{Kind: diff.KindNonStandardExtension, Message: "non-standard file extension: a/x.bin"},
		},
		Stats: diff.Stats{HunkCount: 2, AdditionLines: 3},
	}

	report := Report(result)
	for _, fragment := range []string{
		"INVALID",
		string(diff.KindSystemPathTargeted),
		string(diff.KindNonStandardExtension),
		"hunks: 2",
		"additions: 3",
	} {
		if !strings.Contains(report, fragment) {
			t.Fatalf("missing %q in report:\n%s", fragment, report)
		}
	}
}

func TestMarkdownFallsBackToRawInput(t *testing.T) {
	t.Parallel()

	md := "# heading\n\nbody\n"
	out := Markdown(md, 60)
	if !strings.Contains(out, "heading") {
		t.Fatalf("rendered markdown lost content:\n%s", out)
	}
}
