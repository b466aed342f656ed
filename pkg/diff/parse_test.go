package diff

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSingleHunk(t *testing.T) {
	t.Parallel()

	diffText := strings.Join([]string{
		"--- a/f.html",
		"+++ b/f.html",
		"@@ -1,3 +1,4 @@",
		" a",
		" b",
		"+d",
		" c",
	}, "\n")

	patch, err := Parse(diffText)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got, want := len(patch.Hunks), 1; got != want {
		t.Fatalf("unexpected hunk count: got %d want %d", got, want)
	}

	hunk := patch.Hunks[0]
	if hunk.OldStart != 1 || hunk.OldCount != 3 || hunk.NewStart != 1 || hunk.NewCount != 4 {
		t.Fatalf("unexpected hunk header values: %+v", hunk)
	}

	wantKinds := []ChangeKind{ChangeContext, ChangeContext, ChangeAddition, ChangeContext}
	wantTexts := []string{"a", "b", "d", "c"}
	if len(hunk.Changes) != len(wantKinds) {
		t.Fatalf("unexpected change count: %d", len(hunk.Changes))
	}
	for i, change := range hunk.Changes {
		if change.Kind != wantKinds[i] || change.Text != wantTexts[i] {
			t.Fatalf("change %d mismatch: %+v", i, change)
		}
	}
}

func TestParseDefaultsAbsentCountsToOne(t *testing.T) {
	t.Parallel()

	patch, err := Parse("@@ -5 +6 @@\n-x\n+y\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	hunk := patch.Hunks[0]
	if hunk.OldStart != 5 || hunk.OldCount != 1 || hunk.NewStart != 6 || hunk.NewCount != 1 {
		t.Fatalf("unexpected header defaults: %+v", hunk)
	}
}

func TestParseMalformedHunkHeader(t *testing.T) {
	t.Parallel()

	_, err := Parse("--- a/f.html\n+++ b/f.html\n@@ bogus @@\n x\n")
	if err == nil {
		t.Fatalf("expected error for malformed hunk header")
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Code != CodeMalformedHunkHeader {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseEmptyInputYieldsEmptyPatch(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "just some text\nwithout hunks\n", "--- a/f\n+++ b/f\n"} {
		patch, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", input, err)
		}
		if len(patch.Hunks) != 0 {
			t.Fatalf("Parse(%q) produced hunks: %+v", input, patch.Hunks)
		}
	}
}

func TestParseBackslashTerminatesHunkContent(t *testing.T) {
	t.Parallel()

	diffText := strings.Join([]string{
		"@@ -1,1 +1,1 @@",
		"-old",
		"+new",
		"\\ No newline at end of file",
		"+ignored",
	}, "\n")

	patch, err := Parse(diffText)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got, want := len(patch.Hunks[0].Changes), 2; got != want {
		t.Fatalf("unexpected change count after terminator: got %d want %d", got, want)
	}
}

func TestParseIgnoresUnknownLines(t *testing.T) {
	t.Parallel()

	patch, err := Parse("diff --git a/f b/f\nindex 123..456\n@@ -1,1 +1,1 @@\n-x\n+y\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(patch.Hunks) != 1 || len(patch.Hunks[0].Changes) != 2 {
		t.Fatalf("unexpected patch: %+v", patch)
	}
}

func TestHunkNewLinesDropDeletions(t *testing.T) {
	t.Parallel()

	hunk := Hunk{Changes: []Change{
		{Kind: ChangeContext, Text: "keep"},
		{Kind: ChangeDeletion, Text: "drop"},
		{Kind: ChangeAddition, Text: "add"},
	}}
	got := hunk.NewLines()
	want := []string{"keep\n", "add\n"}
	if len(got) != len(want) {
		t.Fatalf("unexpected line count: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d mismatch: got %q want %q", i, got[i], want[i])
		}
	}
}
