package diff

import "testing"

func TestMatchLinePolicies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		policy   MatchPolicy
		expected string
		actual   string
		want     bool
	}{
		{"exact equal", MatchExact, "  <p>hi</p>", "  <p>hi</p>", true},
		{"exact indent differs", MatchExact, "<p>hi</p>", "  <p>hi</p>", false},
		{"normalized collapses runs", MatchNormalizedWhitespace, "a   b", " a b ", true},
		{"normalized keeps word gaps", MatchNormalizedWhitespace, "ab", "a b", false},
		{"stripped ignores all whitespace", MatchStrippedWhitespace, "a b", "ab", true},
		{"stripped differs", MatchStrippedWhitespace, "ab", "ac", false},
	}
	for _, tc := range cases {
		if got := matchLine(tc.policy, tc.expected, tc.actual); got != tc.want {
			t.Fatalf("%s: matchLine() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFindContextScansForwardOnly(t *testing.T) {
	t.Parallel()

	lines := []string{"alpha", "beta", "gamma"}
	if !findContext(lines, 1, "gamma", MatchStrippedWhitespace) {
		t.Fatalf("expected to find gamma after index 1")
	}
	if findContext(lines, 1, "alpha", MatchStrippedWhitespace) {
		t.Fatalf("alpha sits before the scan start and must not match")
	}
}

func TestFindContextTrimsBufferNewlines(t *testing.T) {
	t.Parallel()

	lines := []string{"alpha\n", "beta\n"}
	if !findContext(lines, 0, "beta", MatchExact) {
		t.Fatalf("trailing newline in buffer should not defeat exact match")
	}
}

func TestContextHoldsSkipsBlankContext(t *testing.T) {
	t.Parallel()

	hunk := Hunk{Changes: []Change{
		{Kind: ChangeContext, Text: "   "},
		{Kind: ChangeContext, Text: "beta"},
	}}
	if !contextHolds([]string{"alpha", "beta"}, hunk, 0, MatchStrippedWhitespace) {
		t.Fatalf("blank context lines must be ignored")
	}
}

func TestContextHoldsPureInsertion(t *testing.T) {
	t.Parallel()

	hunk := Hunk{Changes: []Change{{Kind: ChangeAddition, Text: "new"}}}
	if !contextHolds([]string{"anything"}, hunk, 0, MatchExact) {
		t.Fatalf("hunks without context must always hold")
	}
}

func TestParseMatchPolicy(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]MatchPolicy{
		"":           MatchStrippedWhitespace,
		"stripped":   MatchStrippedWhitespace,
		"normalized": MatchNormalizedWhitespace,
		"Exact":      MatchExact,
	} {
		got, err := ParseMatchPolicy(name)
		if err != nil {
			t.Fatalf("ParseMatchPolicy(%q) returned error: %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseMatchPolicy(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := ParseMatchPolicy("fuzzy"); err == nil {
		t.Fatalf("expected error for unknown policy name")
	}
}
