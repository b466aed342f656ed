package diff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IssueKind is the machine-checkable classification of a validation finding.
type IssueKind string

const (
	// Format errors: the payload is not recognizably a unified diff.
	KindMissingHeaderMarker   IssueKind = "MISSING_HEADER_MARKER"
	KindMissingFileInfoMarker IssueKind = "MISSING_FILE_INFO_MARKER"
	KindMissingHunkMarker     IssueKind = "MISSING_HUNK_MARKER"

	// Structural errors.
	KindMalformedHunkHeader IssueKind = "MALFORMED_HUNK_HEADER"
	KindLineCountMismatch   IssueKind = "LINE_COUNT_MISMATCH"
	KindNoHunksFound        IssueKind = "NO_HUNKS_FOUND"

	// Content and security errors.
	KindDangerousPath      IssueKind = "DANGEROUS_PATH"
	KindSystemPathTargeted IssueKind = "SYSTEM_PATH_TARGETED"

	// Against-file errors.
	KindHunkOutOfRange   IssueKind = "HUNK_OUT_OF_RANGE"
	KindContextNotFound  IssueKind = "CONTEXT_NOT_FOUND"
	KindTargetUnreadable IssueKind = "TARGET_UNREADABLE"

	// Warnings; these never affect validity.
	KindNonStandardExtension        IssueKind = "NON_STANDARD_EXTENSION"
	KindPotentiallyDangerousContent IssueKind = "POTENTIALLY_DANGEROUS_CONTENT"
	KindExecutableFileModified      IssueKind = "EXECUTABLE_FILE_MODIFIED"
)

// Issue is one validation finding: a kind for machines and a message for
// humans.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// Stats summarizes the shape of a diff payload.
type Stats struct {
	HunkCount     int `json:"hunkCount"`
	AdditionLines int `json:"additionLines"`
	DeletionLines int `json:"deletionLines"`
	ContextLines  int `json:"contextLines"`
	TotalLines    int `json:"totalLines"`
}

// ValidationResult aggregates every finding of a Validate call. Valid is
// true exactly when the error list is empty; warnings never block.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Stats    Stats   `json:"stats"`
}

func (r *ValidationResult) addError(kind IssueKind, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(kind IssueKind, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// HasError reports whether any error of the given kind was recorded.
func (r *ValidationResult) HasError(kind IssueKind) bool {
	for _, issue := range r.Errors {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}

// HasWarning reports whether any warning of the given kind was recorded.
func (r *ValidationResult) HasWarning(kind IssueKind) bool {
	for _, issue := range r.Warnings {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}

// lineCountTolerance absorbs the drift between declared hunk sizes and
// actual change lines introduced by blank-line stripping in the generator.
const lineCountTolerance = 2

// Validator runs independent format, structural, security and against-file
// checks over a diff payload. Validate is total: it never returns an error,
// every failure is captured as an Issue.
type Validator struct {
	// Policy supplies the security tables. Nil means the default policy.
	Policy *SecurityPolicy
	// MatchPolicy is the context comparison rule shared with the applier.
	MatchPolicy MatchPolicy
}

// Validate checks diffText and, when targetPath names an existing file, also
// verifies each hunk's context against it. Checks accumulate findings
// independently; only a failed format check short-circuits, because the
// later checks assume well-formed markers.
func (v *Validator) Validate(diffText, targetPath string) *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]Issue, 0),
		Warnings: make([]Issue, 0),
	}

	if !v.checkFormat(diffText, result) {
		return result
	}

	lines := splitLines(diffText)
	v.checkStructure(lines, result)
	v.checkContent(lines, result)
	if targetPath != "" {
		if _, err := os.Stat(targetPath); err == nil {
			v.checkAgainstFile(diffText, targetPath, result)
		}
	}
	result.Stats = collectStats(lines)

	result.Valid = len(result.Errors) == 0
	return result
}

// checkFormat verifies the payload is non-empty and carries the three
// markers every unified diff has. Returns false on failure so the caller can
// stop early.
func (v *Validator) checkFormat(diffText string, result *ValidationResult) bool {
	if strings.TrimSpace(diffText) == "" {
		result.addError(KindMissingHeaderMarker, "diff is empty")
		return false
	}

	hasHeader := false
	hasFileInfo := false
	hasHunk := false
	for _, line := range splitLines(diffText) {
		switch {
		case strings.HasPrefix(line, "---"):
			hasHeader = true
		case strings.HasPrefix(line, "+++"):
			hasFileInfo = true
		case strings.HasPrefix(line, "@@"):
			hasHunk = true
		}
	}

	if !hasHeader {
		result.addError(KindMissingHeaderMarker, "missing file header marker (---)")
		return false
	}
	if !hasFileInfo {
		result.addError(KindMissingFileInfoMarker, "missing file info marker (+++)")
		return false
	}
	if !hasHunk {
		result.addError(KindMissingHunkMarker, "missing hunk marker (@@)")
		return false
	}
	return true
}

// checkStructure validates every hunk header against the grammar and the
// declared line counts against the actual change lines, within tolerance.
func (v *Validator) checkStructure(lines []string, result *ValidationResult) {
	hunkCount := 0
	for i, line := range lines {
		if !strings.HasPrefix(line, "@@") {
			continue
		}
		hunkCount++

		hunk, err := parseHunkHeader(line)
		if err != nil {
			result.addError(KindMalformedHunkHeader, "line %d: invalid hunk header: %s", i+1, line)
			continue
		}

		context, deletions, additions := countHunkLines(lines, i+1)
		actualOld := context + deletions
		actualNew := context + additions
		if delta := actualOld - hunk.OldCount; delta > lineCountTolerance || delta < -lineCountTolerance {
			result.addError(KindLineCountMismatch,
				"line %d: old line count mismatch: declared %d, actual %d", i+1, hunk.OldCount, actualOld)
		}
		if delta := actualNew - hunk.NewCount; delta > lineCountTolerance || delta < -lineCountTolerance {
			result.addError(KindLineCountMismatch,
				"line %d: new line count mismatch: declared %d, actual %d", i+1, hunk.NewCount, actualNew)
		}
	}

	if hunkCount == 0 {
		result.addError(KindNoHunksFound, "no hunks found")
	}
}

// countHunkLines tallies context, deletion and addition lines from start
// until the next hunk header. A '\' line ends the hunk body early.
func countHunkLines(lines []string, start int) (context, deletions, additions int) {
	for i := start; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "@@") {
			break
		}
		if strings.HasPrefix(line, "\\") {
			break
		}
		if line == "" {
			continue
		}
		switch line[0] {
		case ' ':
			context++
		case '-':
			if !strings.HasPrefix(line, "---") {
				deletions++
			}
		case '+':
			if !strings.HasPrefix(line, "+++") {
				additions++
			}
		}
	}
	return context, deletions, additions
}

// checkContent runs the path and added-content security checks.
func (v *Validator) checkContent(lines []string, result *ValidationResult) {
	policy := v.Policy
	if policy == nil {
		policy = DefaultSecurityPolicy()
	}
	patterns, err := policy.contentPatterns()
	if err != nil {
		// An unloadable pattern set can only come from a hand-built
		// policy; surface it rather than silently skipping the check.
		result.addError(KindDangerousPath, "security policy is invalid: %v", err)
		patterns = nil
	}

	for _, line := range lines {
		isOld := strings.HasPrefix(line, "---")
		isNew := strings.HasPrefix(line, "+++")
		if isOld || isNew {
			path := headerPath(line)
			if path == "" || path == "/dev/null" {
				continue
			}
			if reason := dangerousPathReason(path); reason != "" {
				result.addError(KindDangerousPath, "dangerous file path %s: %s", path, reason)
			}
			for _, prefix := range policy.SystemPathPrefixes {
				if strings.HasPrefix(stripHeaderAlias(path), prefix) {
					result.addError(KindSystemPathTargeted, "diff targets system path %s", path)
					break
				}
			}
			if !hasExtension(path, policy.SafeExtensions) {
				result.addWarning(KindNonStandardExtension, "non-standard file extension: %s", path)
			}
			if isNew && hasExtension(path, policy.ExecutableExtensions) {
				result.addWarning(KindExecutableFileModified, "diff modifies executable file %s", path)
			}
			continue
		}

		if strings.HasPrefix(line, "+") && len(line) > 1 {
			content := line[1:]
			for _, re := range patterns {
				if re.MatchString(content) {
					result.addWarning(KindPotentiallyDangerousContent,
						"potentially dangerous content: %s", truncate(content, 50))
					break
				}
			}
		}
	}
}

// checkAgainstFile confirms each hunk's non-blank context lines can be found
// in the target, scanning forward from the declared old offset. This is a
// relaxed, non-positional check: it proves the expected text exists nearby,
// not that it sits at the exact line.
func (v *Validator) checkAgainstFile(diffText, targetPath string, result *ValidationResult) {
	content, err := os.ReadFile(targetPath)
	if err != nil {
		result.addError(KindTargetUnreadable, "cannot read target file %s: %v", targetPath, err)
		return
	}
	fileLines := splitLines(string(content))

	patch, err := Parse(diffText)
	if err != nil {
		// Malformed headers are already reported by the structural check.
		return
	}

	for _, hunk := range patch.Hunks {
		start := hunk.OldStart - 1
		if start < 0 || start >= len(fileLines) {
			result.addError(KindHunkOutOfRange,
				"hunk start %d is outside the target file (%d lines)", hunk.OldStart, len(fileLines))
			continue
		}
		if !contextHolds(fileLines, hunk, start, v.MatchPolicy) {
			result.addError(KindContextNotFound,
				"hunk context starting at line %d not found in %s", hunk.OldStart, filepath.Base(targetPath))
		}
	}
}

// collectStats tallies the payload shape; header lines are not counted as
// additions or deletions.
func collectStats(lines []string) Stats {
	stats := Stats{TotalLines: len(lines)}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			stats.HunkCount++
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			stats.AdditionLines++
		case strings.HasPrefix(line, "-"):
			stats.DeletionLines++
		case strings.HasPrefix(line, " "):
			stats.ContextLines++
		}
	}
	return stats
}

// headerPath extracts the path from a "---"/"+++" header line.
func headerPath(line string) string {
	if len(line) <= 4 {
		return ""
	}
	return strings.TrimSpace(line[4:])
}

// stripHeaderAlias removes the conventional a/ or b/ prefix so system-path
// prefixes match both "a//etc/passwd" and "/etc/passwd" forms.
func stripHeaderAlias(path string) string {
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}

func dangerousPathReason(path string) string {
	switch {
	case strings.Contains(path, "../"):
		return "directory traversal"
	case strings.Contains(path, "//"):
		return "double-slash absolute path"
	case strings.Contains(path, "~"):
		return "home directory reference"
	default:
		return ""
	}
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
