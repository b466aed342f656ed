package diff

// ErrorCode classifies engine failures so callers can branch on the kind of
// error without parsing messages.
type ErrorCode string

const (
	// CodeMalformedHunkHeader reports a hunk header that does not match the
	// "@@ -start,count +start,count @@" grammar.
	CodeMalformedHunkHeader ErrorCode = "MALFORMED_HUNK_HEADER"
	// CodeTargetNotFound reports a missing or unreadable apply target.
	CodeTargetNotFound ErrorCode = "TARGET_NOT_FOUND"
	// CodeEmptyDiff reports an apply attempt with an empty diff payload.
	CodeEmptyDiff ErrorCode = "EMPTY_DIFF"
	// CodeContextMismatch reports a hunk whose context lines could not be
	// located in the target buffer.
	CodeContextMismatch ErrorCode = "CONTEXT_MISMATCH"
	// CodeIO reports a filesystem failure while backing up, reading or
	// writing the target.
	CodeIO ErrorCode = "IO_ERROR"
	// CodePolicy reports an invalid security policy document.
	CodePolicy ErrorCode = "INVALID_POLICY"
)

// Error is the structured failure type returned by the engine. BackupPath is
// populated whenever a backup had already been created before the failure, so
// manual recovery stays possible even when automatic rollback fails too.
type Error struct {
	Code       ErrorCode
	Message    string
	Path       string
	BackupPath string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}
