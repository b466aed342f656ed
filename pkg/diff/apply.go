package diff

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ApplyResult reports a completed apply: which backup protects the original,
// how many hunks were applied and the pre/post line counts.
type ApplyResult struct {
	Backup            BackupRecord `json:"backup"`
	HunksApplied      int          `json:"hunksApplied"`
	OriginalLineCount int          `json:"originalLineCount"`
	ModifiedLineCount int          `json:"modifiedLineCount"`
}

// Applier orchestrates a patch application: backup, parse, per-hunk context
// check, in-memory mutation, single write-back. Any failure after the backup
// was created triggers automatic restoration before the error surfaces.
//
// A single Apply call runs synchronously on one goroutine. The engine takes
// no lock on the target; mutual exclusion on a given path is the caller's
// responsibility.
type Applier struct {
	backups *BackupStore
	policy  MatchPolicy
	logger  Logger
}

// NewApplier creates an applier writing backups through store. A nil store
// gets the default backup directory.
func NewApplier(store *BackupStore) *Applier {
	if store == nil {
		store = NewBackupStore("")
	}
	return &Applier{backups: store, policy: MatchStrippedWhitespace, logger: &NoOpLogger{}}
}

// SetMatchPolicy overrides the context comparison rule. Use the same policy
// the validator ran with, otherwise a diff that validated can still fail to
// apply.
func (a *Applier) SetMatchPolicy(policy MatchPolicy) { a.policy = policy }

// SetLogger installs an observer for progress and rollback diagnostics.
func (a *Applier) SetLogger(logger Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Backups exposes the store so callers can list or restore manually.
func (a *Applier) Backups() *BackupStore { return a.backups }

// Apply patches targetPath with diffText.
//
// Preconditions are checked before any side effect: a missing target or an
// empty diff fails without creating a backup. After the backup exists, every
// failure path restores the target from it and returns a *Error carrying the
// backup path, so manual recovery remains possible even if the automatic
// restore itself fails (which is logged, not raised).
func (a *Applier) Apply(targetPath, diffText string) (*ApplyResult, error) {
	info, err := os.Stat(targetPath)
	if err != nil || info.IsDir() {
		return nil, &Error{Code: CodeTargetNotFound, Message: fmt.Sprintf("target file does not exist: %s", targetPath), Path: targetPath}
	}
	if strings.TrimSpace(diffText) == "" {
		return nil, &Error{Code: CodeEmptyDiff, Message: "diff is empty", Path: targetPath}
	}

	backup, err := a.backups.Backup(targetPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("backup created", Field("target", targetPath), Field("backup", backup.BackupPath))

	patch, err := Parse(diffText)
	if err != nil {
		return nil, a.fail(targetPath, backup, err)
	}

	content, err := os.ReadFile(targetPath)
	if err != nil {
		return nil, a.fail(targetPath, backup, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot read target file: %v", err), Path: targetPath})
	}
	lines := splitAfterNewlines(string(content))
	originalCount := len(lines)

	// Hunks are applied bottom-up so mutating one range never invalidates
	// the recorded start offsets of hunks not yet applied.
	hunks := append([]Hunk(nil), patch.Hunks...)
	sort.Slice(hunks, func(i, j int) bool { return hunks[i].OldStart > hunks[j].OldStart })

	for _, hunk := range hunks {
		start := hunk.OldStart - 1
		if start < 0 || start >= len(lines) {
			return nil, a.fail(targetPath, backup, &Error{
				Code:    CodeContextMismatch,
				Message: fmt.Sprintf("hunk start %d is outside the target file (%d lines)", hunk.OldStart, len(lines)),
				Path:    targetPath,
			})
		}
		if !contextHolds(lines, hunk, start, a.policy) {
			return nil, a.fail(targetPath, backup, &Error{
				Code:    CodeContextMismatch,
				Message: fmt.Sprintf("hunk context starting at line %d does not match the target", hunk.OldStart),
				Path:    targetPath,
			})
		}

		end := start + hunk.OldCount
		if end > len(lines) {
			end = len(lines)
		}
		lines = splice(lines, start, end-start, hunk.NewLines())
	}

	if err := os.WriteFile(targetPath, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return nil, a.fail(targetPath, backup, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot write target file: %v", err), Path: targetPath})
	}

	a.logger.Info("patch applied",
		Field("target", targetPath),
		Field("hunks", len(hunks)),
		Field("lines_before", originalCount),
		Field("lines_after", len(lines)))

	return &ApplyResult{
		Backup:            backup,
		HunksApplied:      len(hunks),
		OriginalLineCount: originalCount,
		ModifiedLineCount: len(lines),
	}, nil
}

// Rollback restores targetPath from backupPath. It returns false when the
// backup does not exist or cannot be copied back.
func (a *Applier) Rollback(targetPath, backupPath string) bool {
	return a.backups.Restore(targetPath, backupPath)
}

// fail restores the target from the just-created backup and decorates the
// error with the backup path. A failed restore is logged so the caller can
// still recover manually from the recorded path.
func (a *Applier) fail(targetPath string, backup BackupRecord, err error) error {
	if !a.backups.Restore(targetPath, backup.BackupPath) {
		a.logger.Error("automatic rollback failed", nil,
			Field("target", targetPath), Field("backup", backup.BackupPath))
	}

	if pe, ok := err.(*Error); ok {
		pe.BackupPath = backup.BackupPath
		if pe.Path == "" {
			pe.Path = targetPath
		}
		return pe
	}
	return &Error{Code: CodeIO, Message: err.Error(), Path: targetPath, BackupPath: backup.BackupPath}
}

// splice replaces target[index:index+deleteCount] with replacement.
func splice(target []string, index, deleteCount int, replacement []string) []string {
	result := make([]string, 0, len(target)-deleteCount+len(replacement))
	result = append(result, target[:index]...)
	result = append(result, replacement...)
	result = append(result, target[index+deleteCount:]...)
	return result
}

// splitAfterNewlines splits content into lines that keep their trailing
// newline, mirroring what the write-back joins on.
func splitAfterNewlines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
