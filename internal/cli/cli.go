// Package cli wires the patch engine to a flag-based command line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/asynkron/patchkit/internal/render"
	"github.com/asynkron/patchkit/internal/tui"
	"github.com/asynkron/patchkit/pkg/diff"
)

const usage = `patchkit - unified-diff patch engine

Usage:
  patchkit <command> [flags]

Commands:
  generate   produce a unified diff between two versions of a document
  validate   check a diff payload for format, structure and security issues
  apply      apply a diff to a target file with backup and rollback
  rollback   restore a target file from a backup
  backups    list recorded backups, newest first
  preview    review a diff interactively before applying it
  help       show this message

Environment:
  PATCHKIT_BACKUP_DIR     backup directory (default .backup)
  PATCHKIT_CONTEXT_LINES  context width for generate (default 3)
  PATCHKIT_MATCH          context match policy: stripped, normalized or exact
  PATCHKIT_POLICY         path to a JSON security policy file
`

// Run executes the patchkit CLI using the provided arguments.
// It returns a POSIX-style exit code indicating whether execution succeeded.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine, but other errors should be surfaced to help with debugging.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
			return 1
		}
	}

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	command, rest := args[0], args[1:]
	switch command {
	case "generate":
		return runGenerate(rest, stdout, stderr)
	case "validate":
		return runValidate(rest, stdout, stderr)
	case "apply":
		return runApply(ctx, rest, stdout, stderr)
	case "rollback":
		return runRollback(rest, stdout, stderr)
	case "backups":
		return runBackups(rest, stdout, stderr)
	case "preview":
		return runPreview(ctx, rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}
}

func runGenerate(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("generate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	originalPath := flags.String("original", "", "path to the original version")
	modifiedPath := flags.String("modified", "", "path to the modified version")
	label := flags.String("path", "file.html", "file path embedded in the diff headers")
	contextLines := flags.Int("context", envInt("PATCHKIT_CONTEXT_LINES", diff.DefaultContextLines), "context lines per hunk")
	markup := flags.Bool("markup", false, "normalize line endings before diffing")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *originalPath == "" || *modifiedPath == "" {
		fmt.Fprintln(stderr, "generate requires -original and -modified")
		return 2
	}

	original, err := os.ReadFile(*originalPath)
	if err != nil {
		fmt.Fprintf(stderr, "cannot read original: %v\n", err)
		return 1
	}
	modified, err := os.ReadFile(*modifiedPath)
	if err != nil {
		fmt.Fprintf(stderr, "cannot read modified: %v\n", err)
		return 1
	}

	generator := diff.Generator{ContextLines: *contextLines}
	var diffText string
	if *markup {
		diffText, err = generator.GenerateMarkup(string(original), string(modified), *label)
	} else {
		diffText, err = generator.Generate(string(original), string(modified), *label)
	}
	if err != nil {
		fmt.Fprintf(stderr, "generate failed: %v\n", err)
		return 1
	}
	if diffText == "" {
		fmt.Fprintln(stderr, "no differences")
		return 0
	}
	fmt.Fprint(stdout, diffText)
	return 0
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	diffPath := flags.String("diff", "", "path to the diff payload, or - for stdin")
	target := flags.String("target", "", "optional target file for context checks")
	policyPath := flags.String("policy", os.Getenv("PATCHKIT_POLICY"), "JSON security policy file")
	matchName := flags.String("match", os.Getenv("PATCHKIT_MATCH"), "context match policy")
	asJSON := flags.Bool("json", false, "emit the raw result as JSON")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	diffText, code := readDiff(*diffPath, stderr)
	if code != 0 {
		return code
	}

	validator, code := newValidator(*policyPath, *matchName, stderr)
	if code != 0 {
		return code
	}
	result := validator.Validate(diffText, *target)

	if *asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			fmt.Fprintf(stderr, "cannot encode result: %v\n", err)
			return 1
		}
	} else {
		fmt.Fprint(stdout, render.Markdown(render.Report(result), 80))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runApply(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("apply", flag.ContinueOnError)
	flags.SetOutput(stderr)
	target := flags.String("target", "", "file to patch")
	diffPath := flags.String("diff", "", "path to the diff payload, or - for stdin")
	backupDir := flags.String("backup-dir", envOr("PATCHKIT_BACKUP_DIR", diff.DefaultBackupDir), "backup directory")
	policyPath := flags.String("policy", os.Getenv("PATCHKIT_POLICY"), "JSON security policy file")
	matchName := flags.String("match", os.Getenv("PATCHKIT_MATCH"), "context match policy")
	force := flags.Bool("force", false, "skip validation before applying")
	verbose := flags.Bool("verbose", false, "log engine progress to stderr")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *target == "" {
		fmt.Fprintln(stderr, "apply requires -target")
		return 2
	}

	diffText, code := readDiff(*diffPath, stderr)
	if code != 0 {
		return code
	}

	if !*force {
		validator, code := newValidator(*policyPath, *matchName, stderr)
		if code != 0 {
			return code
		}
		if result := validator.Validate(diffText, *target); !result.Valid {
			fmt.Fprint(stderr, render.Markdown(render.Report(result), 80))
			fmt.Fprintln(stderr, "refusing to apply an invalid diff (use -force to override)")
			return 1
		}
	}

	if err := ctx.Err(); err != nil {
		fmt.Fprintf(stderr, "aborted: %v\n", err)
		return 1
	}

	applier, code := newApplier(*backupDir, *matchName, *verbose, stderr)
	if code != 0 {
		return code
	}
	result, err := applier.Apply(*target, diffText)
	if err != nil {
		reportApplyError(err, stderr)
		return 1
	}

	fmt.Fprintf(stdout, "applied %d hunk(s) to %s (%d -> %d lines)\n",
		result.HunksApplied, *target, result.OriginalLineCount, result.ModifiedLineCount)
	fmt.Fprintf(stdout, "backup: %s\n", result.Backup.BackupPath)
	return 0
}

func runRollback(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("rollback", flag.ContinueOnError)
	flags.SetOutput(stderr)
	target := flags.String("target", "", "file to restore")
	backupPath := flags.String("backup", "", "backup file to restore from")
	backupDir := flags.String("backup-dir", envOr("PATCHKIT_BACKUP_DIR", diff.DefaultBackupDir), "backup directory")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *target == "" || *backupPath == "" {
		fmt.Fprintln(stderr, "rollback requires -target and -backup")
		return 2
	}

	store := diff.NewBackupStore(*backupDir)
	store.SetLogger(diff.NewStdLogger(diff.LogLevelWarn, stderr))
	if !store.Restore(*target, *backupPath) {
		fmt.Fprintf(stderr, "rollback failed: backup %s not usable\n", *backupPath)
		return 1
	}
	fmt.Fprintf(stdout, "restored %s from %s\n", *target, *backupPath)
	return 0
}

func runBackups(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("backups", flag.ContinueOnError)
	flags.SetOutput(stderr)
	target := flags.String("target", "", "only list backups of this file")
	backupDir := flags.String("backup-dir", envOr("PATCHKIT_BACKUP_DIR", diff.DefaultBackupDir), "backup directory")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	store := diff.NewBackupStore(*backupDir)
	records, err := store.List(*target)
	if err != nil {
		fmt.Fprintf(stderr, "cannot list backups: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Fprintln(stdout, "no backups found")
		return 0
	}
	for _, record := range records {
		fmt.Fprintf(stdout, "%s  %8d  %s\n",
			record.CreatedAt.Format(time.RFC3339), record.Size, record.BackupPath)
	}
	return 0
}

func runPreview(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("preview", flag.ContinueOnError)
	flags.SetOutput(stderr)
	target := flags.String("target", "", "file to patch")
	diffPath := flags.String("diff", "", "path to the diff payload, or - for stdin")
	backupDir := flags.String("backup-dir", envOr("PATCHKIT_BACKUP_DIR", diff.DefaultBackupDir), "backup directory")
	policyPath := flags.String("policy", os.Getenv("PATCHKIT_POLICY"), "JSON security policy file")
	matchName := flags.String("match", os.Getenv("PATCHKIT_MATCH"), "context match policy")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *target == "" {
		fmt.Fprintln(stderr, "preview requires -target")
		return 2
	}

	diffText, code := readDiff(*diffPath, stderr)
	if code != 0 {
		return code
	}

	validator, code := newValidator(*policyPath, *matchName, stderr)
	if code != 0 {
		return code
	}
	result := validator.Validate(diffText, *target)

	content := render.Diff(diffText, render.DefaultStyles()) +
		"\n\n" + render.Markdown(render.Report(result), 80)
	decision, err := tui.Preview(fmt.Sprintf("patch preview: %s", *target), content)
	if err != nil {
		fmt.Fprintf(stderr, "preview failed: %v\n", err)
		return 1
	}
	if decision != tui.DecisionApply {
		fmt.Fprintln(stdout, "cancelled, target untouched")
		return 0
	}
	if !result.Valid {
		fmt.Fprintln(stderr, "refusing to apply an invalid diff")
		return 1
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintf(stderr, "aborted: %v\n", err)
		return 1
	}

	applier, code := newApplier(*backupDir, *matchName, false, stderr)
	if code != 0 {
		return code
	}
	applyResult, err := applier.Apply(*target, diffText)
	if err != nil {
		reportApplyError(err, stderr)
		return 1
	}
	fmt.Fprintf(stdout, "applied %d hunk(s) to %s\n", applyResult.HunksApplied, *target)
	fmt.Fprintf(stdout, "backup: %s\n", applyResult.Backup.BackupPath)
	return 0
}

func newValidator(policyPath, matchName string, stderr io.Writer) (*diff.Validator, int) {
	policy := diff.DefaultSecurityPolicy()
	if policyPath != "" {
		loaded, err := diff.LoadPolicy(policyPath)
		if err != nil {
			fmt.Fprintf(stderr, "cannot load policy: %v\n", err)
			return nil, 1
		}
		policy = loaded
	}
	matchPolicy, err := diff.ParseMatchPolicy(matchName)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return nil, 2
	}
	return &diff.Validator{Policy: policy, MatchPolicy: matchPolicy}, 0
}

func newApplier(backupDir, matchName string, verbose bool, stderr io.Writer) (*diff.Applier, int) {
	matchPolicy, err := diff.ParseMatchPolicy(matchName)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return nil, 2
	}

	level := diff.LogLevelWarn
	if verbose {
		level = diff.LogLevelDebug
	}
	logger := diff.NewStdLogger(level, stderr)

	store := diff.NewBackupStore(backupDir)
	store.SetLogger(logger)
	applier := diff.NewApplier(store)
	applier.SetMatchPolicy(matchPolicy)
	applier.SetLogger(logger)
	return applier, 0
}

// readDiff loads the payload from a file, or from stdin when path is "-".
func readDiff(path string, stderr io.Writer) (string, int) {
	if path == "" {
		fmt.Fprintln(stderr, "missing -diff")
		return "", 2
	}
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		fmt.Fprintf(stderr, "cannot read diff: %v\n", err)
		return "", 1
	}
	return string(content), 0
}

func reportApplyError(err error, stderr io.Writer) {
	fmt.Fprintf(stderr, "apply failed: %v\n", err)
	var pe *diff.Error
	if errors.As(err, &pe) && pe.BackupPath != "" {
		fmt.Fprintf(stderr, "target restored; backup retained at %s\n", pe.BackupPath)
	}
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
