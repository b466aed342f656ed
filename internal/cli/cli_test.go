package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asynkron/patchkit/pkg/diff"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunGenerateThenApply(t *testing.T) {
	dir := t.TempDir()
	originalContent := "<h1>Title</h1>\n<p>old</p>\n<footer>end</footer>\n"
	original := writeFile(t, dir, "original.html", originalContent)
	modified := writeFile(t, dir, "modified.html", "<h1>Title</h1>\n<p>new</p>\n<footer>end</footer>\n")
	target := writeFile(t, dir, "page.html", originalContent)
	backupDir := filepath.Join(dir, "backups")

	var diffOut, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"generate", "-original", original, "-modified", modified, "-path", "page.html",
	}, &diffOut, &stderr)
	if code != 0 {
		t.Fatalf("generate exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(diffOut.String(), "@@") {
		t.Fatalf("generate produced no hunks:\n%s", diffOut.String())
	}
	diffPath := writeFile(t, dir, "change.diff", diffOut.String())

	var stdout bytes.Buffer
	stderr.Reset()
	code = Run(context.Background(), []string{
		"apply", "-target", target, "-diff", diffPath, "-backup-dir", backupDir,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("apply exited %d: %s", code, stderr.String())
	}

	updated, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if !strings.Contains(string(updated), "<p>new</p>") || strings.Contains(string(updated), "<p>old</p>") {
		t.Fatalf("target not patched:\n%s", updated)
	}
	if !strings.Contains(stdout.String(), "backup:") {
		t.Fatalf("apply output missing backup path:\n%s", stdout.String())
	}
}

func TestRunValidateJSONOutput(t *testing.T) {
	dir := t.TempDir()
	diffPath := writeFile(t, dir, "bad.diff", "this is not a diff\n")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"validate", "-diff", diffPath, "-json",
	}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("invalid diff must exit 1, got %d: %s", code, stderr.String())
	}

	var result diff.ValidationResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout.String())
	}
	if result.Valid || len(result.Errors) == 0 {
		t.Fatalf("expected errors in result: %+v", result)
	}
}

func TestRunApplyRefusesInvalidDiffWithoutForce(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "page.html", "line\n")
	diffPath := writeFile(t, dir, "bad.diff", strings.Join([]string{
		"--- a//etc/passwd",
		"+++ b//etc/passwd",
		"@@ -1,1 +1,1 @@",
		"-root",
		"+evil",
		"",
	}, "\n"))
	backupDir := filepath.Join(dir, "backups")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"apply", "-target", target, "-diff", diffPath, "-backup-dir", backupDir,
	}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "refusing to apply") {
		t.Fatalf("missing refusal message:\n%s", stderr.String())
	}
	if _, err := os.Stat(backupDir); !os.IsNotExist(err) {
		t.Fatalf("no backup must be created for a rejected diff")
	}
}

func TestRunRollbackRestoresBackup(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "page.html", "patched\n")
	backup := writeFile(t, dir, "page.html.20240101_120000.bak", "pristine\n")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"rollback", "-target", target, "-backup", backup,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("rollback exited %d: %s", code, stderr.String())
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(content) != "pristine\n" {
		t.Fatalf("rollback did not restore content: %q", content)
	}
}

func TestRunBackupsListsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	target := writeFile(t, dir, "page.html", "v1\n")

	store := diff.NewBackupStore(backupDir)
	if _, err := store.Backup(target); err != nil {
		t.Fatalf("seed backup: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"backups", "-target", target, "-backup-dir", backupDir,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("backups exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "page.html.") {
		t.Fatalf("backup listing missing entry:\n%s", stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Run(context.Background(), []string{"explode"}, &stdout, &stderr); code != 2 {
		t.Fatalf("unknown command must exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "unknown command") {
		t.Fatalf("missing error message:\n%s", stderr.String())
	}
}

func TestRunBackupDirFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "env-backups")
	t.Setenv("PATCHKIT_BACKUP_DIR", backupDir)

	target := writeFile(t, dir, "page.html", "a\nb\n")
	diffPath := writeFile(t, dir, "change.diff", strings.Join([]string{
		"--- a/page.html",
		"+++ b/page.html",
		"@@ -1,2 +1,2 @@",
		" a",
		"-b",
		"+c",
		"",
	}, "\n"))

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"apply", "-target", target, "-diff", diffPath,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("apply exited %d: %s", code, stderr.String())
	}

	entries, err := os.ReadDir(backupDir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("backup not written to env dir: %v", err)
	}
}
