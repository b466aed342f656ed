package diff

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultBackupDir is the backup directory used when none is configured.
const DefaultBackupDir = ".backup"

// backupTimeLayout is the timestamp embedded in backup filenames:
// <basename>.<YYYYMMDD_HHMMSS>.bak
const backupTimeLayout = "20060102_150405"

// BackupRecord describes one pre-mutation copy of a target file. Backups are
// immutable once created and are never overwritten.
type BackupRecord struct {
	OriginalPath string    `json:"originalPath"`
	BackupPath   string    `json:"backupPath"`
	CreatedAt    time.Time `json:"createdAt"`
	Size         int64     `json:"size"`
}

// BackupStore creates, lists and restores timestamped copies of files under
// a single backup directory. There is no index file; enumeration is by
// directory listing. Pruning old backups is the caller's responsibility.
type BackupStore struct {
	dir    string
	logger Logger
	now    func() time.Time
}

// NewBackupStore returns a store rooted at dir, or DefaultBackupDir when dir
// is empty. The directory is created lazily on the first Backup call.
func NewBackupStore(dir string) *BackupStore {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultBackupDir
	}
	return &BackupStore{dir: dir, logger: &NoOpLogger{}, now: time.Now}
}

// SetLogger installs an observer for non-fatal store failures.
func (s *BackupStore) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Dir returns the backup directory path.
func (s *BackupStore) Dir() string { return s.dir }

// Backup copies path into the backup directory and returns the record. Two
// backups of the same file within one second get distinct names: a counter
// is inserted before the .bak suffix instead of overwriting the earlier
// copy.
func (s *BackupStore) Backup(path string) (BackupRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return BackupRecord{}, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot back up %s: %v", path, err), Path: path}
	}
	if info.IsDir() {
		return BackupRecord{}, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot back up directory %s", path), Path: path}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return BackupRecord{}, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot create backup directory %s: %v", s.dir, err), Path: path}
	}

	created := s.now()
	stamp := created.Format(backupTimeLayout)
	base := filepath.Base(path)
	backupPath := filepath.Join(s.dir, fmt.Sprintf("%s.%s.bak", base, stamp))
	for counter := 1; ; counter++ {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		backupPath = filepath.Join(s.dir, fmt.Sprintf("%s.%s.%d.bak", base, stamp, counter))
	}

	if err := copyFile(path, backupPath, info.Mode()); err != nil {
		return BackupRecord{}, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot write backup %s: %v", backupPath, err), Path: path}
	}

	return BackupRecord{
		OriginalPath: path,
		BackupPath:   backupPath,
		CreatedAt:    created,
		Size:         info.Size(),
	}, nil
}

// Restore copies backupPath back over path. It returns false when the backup
// does not exist or the copy fails; failures are logged, never raised.
func (s *BackupStore) Restore(path, backupPath string) bool {
	info, err := os.Stat(backupPath)
	if err != nil || info.IsDir() {
		return false
	}
	if err := copyFile(backupPath, path, info.Mode()); err != nil {
		s.logger.Error("restore from backup failed", err,
			Field("target", path), Field("backup", backupPath))
		return false
	}
	return true
}

// List returns every *.bak entry in the backup directory, newest first. When
// path is non-empty only backups whose filename starts with its basename are
// returned. A missing backup directory yields an empty list.
func (s *BackupStore) List(path string) ([]BackupRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot list backups in %s: %v", s.dir, err)}
	}

	prefix := ""
	if strings.TrimSpace(path) != "" {
		prefix = filepath.Base(path) + "."
	}

	var records []BackupRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".bak") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, BackupRecord{
			OriginalPath: backupOriginalBase(name),
			BackupPath:   filepath.Join(s.dir, name),
			CreatedAt:    info.ModTime(),
			Size:         info.Size(),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].BackupPath > records[j].BackupPath
	})
	return records, nil
}

// backupOriginalBase strips the ".<timestamp>[.N].bak" suffix from a backup
// filename, recovering the original basename. Only the basename is known
// from a listing; the full original path is not recorded on disk.
func backupOriginalBase(name string) string {
	trimmed := strings.TrimSuffix(name, ".bak")
	if idx := strings.LastIndex(trimmed, "."); idx > 0 {
		tail := trimmed[idx+1:]
		if isDigits(tail) && len(tail) < len(backupTimeLayout) {
			// Collision counter segment.
			trimmed = trimmed[:idx]
		}
	}
	if idx := strings.LastIndex(trimmed, "."); idx > 0 {
		if _, err := time.Parse(backupTimeLayout, trimmed[idx+1:]); err == nil {
			return trimmed[:idx]
		}
	}
	return trimmed
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
