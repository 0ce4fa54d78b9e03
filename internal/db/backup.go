package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const backupStamp = "20060102-150405.000000"

// Backup preserves the store before a migration mutates it. It returns a
// description of where the copy lives.
type Backup interface {
	Backup(ctx context.Context, db *gorm.DB, tables []string) (string, error)
}

// FileBackup copies a sqlite data file into Dir.
type FileBackup struct {
	Path string
	Dir  string
	Now  func() time.Time
}

// Backup copies the data file to <Dir>/<base>.<timestamp>.bak.
func (b FileBackup) Backup(ctx context.Context, _ *gorm.DB, _ []string) (string, error) {
	if b.Path == "" || b.Path == ":memory:" {
		return "", errors.New("file backup: no data file")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	dir := b.Dir
	if dir == "" {
		dir = filepath.Dir(b.Path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("file backup: %w", err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("%s.%s.bak", filepath.Base(b.Path), now().Format(backupStamp)))
	if err := copyFile(b.Path, dst); err != nil {
		return "", fmt.Errorf("file backup: %w", err)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// TableSnapshotBackup copies each affected table to <table>_bak_<timestamp>
// inside the same database. Used for server databases without a data file.
type TableSnapshotBackup struct {
	Now func() time.Time
}

// Backup snapshots tables and returns the names of the copies.
func (b TableSnapshotBackup) Backup(ctx context.Context, gdb *gorm.DB, tables []string) (string, error) {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	suffix := now().UTC().Format("20060102150405")
	var made []string
	for _, t := range tables {
		if !identRe.MatchString(t) {
			return "", fmt.Errorf("table snapshot: invalid table %q", t)
		}
		name := t + "_bak_" + suffix
		err := gdb.WithContext(ctx).Exec("CREATE TABLE ? AS SELECT * FROM ?",
			clause.Table{Name: name}, clause.Table{Name: t}).Error
		if err != nil {
			return "", fmt.Errorf("table snapshot %s: %w", t, err)
		}
		made = append(made, name)
	}
	return fmt.Sprint(made), nil
}
