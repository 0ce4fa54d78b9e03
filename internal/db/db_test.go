package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/zulandar/taskdesk/internal/config"
	"github.com/zulandar/taskdesk/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskdesk.db")
	gdb, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { Close(gdb) })
	return gdb, path
}

// countingBackup records calls and never touches the store.
type countingBackup struct {
	calls  int
	tables []string
	err    error
}

func (b *countingBackup) Backup(_ context.Context, _ *gorm.DB, tables []string) (string, error) {
	b.calls++
	b.tables = tables
	if b.err != nil {
		return "", b.err
	}
	return fmt.Sprintf("backup-%d", b.calls), nil
}

func TestSQLiteDSN(t *testing.T) {
	got := SQLiteDSN("/var/lib/td.db")
	want := "/var/lib/td.db?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	if got != want {
		t.Errorf("SQLiteDSN() = %q, want %q", got, want)
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{
		Host: "db.internal", Port: 3307, Name: "taskdesk", User: "td", Password: "s3cret",
	})
	for _, want := range []string{"td:s3cret@tcp(db.internal:3307)/taskdesk", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "postgres"})
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("err = %v, want unsupported driver", err)
	}
}

func TestEnsureSchema_FreshStore(t *testing.T) {
	gdb, _ := openTestDB(t)
	b := &countingBackup{}

	res, err := EnsureSchema(context.Background(), gdb, b, nil)
	if err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	for _, table := range []string{"tasks", "task_history", "task_comments", "users", "system_settings"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("table %s not created", table)
		}
	}
	if b.calls != 0 || res.BackupPath != "" || len(res.Applied) != 0 {
		t.Errorf("fresh tables need no column steps: calls=%d res=%+v", b.calls, res)
	}
}

func TestEnsureSchema_SecondRunIsNoop(t *testing.T) {
	gdb, path := openTestDB(t)
	dir := filepath.Join(t.TempDir(), "backups")
	b := FileBackup{Path: path, Dir: dir}
	ctx := context.Background()

	if _, err := EnsureSchema(ctx, gdb, b, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := EnsureSchema(ctx, gdb, b, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.BackupPath != "" || len(res.Applied) != 0 {
		t.Errorf("second run result = %+v, want empty", res)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("backup dir has %d entries, want 0", len(entries))
	}
}

const legacyTasksDDL = `CREATE TABLE tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	number VARCHAR(32) NOT NULL UNIQUE,
	title VARCHAR(255) NOT NULL,
	description TEXT,
	priority VARCHAR(16),
	status VARCHAR(32) NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	created_by VARCHAR(128) NOT NULL,
	created_at DATETIME
)`

func seedLegacyTasks(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	if err := gdb.Exec(legacyTasksDDL).Error; err != nil {
		t.Fatalf("legacy ddl: %v", err)
	}
	for i, created := range []string{"2024-03-01 09:00:00", "2024-03-02 10:30:00"} {
		err := gdb.Exec(`INSERT INTO tasks (number, title, priority, status, created_by, created_at)
			VALUES (?, ?, 'high', 'новая', 'admin', ?)`,
			fmt.Sprintf("TASK-240301-%04d", i+1), "legacy", created).Error
		if err != nil {
			t.Fatalf("insert legacy row: %v", err)
		}
	}
}

func TestEnsureSchema_MissingColumnsBackfilled(t *testing.T) {
	gdb, path := openTestDB(t)
	seedLegacyTasks(t, gdb)
	dir := filepath.Join(t.TempDir(), "backups")
	fixed := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	res, err := EnsureSchema(ctx, gdb, FileBackup{Path: path, Dir: dir, Now: func() time.Time { return fixed }}, nil)
	if err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("backup files = %d, want 1", len(entries))
	}
	wantName := "taskdesk.db." + fixed.Format(backupStamp) + ".bak"
	if entries[0].Name() != wantName {
		t.Errorf("backup name = %q, want %q", entries[0].Name(), wantName)
	}
	if res.BackupPath != filepath.Join(dir, wantName) {
		t.Errorf("BackupPath = %q", res.BackupPath)
	}
	if len(res.Applied) != 5 {
		t.Errorf("applied %d steps, want 5: %v", len(res.Applied), res.Applied)
	}

	for _, col := range []string{"urgency", "assigned_to", "updated_at"} {
		if !gdb.Migrator().HasColumn("tasks", col) {
			t.Errorf("tasks.%s missing after migration", col)
		}
	}

	var filled int64
	gdb.Raw("SELECT COUNT(*) FROM tasks WHERE urgency = 'medium' AND updated_at = created_at").Scan(&filled)
	if filled != 2 {
		t.Errorf("backfilled rows = %d, want 2", filled)
	}

	// The copy predates the ALTER.
	bak, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: res.BackupPath})
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer Close(bak)
	if bak.Migrator().HasColumn("tasks", "urgency") {
		t.Error("backup already contains tasks.urgency")
	}
	var rows int64
	bak.Raw("SELECT COUNT(*) FROM tasks").Scan(&rows)
	if rows != 2 {
		t.Errorf("backup rows = %d, want 2", rows)
	}
}

func TestApply_BackupFailureAborts(t *testing.T) {
	gdb, _ := openTestDB(t)
	seedLegacyTasks(t, gdb)
	ctx := context.Background()
	b := &countingBackup{err: errors.New("disk full")}

	m := NewMigrator(gdb, b, nil)
	if err := m.EnsureColumn(ctx, "tasks", "urgency", "VARCHAR(16)", "'medium'"); err != nil {
		t.Fatalf("EnsureColumn: %v", err)
	}
	_, err := m.Apply(ctx)
	if !errors.Is(err, ErrBackupFailed) {
		t.Fatalf("err = %v, want ErrBackupFailed", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want cause", err)
	}
	if gdb.Migrator().HasColumn("tasks", "urgency") {
		t.Error("column added despite failed backup")
	}
}

func TestApply_NilBackupAborts(t *testing.T) {
	gdb, _ := openTestDB(t)
	seedLegacyTasks(t, gdb)
	ctx := context.Background()

	m := NewMigrator(gdb, nil, nil)
	m.EnsureColumn(ctx, "tasks", "urgency", "VARCHAR(16)", "")
	if _, err := m.Apply(ctx); !errors.Is(err, ErrBackupFailed) {
		t.Fatalf("err = %v, want ErrBackupFailed", err)
	}
}

func TestEnsureColumn_Queueing(t *testing.T) {
	gdb, _ := openTestDB(t)
	seedLegacyTasks(t, gdb)
	ctx := context.Background()
	b := &countingBackup{}
	m := NewMigrator(gdb, b, nil)

	// Present column: nothing queued.
	if err := m.EnsureColumn(ctx, "tasks", "title", "VARCHAR(255)", ""); err != nil {
		t.Fatalf("EnsureColumn: %v", err)
	}
	if len(m.Pending()) != 0 {
		t.Fatalf("pending = %v, want none", m.Pending())
	}

	m.EnsureColumn(ctx, "tasks", "urgency", "VARCHAR(16)", "'medium'")
	m.EnsureColumn(ctx, "tasks", "urgency", "VARCHAR(16)", "'medium'")
	m.EnsureColumn(ctx, "tasks", "assigned_to", "VARCHAR(128)", "")
	pending := m.Pending()
	if len(pending) != 3 {
		t.Fatalf("pending = %v, want 3 steps", pending)
	}
	if pending[1].Kind != "backfill" || pending[2].Column != "assigned_to" {
		t.Errorf("pending order = %v", pending)
	}

	if _, err := m.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if b.calls != 1 || len(b.tables) != 1 || b.tables[0] != "tasks" {
		t.Errorf("backup calls=%d tables=%v", b.calls, b.tables)
	}
	if res, _ := m.Apply(ctx); b.calls != 1 || len(res.Applied) != 0 {
		t.Error("second Apply should be a no-op")
	}
}

func TestEnsureColumn_InvalidIdentifier(t *testing.T) {
	gdb, _ := openTestDB(t)
	m := NewMigrator(gdb, &countingBackup{}, nil)
	for _, tc := range [][2]string{{"tasks; DROP", "x"}, {"tasks", "1col"}, {"", "x"}} {
		if err := m.EnsureColumn(context.Background(), tc[0], tc[1], "TEXT", ""); err == nil {
			t.Errorf("EnsureColumn(%q, %q) should fail", tc[0], tc[1])
		}
	}
}

func TestFileBackup_NoDataFile(t *testing.T) {
	for _, path := range []string{"", ":memory:"} {
		if _, err := (FileBackup{Path: path}).Backup(context.Background(), nil, nil); err == nil {
			t.Errorf("FileBackup{Path: %q} should fail", path)
		}
	}
}

func TestFileBackup_MissingSource(t *testing.T) {
	b := FileBackup{Path: filepath.Join(t.TempDir(), "absent.db"), Dir: t.TempDir()}
	if _, err := b.Backup(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for missing data file")
	}
}

func TestTableSnapshotBackup(t *testing.T) {
	gdb, _ := openTestDB(t)
	seedLegacyTasks(t, gdb)
	fixed := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	got, err := TableSnapshotBackup{Now: func() time.Time { return fixed }}.Backup(context.Background(), gdb, []string{"tasks"})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if !strings.Contains(got, "tasks_bak_20240305080000") {
		t.Errorf("Backup() = %q", got)
	}
	var rows int64
	gdb.Raw("SELECT COUNT(*) FROM tasks_bak_20240305080000").Scan(&rows)
	if rows != 2 {
		t.Errorf("snapshot rows = %d, want 2", rows)
	}
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrConflict, true},
		{"gorm duplicated", gorm.ErrDuplicatedKey, true},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, false},
		{"mysql duplicate", &mysqldrv.MySQLError{Number: 1062}, true},
		{"mysql other", &mysqldrv.MySQLError{Number: 1146}, false},
		{"wrapped", fmt.Errorf("task: create: %w", gorm.ErrDuplicatedKey), true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.want {
				t.Errorf("IsConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_UniqueViolation(t *testing.T) {
	gdb, _ := openTestDB(t)
	if _, err := EnsureSchema(context.Background(), gdb, &countingBackup{}, nil); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	mk := func() error {
		return gdb.Create(&models.Task{Number: "TASK-240301-0001", Title: "t", Status: models.StatusNew, CreatedBy: "a"}).Error
	}
	if err := mk(); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := Classify(mk())
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Classify(dup) = %v, want ErrConflict", err)
	}

	var task models.Task
	err = Classify(gdb.First(&task, 999).Error)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Classify(missing) = %v, want ErrNotFound", err)
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
