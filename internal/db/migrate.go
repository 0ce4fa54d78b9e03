package db

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Step is one queued additive schema change.
type Step struct {
	Table  string
	Column string
	Kind   string // "add column" or "backfill"
	sql    string
	vars   []any
}

func (s Step) String() string {
	return fmt.Sprintf("%s %s.%s", s.Kind, s.Table, s.Column)
}

// MigrationResult reports what Apply did.
type MigrationResult struct {
	BackupPath string
	Applied    []Step
}

// Migrator brings the schema up to date with additive changes only. Tables
// are created immediately; column additions are queued and applied together
// by Apply after a backup. A Migrator is not safe for concurrent use.
type Migrator struct {
	db      *gorm.DB
	backup  Backup
	log     *slog.Logger
	pending []Step
	queued  map[string]bool
}

// NewMigrator returns a Migrator that backs up through b before mutating.
func NewMigrator(gdb *gorm.DB, b Backup, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{db: gdb, backup: b, log: log, queued: map[string]bool{}}
}

// EnsureTable creates the table for model when it does not exist.
func (m *Migrator) EnsureTable(ctx context.Context, model any) error {
	mg := m.db.WithContext(ctx).Migrator()
	if mg.HasTable(model) {
		return nil
	}
	if err := mg.CreateTable(model); err != nil {
		return fmt.Errorf("db: create table for %T: %w", model, err)
	}
	m.log.Info("created table", "model", fmt.Sprintf("%T", model))
	return nil
}

// EnsureColumn queues an ADD COLUMN when table lacks column. A non-empty
// fill expression also queues a backfill of rows where the column is NULL.
func (m *Migrator) EnsureColumn(ctx context.Context, table, column, colType, fill string) error {
	if !identRe.MatchString(table) || !identRe.MatchString(column) {
		return fmt.Errorf("db: ensure column %s.%s: invalid identifier", table, column)
	}
	key := table + "." + column
	if m.queued[key] {
		return nil
	}
	if m.db.WithContext(ctx).Migrator().HasColumn(table, column) {
		return nil
	}
	m.queued[key] = true
	m.pending = append(m.pending, Step{
		Table:  table,
		Column: column,
		Kind:   "add column",
		sql:    "ALTER TABLE ? ADD COLUMN ? " + colType,
		vars:   []any{clause.Table{Name: table}, clause.Column{Name: column}},
	})
	if fill != "" {
		m.pending = append(m.pending, Step{
			Table:  table,
			Column: column,
			Kind:   "backfill",
			sql:    "UPDATE ? SET ? = (" + fill + ") WHERE ? IS NULL",
			vars:   []any{clause.Table{Name: table}, clause.Column{Name: column}, clause.Column{Name: column}},
		})
	}
	return nil
}

// Pending returns the queued steps.
func (m *Migrator) Pending() []Step {
	return append([]Step(nil), m.pending...)
}

// Apply backs up the store and applies every queued step in one
// transaction. With nothing queued it does nothing and takes no backup.
func (m *Migrator) Apply(ctx context.Context) (MigrationResult, error) {
	if len(m.pending) == 0 {
		return MigrationResult{}, nil
	}
	if m.backup == nil {
		return MigrationResult{}, fmt.Errorf("db: migrate: %w: no backup configured", ErrBackupFailed)
	}
	path, err := m.backup.Backup(ctx, m.db, m.tables())
	if err != nil {
		return MigrationResult{}, fmt.Errorf("db: migrate: %w: %w", ErrBackupFailed, err)
	}
	m.log.Info("schema backup written", "path", path)

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range m.pending {
			if err := tx.Exec(s.sql, s.vars...).Error; err != nil {
				return fmt.Errorf("%s: %w", s, err)
			}
		}
		return nil
	})
	if err != nil {
		return MigrationResult{BackupPath: path}, fmt.Errorf("db: migrate: %w", err)
	}

	applied := m.pending
	for _, s := range applied {
		m.log.Info("schema step applied", "step", s.String())
	}
	m.pending = nil
	m.queued = map[string]bool{}
	return MigrationResult{BackupPath: path, Applied: applied}, nil
}

func (m *Migrator) tables() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range m.pending {
		if !seen[s.Table] {
			seen[s.Table] = true
			out = append(out, s.Table)
		}
	}
	return out
}
