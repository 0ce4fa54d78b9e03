package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zulandar/taskdesk/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every model in creation order. Parents precede children
// so foreign keys resolve.
func AllModels() []any {
	return []any{
		&models.Task{},
		&models.HistoryEntry{},
		&models.Comment{},
		&models.User{},
		&models.Setting{},
	}
}

// ColumnUpgrade is a column added after the first schema shipped.
type ColumnUpgrade struct {
	Table  string
	Column string
	Type   string
	Fill   string
}

// ColumnUpgrades lists the additive column changes in the order they were
// introduced.
func ColumnUpgrades() []ColumnUpgrade {
	return []ColumnUpgrade{
		{Table: "users", Column: "email", Type: "VARCHAR(255)"},
		{Table: "tasks", Column: "urgency", Type: "VARCHAR(16)", Fill: "'medium'"},
		{Table: "tasks", Column: "assigned_to", Type: "VARCHAR(128)"},
		{Table: "tasks", Column: "updated_at", Type: "DATETIME", Fill: "created_at"},
	}
}

// EnsureSchema creates missing tables and applies pending column upgrades,
// backing up through b first when anything is queued.
func EnsureSchema(ctx context.Context, gdb *gorm.DB, b Backup, log *slog.Logger) (MigrationResult, error) {
	m := NewMigrator(gdb, b, log)
	for _, model := range AllModels() {
		if err := m.EnsureTable(ctx, model); err != nil {
			return MigrationResult{}, err
		}
	}
	for _, u := range ColumnUpgrades() {
		if err := m.EnsureColumn(ctx, u.Table, u.Column, u.Type, u.Fill); err != nil {
			return MigrationResult{}, err
		}
	}
	res, err := m.Apply(ctx)
	if err != nil {
		return res, fmt.Errorf("db: ensure schema: %w", err)
	}
	return res, nil
}
