// Package settings persists key/value configuration next to the tasks.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/taskdesk/internal/auth"
	"github.com/zulandar/taskdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Password policy keys.
const (
	KeyPasswordMinLength     = "password_min_length"
	KeyPasswordRequireDigit  = "password_require_digit"
	KeyPasswordRequireLetter = "password_require_letter"
)

// Store reads and upserts settings.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore returns a settings store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the value stored under key, or def when the key is absent.
func (s *Store) Get(ctx context.Context, key, def string) (string, error) {
	return get(s.db.WithContext(ctx), key, def)
}

func get(tx *gorm.DB, key, def string) (string, error) {
	var st models.Setting
	err := tx.Where(&models.Setting{Key: key}).Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("settings: get %s: %w", key, err)
	}
	return st.Value, nil
}

// Set inserts or updates key in a single statement.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return set(s.db.WithContext(ctx), key, value, s.now())
}

func set(tx *gorm.DB, key, value string, now time.Time) error {
	if key == "" {
		return errors.New("settings: set: empty key")
	}
	st := models.Setting{Key: key, Value: value, UpdatedAt: now}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&st).Error
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

// All returns every stored setting keyed by name.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("settings: list: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// PasswordPolicy returns the stored policy, falling back to
// auth.DefaultPolicy for absent keys.
func (s *Store) PasswordPolicy(ctx context.Context) (auth.Policy, error) {
	p := auth.DefaultPolicy()
	tx := s.db.WithContext(ctx)

	v, err := get(tx, KeyPasswordMinLength, strconv.Itoa(p.MinLength))
	if err != nil {
		return p, err
	}
	if p.MinLength, err = strconv.Atoi(v); err != nil {
		return p, fmt.Errorf("settings: %s: %w", KeyPasswordMinLength, err)
	}
	if p.RequireDigit, err = getBool(tx, KeyPasswordRequireDigit, p.RequireDigit); err != nil {
		return p, err
	}
	if p.RequireLetter, err = getBool(tx, KeyPasswordRequireLetter, p.RequireLetter); err != nil {
		return p, err
	}
	return p, nil
}

func getBool(tx *gorm.DB, key string, def bool) (bool, error) {
	v, err := get(tx, key, strconv.FormatBool(def))
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("settings: %s: %w", key, err)
	}
	return b, nil
}

// SetPasswordPolicy stores all policy keys in one transaction.
func (s *Store) SetPasswordPolicy(ctx context.Context, p auth.Policy) error {
	if p.MinLength < 1 {
		return fmt.Errorf("settings: password min length must be positive, got %d", p.MinLength)
	}
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := set(tx, KeyPasswordMinLength, strconv.Itoa(p.MinLength), now); err != nil {
			return err
		}
		if err := set(tx, KeyPasswordRequireDigit, strconv.FormatBool(p.RequireDigit), now); err != nil {
			return err
		}
		return set(tx, KeyPasswordRequireLetter, strconv.FormatBool(p.RequireLetter), now)
	})
}
