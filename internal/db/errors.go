package db

import (
	"errors"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is wrapped by every store's not-found sentinel.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("already exists")
	// ErrBackupFailed aborts a migration before any schema change.
	ErrBackupFailed = errors.New("backup failed")
)

const mysqlDuplicateEntry = 1062

// IsConflict reports whether err is a unique-constraint violation from any
// supported driver.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

// Classify maps driver errors onto the package sentinels. Unknown errors and
// nil are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Join(ErrNotFound, err)
	case IsConflict(err) && !errors.Is(err, ErrConflict):
		return errors.Join(ErrConflict, err)
	default:
		return err
	}
}
