package db

import (
	"fmt"
	"net"
	"strconv"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/zulandar/taskdesk/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteDSN builds the DSN for a sqlite data file with the busy timeout and
// foreign keys enabled. Transactions begin IMMEDIATE so writers from other
// processes wait on the busy timeout instead of failing a lock upgrade.
func SQLiteDSN(path string) string {
	return path + "?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
}

// MySQLDSN builds a DSN for a MySQL-compatible server.
func MySQLDSN(cfg config.DatabaseConfig) string {
	mc := mysqldrv.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Open opens a GORM connection for the configured driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.Path))
	case "mysql":
		dialector = mysql.Open(MySQLDSN(cfg))
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("db: connect sqlite: %w", err)
		}
		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

// Close releases the underlying connection pool.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}
