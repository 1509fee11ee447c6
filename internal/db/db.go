package db

import (
	"fmt"
	"path/filepath"

	puresqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Handle struct {
	DB     *gorm.DB
	Driver string
	DSN    string
}

// Open connects with one of: sqlite (pure Go, default), sqlite3 (cgo), mysql, postgres.
func Open(driver, dsn string) (*Handle, error) {
	var dial gorm.Dialector
	switch driver {
	case "", "sqlite":
		driver = "sqlite"
		dial = puresqlite.Open(dsn)
	case "sqlite3":
		dial = sqlite.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	case "postgres", "postgresql":
		driver = "postgres"
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown DB driver %q", driver)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Info for verbose SQL
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return &Handle{DB: gdb, Driver: driver, DSN: dsn}, nil
}

// OpenAt opens the default pure-Go sqlite file in dir.
func OpenAt(dir string) (*Handle, error) {
	return Open("sqlite", filepath.Join(dir, "inventory.db"))
}

func (h *Handle) Close() error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
