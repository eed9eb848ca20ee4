package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/CodeByKalvin/Logex/internal/model"
)

// Open opens (creating if needed) the local history database and runs
// migrations. SQLite gets a single connection so concurrent writers
// from the monitor loop and the retry worker serialize cleanly.
func Open(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&model.Alert{}, &model.AlertDelivery{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}
