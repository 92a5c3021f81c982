package database

import (
	"fmt"
	"testing"

	"bankledger/internal/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OpenTestDB 为单个测试创建独立的内存 sqlite 库
func OpenTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := Open(&config.DatabaseConfig{
		Driver:   "sqlite",
		Database: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel: "silent",
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}

	tb.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
