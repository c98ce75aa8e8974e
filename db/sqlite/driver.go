package sqlite

import (
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memSeq int64

// Open creates a GORM *DB backed by a SQLite file.
func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// OpenMemory creates a fresh in-memory database, used by tests.
// Each call gets its own named DB; cache=shared keeps the whole
// connection pool on that one DB.
func OpenMemory() (*gorm.DB, error) {
	name := fmt.Sprintf("file:mem%d?mode=memory&cache=shared", atomic.AddInt64(&memSeq, 1))
	return gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
