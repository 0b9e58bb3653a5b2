package db

import (
	"fmt"
	"sync/atomic"

	glebsqlite "github.com/glebarez/sqlite"
	"github.com/smallbiznis/identra/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module provides the shared gorm connection.
var Module = fx.Module("db",
	fx.Provide(New),
)

func New(cfg config.Config) (*gorm.DB, error) {
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialect, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	}
	if cfg.DBMaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	}

	return conn, nil
}

var testDBSeq atomic.Int64

// NewTest opens a fresh in-memory sqlite database for package tests. The
// shared cache keeps every pooled connection on the same database; the
// sequence number keeps separate calls isolated from each other.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:test%d?mode=memory&cache=shared", testDBSeq.Add(1))
	return gorm.Open(glebsqlite.Open(dsn), &gorm.Config{TranslateError: true})
}
