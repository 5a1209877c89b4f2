package db

import (
	"fmt"

	"gamecore-events/pkg/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Dialect builds a gorm dialector from the configured database type.
// Unknown types fall back to an in-memory sqlite database so a bare
// environment can still boot.
func Dialect(cfg *config.Config) gorm.Dialector {
	d := cfg.Database
	switch d.Type {
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			d.Host, d.Port, d.User, d.Password, d.DBNAME, d.SSLMode, d.Timezone,
		)
		return postgres.Open(dsn)
	case "mysql":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.User, d.Password, d.Host, d.Port, d.DBNAME,
		)
		return mysql.Open(dsn)
	case "sqlite":
		if d.DBNAME == "" {
			return sqlite.Open(":memory:")
		}
		return sqlite.Open(d.DBNAME)
	default:
		return sqlite.Open(":memory:")
	}
}
