package db

import (
	"fmt"

	"github.com/smallbiznis/creditd/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "mysql":
		return mysql.Open(dsnOr(cfg, fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		))), nil
	case "postgres":
		return postgres.Open(dsnOr(cfg, fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		))), nil
	case "sqlite":
		return sqlite.Open(dsnOr(cfg, cfg.DBName)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}

// dsnOr prefers the full DB_URI over the DSN assembled from the individual
// connection fields.
func dsnOr(cfg config.Config, built string) string {
	if cfg.DBURI != "" {
		return cfg.DBURI
	}
	return built
}
