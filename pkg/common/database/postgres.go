package database

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	TypePostgres = "postgresql"
	TypeSQLite   = "sqlite"
)

// Open connects to dbName, or to the configured database when dbName is empty.
func Open(cfg *config.Config, dbName string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.DatabaseType) {
	case TypePostgres, "postgres":
		dialector = postgres.Open(postgresDSN(cfg, dbName))
	case TypeSQLite:
		dialector = sqlite.Open(sqlitePath(cfg, dbName) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)")
	default:
		return nil, errs.NewConfigurationError(fmt.Errorf("unsupported DATABASE_TYPE %q", cfg.DatabaseType))
	}

	conn, err := gorm.Open(dialector, gcfg)
	if err != nil {
		logger.Log.WithError(err).WithField("database", Name(cfg, dbName)).Error("Failed to connect to warehouse")
		return nil, err
	}

	if strings.ToLower(cfg.DatabaseType) == TypeSQLite {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY under the worker pool.
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	logger.Log.WithField("database", Name(cfg, dbName)).Info("Connected to warehouse")
	return conn, nil
}

// Name is the database-of-origin label written into exports and manifests.
func Name(cfg *config.Config, dbName string) string {
	if dbName != "" {
		return strings.TrimSuffix(filepath.Base(dbName), ".db")
	}
	if strings.ToLower(cfg.DatabaseType) == TypeSQLite {
		return strings.TrimSuffix(filepath.Base(cfg.SQLitePath), ".db")
	}
	return cfg.PostgresDB
}

// CreateDatabaseIfNotExists connects to the maintenance database and creates dbName when missing.
// SQLite files are created on first open, so only PostgreSQL needs this.
func CreateDatabaseIfNotExists(cfg *config.Config, dbName string) error {
	if strings.ToLower(cfg.DatabaseType) == TypeSQLite {
		return nil
	}
	if dbName == "" {
		dbName = cfg.PostgresDB
	}

	admin, err := gorm.Open(postgres.Open(postgresDSN(cfg, "postgres")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("connect to maintenance database: %w", err)
	}
	defer Close(admin)

	var count int64
	if err := admin.Raw("SELECT count(*) FROM pg_database WHERE datname = ?", dbName).Scan(&count).Error; err != nil {
		return fmt.Errorf("check database %s: %w", dbName, err)
	}
	if count > 0 {
		logger.Log.WithField("database", dbName).Info("Database already exists")
		return nil
	}

	if err := admin.Exec(fmt.Sprintf("CREATE DATABASE %q", dbName)).Error; err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	logger.Log.WithField("database", dbName).Info("Database created")
	return nil
}

func Close(conn *gorm.DB) error {
	if conn != nil {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func postgresDSN(cfg *config.Config, dbName string) string {
	if dbName == "" {
		dbName = cfg.PostgresDB
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.PostgresHost,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		dbName,
		cfg.PostgresPort,
		cfg.PostgresSSLMode,
	)
}

func sqlitePath(cfg *config.Config, dbName string) string {
	if dbName == "" {
		return cfg.SQLitePath
	}
	if strings.HasSuffix(dbName, ".db") {
		return dbName
	}
	return filepath.Join(filepath.Dir(cfg.SQLitePath), dbName+".db")
}
