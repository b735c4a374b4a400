package storage

import (
	"os"
	"path/filepath"
	"strings"

	"fitrank/internal/config"
	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database SQLite 数据库连接
type Database struct {
	DB     *gorm.DB
	logger *logger.Logger
}

// Open 打开数据库并按需迁移
func Open(cfg config.DatabaseConfig) (*Database, error) {
	log := logger.NewLogger("storage")

	inMemory := strings.Contains(cfg.Path, ":memory:") || strings.Contains(cfg.Path, "mode=memory")
	if !inMemory {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.ErrDatabaseConnection("create database directory", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.ErrDatabaseConnection(cfg.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.ErrDatabaseConnection("get sql.DB", err)
	}
	if inMemory {
		// 每个连接都是独立的内存库
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	database := &Database{DB: db, logger: log}

	if cfg.AutoMigrate {
		if err := database.Migrate(); err != nil {
			return nil, err
		}
	}

	log.Info("Database opened", logger.Fields{
		"path":         cfg.Path,
		"auto_migrate": cfg.AutoMigrate,
	})

	return database, nil
}

// Migrate 自动迁移表结构
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(
		&models.Product{},
		&models.UserProfile{},
		&models.InteractionEvent{},
	); err != nil {
		return errors.ErrDatabaseQuery("auto migrate", err)
	}
	return nil
}

// Ping 检查连接
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return errors.ErrDatabaseConnection("get sql.DB", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return errors.ErrDatabaseConnection("ping", err)
	}
	return nil
}

// Close 关闭连接
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
