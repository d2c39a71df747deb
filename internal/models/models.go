package models

import (
	"fmt"
	"strings"

	"corpus-gen/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局数据库实例
var DB *gorm.DB

// InitDB 初始化数据库
func InitDB(cfg *config.Config) error {
	db, err := OpenDB(cfg.Database)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// OpenDB 按配置打开数据库连接
func OpenDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite, "":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	// 配置GORM
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 使用静默模式
	})
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if cfg.Driver != config.DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite 单写者，外键约束需在每个连接上开启，统一使用一个连接
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// sqliteDSN 确保 sqlite 连接开启外键约束
func sqliteDSN(path string) string {
	if strings.Contains(path, "_foreign_keys=") || strings.Contains(path, "_fk=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=1"
}

// AutoMigrate 自动迁移数据库表，外键约束随表一起创建
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Product{},
		&Feature{},
		&Slot{},
		&Intent{},
		&Corpus{},
	)
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}
