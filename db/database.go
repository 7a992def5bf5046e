package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"soundvault/config"
	"soundvault/logger"
	"soundvault/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the raw connection used by the repositories.
var DB *sql.DB

// GormDB owns the connection pool and drives schema migration.
var GormDB *gorm.DB

// ConnectDB establishes the MySQL connection through GORM and exposes the
// underlying *sql.DB for the repositories.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	GormDB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := GormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = sqlDB
	logger.Info("Successfully connected to the database")
	return nil
}

// CloseDB closes the shared database connection.
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// InitDB migrates the schema and ensures the full-text search index exists.
func InitDB() error {
	if GormDB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := GormDB.AutoMigrate(&model.User{}, &model.Song{}); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}

	// AutoMigrate cannot express FULLTEXT indexes, so it is created by hand.
	// MySQL has no CREATE INDEX IF NOT EXISTS, hence the duplicate-key check.
	err := GormDB.Exec("CREATE FULLTEXT INDEX idx_songs_search ON songs (title, artist, album)").Error
	if err != nil && !strings.Contains(err.Error(), "Duplicate key name") {
		return fmt.Errorf("failed to create full-text index on songs: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}
