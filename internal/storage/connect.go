package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens PostgreSQL and Redis, checks both and runs migrations.
func Connect(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect Redis: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, nil, err
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb, nil
}

// Migrate creates or updates every table the chat core uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.WaitingEntry{},
		&models.ChatRoom{},
		&models.ChatHistory{},
		&models.TypingStatus{},
		&models.OnlineUser{},
		&models.Complaint{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
