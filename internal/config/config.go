package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mkravch/media_library/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	JWT_SECRET     string
	REFRESH_SECRET string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration

	KAFKA_ADDRESS string

	GOOGLE_BOOKS_URL string
	GOOGLE_API_KEY   string

	MUSIC_DIR string
	PORT      string
	LOG_LEVEL string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:          os.Getenv("DB_HOST"),
		DB_PORT:          os.Getenv("DB_PORT"),
		DB_USER:          os.Getenv("DB_USER"),
		DB_PASSWORD:      os.Getenv("DB_PASSWORD"),
		DB_NAME:          os.Getenv("DB_NAME"),
		ES_URL:           os.Getenv("ES_URL"),
		ES_USER:          os.Getenv("ES_USER"),
		ES_PASSWORD:      os.Getenv("ES_PASSWORD"),
		JWT_SECRET:       os.Getenv("JWT_SECRET"),
		REFRESH_SECRET:   os.Getenv("REFRESH_SECRET"),
		AccessTTL:        durationEnv("ACCESS_TTL_MIN", 15) * time.Minute,
		RefreshTTL:       durationEnv("REFRESH_TTL_HOURS", 7*24) * time.Hour,
		KAFKA_ADDRESS:    os.Getenv("KAFKA_ADDRESS"),
		GOOGLE_BOOKS_URL: getenvDefault("GOOGLE_BOOKS_API_URL", "https://www.googleapis.com/books/v1/volumes"),
		GOOGLE_API_KEY:   os.Getenv("GOOGLE_API_KEY"),
		MUSIC_DIR:        getenvDefault("MUSIC_DIR", "music"),
		PORT:             getenvDefault("PORT", "8080"),
		LOG_LEVEL:        getenvDefault("LOG_LEVEL", "info"),
	}

	return config, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def int64) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Notice: invalid %s=%q, using default %d", key, v, def)
		return time.Duration(def)
	}
	return time.Duration(n)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Book{},
		&models.BorrowRecord{},
		&models.RefreshToken{},
		&models.BlocklistEntry{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
