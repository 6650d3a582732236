package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	// Load env from .env; real env vars win over file values.
	godotenv.Load()
}

// ConnectDatabase opens the MySQL store and returns the handle. There is no
// package-level *gorm.DB: main() wires the returned handle into every
// component so tests can construct their own store with its own lifecycle.
func ConnectDatabase() (*gorm.DB, error) {
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?multiStatements=true&parseTime=true",
		dbUser,
		dbPassword,
		dbHost,
		dbPort,
		dbName,
	)

	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
		sqlDB.SetMaxOpenConns(envInt("DB_MAX_OPEN_CONNS", 25))
		sqlDB.SetMaxIdleConns(envInt("DB_MAX_IDLE_CONNS", 10))
		sqlDB.SetConnMaxLifetime(time.Duration(envInt("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second)
	}

	return db, nil
}

// ConnectDatabaseWithRetry keeps trying with capped exponential backoff.
// Used by the server, which must come up even if MySQL is still starting.
func ConnectDatabaseWithRetry() *gorm.DB {
	var attempt int
	for {
		attempt++
		db, err := ConnectDatabase()
		if err == nil {
			return db
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("database connect attempt %d failed (%v); retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func gormConfig() *gorm.Config {
	logLevel := logger.Error
	if os.Getenv("DB_LOG_LEVEL") == "info" {
		logLevel = logger.Info
	}
	return &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logLevel,
				IgnoreRecordNotFoundError: true,
			},
		),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
