package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/utils"
)

// New opens the relational database selected by DB_DRIVER: "postgres" for
// deployments, "sqlite" for local development.
func New(log *logger.Logger) (*gorm.DB, error) {
	driver := utils.GetEnv("DB_DRIVER", "postgres", log)
	switch driver {
	case "postgres":
		return newPostgres(log)
	case "sqlite":
		return newSQLite(log)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

func newPostgres(log *logger.Logger) (*gorm.DB, error) {
	host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	port := utils.GetEnv("POSTGRES_PORT", "5432", log)
	user := utils.GetEnv("POSTGRES_USER", "postgres", log)
	password := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	name := utils.GetEnv("POSTGRES_NAME", "voice", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return gdb, nil
}

func newSQLite(log *logger.Logger) (*gorm.DB, error) {
	path := utils.GetEnv("SQLITE_PATH", "voice.db", log)

	log.Info("Opening SQLite database...", "path", path)
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return gdb, nil
}
