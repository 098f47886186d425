package database

import (
	"fmt"
	"time"

	"go-batch-ledger/pkg/config"
	applog "go-batch-ledger/pkg/logger"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDB opens the configured database and sets up pooling and tracing
func ConnectDB(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(
		applog.Get(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	default:
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN(),
			PreferSimpleProtocol: true, // Disables implicit prepared statements for pgbouncer transaction mode
		})
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		PrepareStmt:    false,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
	}

	// Connection Pooling Setup
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	applog.Get().WithField("driver", cfg.DBDriver).Info("Database connection established")
	return db, nil
}
