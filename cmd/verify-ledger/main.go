package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"go-batch-ledger/internal/repository"
	"go-batch-ledger/internal/service"
	"go-batch-ledger/pkg/config"
	"go-batch-ledger/pkg/database"
	"go-batch-ledger/pkg/logger"

	"github.com/shopspring/decimal"
)

// verify-ledger walks every batch, allocation and genealogy edge and exits
// with status 1 when the stored ledger breaks a quantity or lineage rule.
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "abort the check after this long")
	migrate := flag.Bool("migrate", false, "run schema migration before checking")
	flag.Parse()

	log := logger.Get()

	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.EnvFileMissing() {
		log.Warn(".env file not found, relying on system env")
	}
	decimal.MarshalJSONWithoutQuotes = true

	// 2. Setup Database
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	if *migrate {
		if err := repository.AutoMigrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}

	// 3. Verify (read only, no locks needed)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := service.NewReportService(service.NewStore(db, nil)).Verify(ctx)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("Write report: %v", err)
	}

	if !report.OK {
		log.WithField("issues", len(report.Issues)).Error("Ledger verification found issues")
		os.Exit(1)
	}
	log.WithField("batches", report.CheckedBatches).Info("Ledger verified")
}
