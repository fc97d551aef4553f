package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/yungbote/simgraph/internal/domain"
	"github.com/yungbote/simgraph/internal/platform/logger"
)

const DefaultLedgerDSN = "file:simgraph-runs.db?_busy_timeout=5000"

// Open connects to the run ledger. postgres:// URLs and key=value DSNs use
// Postgres; anything else is treated as a SQLite DSN or file path.
func Open(dsn string, logg *logger.Logger) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = DefaultLedgerDSN
	}
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var dialector gorm.Dialector
	kind := "sqlite"
	if isPostgresDSN(dsn) {
		kind = "postgres"
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open run ledger (%s): %w", kind, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info("run ledger ready", "driver", kind, "ledger_dsn", dsn)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.IngestRun{}); err != nil {
		return fmt.Errorf("migrate run ledger: %w", err)
	}
	return nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}
