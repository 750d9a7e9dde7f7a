// Package migration applies the embedded schema on startup so the service
// is usable out of the box.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	anomalydomain "github.com/smallbiznis/creditd/internal/anomaly/domain"
	invoicedomain "github.com/smallbiznis/creditd/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
	subscriptiondomain "github.com/smallbiznis/creditd/internal/subscription/domain"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the model tags. The SQL files above are
// written for postgres; other dialects get their schema this way.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ledgerdomain.CreditLedger{},
		&ledgerdomain.CreditTransaction{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&anomalydomain.UsageAnomaly{},
	)
}
