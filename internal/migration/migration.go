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
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	promodomain "github.com/smallbiznis/paylink/internal/promo/domain"
	referraldomain "github.com/smallbiznis/paylink/internal/referral/domain"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// RunMigrations applies the embedded postgres migrations.
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
	// migrator.Close would close the shared *sql.DB.

	return nil
}

// Models lists every persisted type.
func Models() []any {
	return []any{
		&paymentdomain.PurchaseOrder{},
		&paymentdomain.PaymentTransaction{},
		&paymentdomain.WebhookEventRecord{},
		&promodomain.Campaign{},
		&promodomain.Promo{},
		&promodomain.Usage{},
		&referraldomain.Program{},
		&referraldomain.Referral{},
		&referraldomain.RewardsBalance{},
	}
}

// AutoMigrate builds the schema from the gorm models. It serves sqlite and
// mysql deployments, which the postgres migrations do not cover.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
