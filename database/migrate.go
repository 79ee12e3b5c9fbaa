package database

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/config"
)

// Migrate applies all pending migrations to the database.
func Migrate(cfg *config.Config) error {
	migrator, closeMigrator, err := openMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator()

	err = migrator.Up()
	if err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "error migrating database")
	}

	version, isDirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if isDirty {
		return errors.Errorf("database is dirty at version %d; resolve manually", version)
	}
	log.Infof("Database is at version %d", version)
	return nil
}

// isCurrent reports whether every known migration has been applied.
func isCurrent(cfg *config.Config) (bool, uint, error) {
	migrator, closeMigrator, err := openMigrator(cfg)
	if err != nil {
		return false, 0, err
	}
	defer closeMigrator()

	version, isDirty, err := migrator.Version()
	if err == migrate.ErrNilVersion {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if isDirty {
		return false, version, errors.Errorf("database is dirty at version %d", version)
	}

	// Applying a single step from the current version either fails with
	// ErrNoChange, in which case we're up to date, or succeeds, in which
	// case we were behind.
	err = migrator.Up()
	if err == migrate.ErrNoChange {
		return true, version, nil
	}
	if err != nil {
		return false, version, err
	}
	version, _, err = migrator.Version()
	return true, version, err
}

// openMigrator opens a dedicated connection for golang-migrate. It is kept
// separate from the gorm connection so that a failed migration cannot leak
// into request handling.
func openMigrator(cfg *config.Config) (*migrate.Migrate, func(), error) {
	sqlDB, err := sql.Open("mysql", cfg.DBConnection+"?multiStatements=true&parseTime=true")
	if err != nil {
		return nil, nil, errors.Wrap(err, "error connecting to database for migration")
	}

	driver, err := migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	sourceURL := fmt.Sprintf("file://%s", cfg.MigrationsPath)
	migrator, err := migrate.NewWithDatabaseInstance(sourceURL, "mysql", driver)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return migrator, func() { sqlDB.Close() }, nil
}
