package database

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/config"
	"github.com/dluxio/hiveonboard/logger"
)

var (
	db  *gorm.DB
	log = logger.Logger("DTBS")
)

// DB returns a reference to the database connection
func DB() (*gorm.DB, error) {
	if db == nil {
		return nil, errors.New("database is not connected")
	}
	return db, nil
}

// Connect connects to the database mentioned in the config variable.
func Connect(cfg *config.Config) error {
	isCurrent, version, err := isCurrent(cfg)
	if err != nil {
		return errors.Wrap(err, "error checking whether the database is current")
	}
	if !isCurrent {
		return errors.Errorf("database is not current (version %d). Please migrate"+
			" the database by running the application with --migrate flag and then run it again", version)
	}

	log.Infof("Connecting to database %s", sanitizedConnection(cfg))
	db, err = gorm.Open("mysql", cfg.DBConnection+"?parseTime=true")
	if err != nil {
		return errors.Wrap(err, "error connecting to database")
	}
	db.LogMode(false)

	return nil
}

// Close closes the database connection.
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// sanitizedConnection strips the credentials from the connection string for
// logging.
func sanitizedConnection(cfg *config.Config) string {
	for i := len(cfg.DBConnection) - 1; i >= 0; i-- {
		if cfg.DBConnection[i] == '@' {
			return fmt.Sprintf("***%s", cfg.DBConnection[i:])
		}
	}
	return cfg.DBConnection
}
