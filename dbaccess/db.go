package dbaccess

import (
	"fmt"
	"strings"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

// IsNotFoundError returns true if the given dbResult contains nothing but a
// RecordNotFound error.
func IsNotFoundError(dbResult *gorm.DB) bool {
	return dbResult.RecordNotFound() && len(dbResult.GetErrors()) == 1
}

// HasDBError returns true if the given dbResult contains an error that isn't
// RecordNotFound.
func HasDBError(dbResult *gorm.DB) bool {
	return !IsNotFoundError(dbResult) && len(dbResult.GetErrors()) > 0
}

// NewErrorFromDBErrors takes a slice of database errors and a prefix, and
// returns an error with all of the database errors formatted to one string
// with the given prefix.
func NewErrorFromDBErrors(prefix string, dbErrors []error) error {
	dbErrorsStrings := make([]string, len(dbErrors))
	for i, dbErr := range dbErrors {
		dbErrorsStrings[i] = fmt.Sprintf("\"%s\"", dbErr)
	}
	return errors.Errorf("%s [%s]", prefix, strings.Join(dbErrorsStrings, ","))
}

// IsDuplicateKeyError returns true when err is a MySQL unique-constraint
// violation. Callers use it to treat constraint races as benign.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Error 1062") ||
		strings.Contains(err.Error(), "Duplicate entry")
}

// forUpdate appends FOR UPDATE to the query built on top of it. Must run
// inside a transaction.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Set("gorm:query_option", "FOR UPDATE")
}

// WithTransaction runs fn inside a database transaction, committing when fn
// returns nil and rolling back otherwise.
func WithTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin transaction")
	}

	err := fn(tx)
	if err != nil {
		rollbackErr := tx.Rollback().Error
		if rollbackErr != nil {
			return errors.Wrapf(err, "failed to rollback transaction after error (rollback error: %s)", rollbackErr)
		}
		return err
	}

	return errors.Wrap(tx.Commit().Error, "failed to commit transaction")
}
