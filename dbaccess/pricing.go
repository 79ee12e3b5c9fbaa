package dbaccess

import (
	"time"

	"github.com/jinzhu/gorm"

	"github.com/dluxio/hiveonboard/dbmodels"
)

// InsertPricingSnapshot persists one computed quote table.
func InsertPricingSnapshot(db *gorm.DB, snapshot *dbmodels.PricingSnapshot) error {
	dbResult := db.Create(snapshot)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to insert pricing snapshot: ", dbResult.GetErrors())
	}
	return nil
}

// LatestPricingSnapshot returns the newest snapshot, or (nil, nil) when the
// table is empty.
func LatestPricingSnapshot(db *gorm.DB) (*dbmodels.PricingSnapshot, error) {
	snapshot := &dbmodels.PricingSnapshot{}
	dbResult := db.Order("created_at DESC").First(snapshot)
	if IsNotFoundError(dbResult) {
		return nil, nil
	}
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch pricing snapshot: ", dbResult.GetErrors())
	}
	return snapshot, nil
}

// PurgePricingSnapshotsBefore removes snapshots older than the cutoff.
func PurgePricingSnapshotsBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	dbResult := db.
		Where("created_at < ?", cutoff).
		Delete(&dbmodels.PricingSnapshot{})
	if HasDBError(dbResult) {
		return 0, NewErrorFromDBErrors("failed to purge pricing snapshots: ", dbResult.GetErrors())
	}
	return dbResult.RowsAffected, nil
}
