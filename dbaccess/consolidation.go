package dbaccess

import (
	"github.com/jinzhu/gorm"

	"github.com/dluxio/hiveonboard/dbmodels"
)

// InsertConsolidation persists an executed consolidation under its unique
// txId.
func InsertConsolidation(db *gorm.DB, consolidation *dbmodels.ConsolidationTransaction) error {
	dbResult := db.Create(consolidation)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to insert consolidation: ", dbResult.GetErrors())
	}
	return nil
}

// ConsolidationByTxID fetches a consolidation record. Returns (nil, nil) when
// missing.
func ConsolidationByTxID(db *gorm.DB, txID string) (*dbmodels.ConsolidationTransaction, error) {
	consolidation := &dbmodels.ConsolidationTransaction{}
	dbResult := db.
		Where(&dbmodels.ConsolidationTransaction{TxID: txID}).
		First(consolidation)
	if IsNotFoundError(dbResult) {
		return nil, nil
	}
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch consolidation: ", dbResult.GetErrors())
	}
	return consolidation, nil
}
