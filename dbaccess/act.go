package dbaccess

import (
	"time"

	"github.com/jinzhu/gorm"

	"github.com/dluxio/hiveonboard/dbmodels"
)

// ACTBalanceForCreator returns the ACT inventory row of a creator account,
// creating a zeroed row on first use.
func ACTBalanceForCreator(db *gorm.DB, creatorAccount string) (*dbmodels.ACTBalance, error) {
	balance := &dbmodels.ACTBalance{}
	dbResult := db.
		Where(&dbmodels.ACTBalance{CreatorAccount: creatorAccount}).
		First(balance)
	if IsNotFoundError(dbResult) {
		balance = &dbmodels.ACTBalance{CreatorAccount: creatorAccount}
		createResult := db.Create(balance)
		if HasDBError(createResult) {
			return nil, NewErrorFromDBErrors("failed to create ACT balance row: ", createResult.GetErrors())
		}
		return balance, nil
	}
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch ACT balance: ", dbResult.GetErrors())
	}
	return balance, nil
}

// UpdateACTBalance overwrites the chain-synced inventory columns.
func UpdateACTBalance(db *gorm.DB, creatorAccount string, actBalance int, resourceCredits int64, checkedAt time.Time) error {
	dbResult := db.
		Model(&dbmodels.ACTBalance{}).
		Where("creator_account = ?", creatorAccount).
		Updates(map[string]interface{}{
			"act_balance":      actBalance,
			"resource_credits": resourceCredits,
			"last_rc_check":    checkedAt,
		})
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to update ACT balance: ", dbResult.GetErrors())
	}
	return nil
}

// RecordACTClaim stamps a successful claim and its post-claim inventory.
func RecordACTClaim(db *gorm.DB, creatorAccount string, actBalance int, resourceCredits int64, claimedAt time.Time) error {
	dbResult := db.
		Model(&dbmodels.ACTBalance{}).
		Where("creator_account = ?", creatorAccount).
		Updates(map[string]interface{}{
			"act_balance":      actBalance,
			"resource_credits": resourceCredits,
			"last_claim_time":  claimedAt,
			"last_rc_check":    claimedAt,
		})
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to record ACT claim: ", dbResult.GetErrors())
	}
	return nil
}
