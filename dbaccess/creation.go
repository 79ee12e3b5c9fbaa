package dbaccess

import (
	"github.com/jinzhu/gorm"

	"github.com/dluxio/hiveonboard/dbmodels"
)

// InsertCreationAttempt persists a new account-creation attempt in the
// attempting state.
func InsertCreationAttempt(db *gorm.DB, attempt *dbmodels.HiveAccountCreation) error {
	dbResult := db.Create(attempt)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to insert creation attempt: ", dbResult.GetErrors())
	}
	return nil
}

// CreationAttemptsForChannel returns every attempt made for a channel, oldest
// first.
func CreationAttemptsForChannel(db *gorm.DB, channelID uint64) ([]*dbmodels.HiveAccountCreation, error) {
	attempts := []*dbmodels.HiveAccountCreation{}
	dbResult := db.
		Where(&dbmodels.HiveAccountCreation{ChannelID: channelID}).
		Order("created_at ASC").
		Find(&attempts)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch creation attempts: ", dbResult.GetErrors())
	}
	return attempts, nil
}

// CountCreationAttempts returns how many attempts a channel has accumulated.
func CountCreationAttempts(db *gorm.DB, channelID uint64) (int, error) {
	var count int
	dbResult := db.
		Model(&dbmodels.HiveAccountCreation{}).
		Where("channel_id = ?", channelID).
		Count(&count)
	if HasDBError(dbResult) {
		return 0, NewErrorFromDBErrors("failed to count creation attempts: ", dbResult.GetErrors())
	}
	return count, nil
}

// CompleteCreationAttempt marks an attempt successful and records the
// broadcast transaction id.
func CompleteCreationAttempt(db *gorm.DB, attemptID uint64, txID string) error {
	dbResult := db.
		Model(&dbmodels.HiveAccountCreation{}).
		Where("id = ? AND status = ?", attemptID, dbmodels.CreationStatusAttempting).
		Updates(map[string]interface{}{
			"status": dbmodels.CreationStatusSuccess,
			"tx_id":  txID,
		})
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to complete creation attempt: ", dbResult.GetErrors())
	}
	return nil
}

// FailCreationAttempt marks an attempt failed with the broadcast error.
func FailCreationAttempt(db *gorm.DB, attemptID uint64, errorMessage string) error {
	dbResult := db.
		Model(&dbmodels.HiveAccountCreation{}).
		Where("id = ? AND status = ?", attemptID, dbmodels.CreationStatusAttempting).
		Updates(map[string]interface{}{
			"status":        dbmodels.CreationStatusFailed,
			"error_message": errorMessage,
		})
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to fail creation attempt: ", dbResult.GetErrors())
	}
	return nil
}
