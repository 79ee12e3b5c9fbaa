package dbaccess

import (
	"time"

	"github.com/jinzhu/gorm"

	"github.com/dluxio/hiveonboard/dbmodels"
)

// ConfirmationByCryptoTxHash returns the confirmation holding the given
// transaction hash on the given network, regardless of which channel it
// credits. Returns (nil, nil) when the hash was never seen.
func ConfirmationByCryptoTxHash(db *gorm.DB, cryptoType, txHash string) (*dbmodels.PaymentConfirmation, error) {
	confirmation := &dbmodels.PaymentConfirmation{}
	dbResult := db.
		Where(&dbmodels.PaymentConfirmation{CryptoType: cryptoType, TxHash: txHash}).
		First(confirmation)
	if IsNotFoundError(dbResult) {
		return nil, nil
	}
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch confirmation: ", dbResult.GetErrors())
	}
	return confirmation, nil
}

// ConfirmationsForChannel returns every confirmation row credited to a
// channel.
func ConfirmationsForChannel(db *gorm.DB, channelID uint64) ([]*dbmodels.PaymentConfirmation, error) {
	confirmations := []*dbmodels.PaymentConfirmation{}
	dbResult := db.
		Where(&dbmodels.PaymentConfirmation{ChannelID: channelID}).
		Find(&confirmations)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch confirmations: ", dbResult.GetErrors())
	}
	return confirmations, nil
}

// UpsertConfirmation records one sighting of a transaction for a channel.
// Repeated sightings update the mutable columns in place; the
// (channel_id, tx_hash) unique key makes the operation idempotent and the
// (crypto_type, tx_hash) unique key rejects crediting a second channel with
// the same transaction even when two pollers race.
func UpsertConfirmation(db *gorm.DB, confirmation *dbmodels.PaymentConfirmation) error {
	existing := &dbmodels.PaymentConfirmation{}
	dbResult := db.
		Where(&dbmodels.PaymentConfirmation{
			ChannelID: confirmation.ChannelID,
			TxHash:    confirmation.TxHash,
		}).
		First(existing)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to fetch confirmation for upsert: ", dbResult.GetErrors())
	}

	if IsNotFoundError(dbResult) {
		createResult := db.Create(confirmation)
		if HasDBError(createResult) {
			dbErrors := createResult.GetErrors()
			if len(dbErrors) == 1 && IsDuplicateKeyError(dbErrors[0]) {
				// A concurrent poller inserted the same sighting
				// first. Re-running the update path below would
				// be equivalent, so just report success.
				return nil
			}
			return NewErrorFromDBErrors("failed to insert confirmation: ", dbErrors)
		}
		return nil
	}

	updateResult := db.
		Model(existing).
		Updates(map[string]interface{}{
			"block_height":    confirmation.BlockHeight,
			"confirmations":   confirmation.Confirmations,
			"amount_received": confirmation.AmountReceived,
		})
	if HasDBError(updateResult) {
		return NewErrorFromDBErrors("failed to update confirmation: ", updateResult.GetErrors())
	}
	confirmation.ID = existing.ID
	return nil
}

// MarkConfirmationProcessed stamps the time a confirmation finished the
// credit pipeline.
func MarkConfirmationProcessed(db *gorm.DB, confirmationID uint64, processedAt time.Time) error {
	dbResult := db.
		Model(&dbmodels.PaymentConfirmation{}).
		Where("id = ? AND processed_at IS NULL", confirmationID).
		Update("processed_at", processedAt)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to mark confirmation processed: ", dbResult.GetErrors())
	}
	return nil
}

// RepairOrphans removes confirmation and address rows whose owning channel no
// longer exists. Cascading foreign keys make this a no-op on healthy
// databases; it exists to clean up after manual intervention.
func RepairOrphans(db *gorm.DB) (int64, error) {
	var removed int64

	dbResult := db.Exec("DELETE FROM payment_confirmations WHERE channel_id NOT IN (SELECT id FROM payment_channels)")
	if HasDBError(dbResult) {
		return 0, NewErrorFromDBErrors("failed to repair orphan confirmations: ", dbResult.GetErrors())
	}
	removed += dbResult.RowsAffected

	dbResult = db.Exec("DELETE FROM hive_account_creations WHERE channel_id NOT IN (SELECT id FROM payment_channels)")
	if HasDBError(dbResult) {
		return 0, NewErrorFromDBErrors("failed to repair orphan creation attempts: ", dbResult.GetErrors())
	}
	removed += dbResult.RowsAffected

	return removed, nil
}
