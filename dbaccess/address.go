package dbaccess

import (
	"time"

	"github.com/jinzhu/gorm"

	"github.com/dluxio/hiveonboard/dbmodels"
)

// AddressForChannel returns the deposit address row owned by a channel.
// Returns (nil, nil) when the channel has no address.
func AddressForChannel(db *gorm.DB, channelID uint64) (*dbmodels.CryptoAddress, error) {
	address := &dbmodels.CryptoAddress{}
	dbResult := db.Where("channel_id = ?", channelID).First(address)
	if IsNotFoundError(dbResult) {
		return nil, nil
	}
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch address: ", dbResult.GetErrors())
	}
	return address, nil
}

// ReusableAddress locks and returns one recycled address of the given
// currency whose cool-down has passed, or (nil, nil) when none is available.
// Must run inside a transaction; the row lock keeps two concurrent channel
// creations from adopting the same address.
func ReusableAddress(tx *gorm.DB, cryptoType string, now time.Time) (*dbmodels.CryptoAddress, error) {
	address := &dbmodels.CryptoAddress{}
	dbResult := forUpdate(tx).
		Where("crypto_type = ? AND reusable_after IS NOT NULL AND reusable_after < ?", cryptoType, now).
		Order("reusable_after ASC").
		First(address)
	if IsNotFoundError(dbResult) {
		return nil, nil
	}
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch reusable address: ", dbResult.GetErrors())
	}
	return address, nil
}

// NextDerivationIndex returns the next free derivation index of a currency.
// Must run inside a transaction; the caller relies on the
// (crypto_type, derivation_index) unique key to win at most one insert when
// two transactions race to the same index.
func NextDerivationIndex(tx *gorm.DB, cryptoType string) (uint32, error) {
	var result struct {
		MaxIndex *uint32
	}
	dbResult := forUpdate(tx).
		Table("crypto_addresses").
		Select("MAX(derivation_index) AS max_index").
		Where("crypto_type = ?", cryptoType).
		Scan(&result)
	if HasDBError(dbResult) {
		return 0, NewErrorFromDBErrors("failed to fetch max derivation index: ", dbResult.GetErrors())
	}
	if result.MaxIndex == nil {
		return 0, nil
	}
	return *result.MaxIndex + 1, nil
}

// InsertAddress persists a freshly derived address row.
func InsertAddress(db *gorm.DB, address *dbmodels.CryptoAddress) error {
	dbResult := db.Create(address)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to insert address: ", dbResult.GetErrors())
	}
	return nil
}

// AssignAddressToChannel attaches an existing (recycled) address row to a new
// channel and clears its cool-down marker.
func AssignAddressToChannel(db *gorm.DB, addressID, channelID uint64) error {
	dbResult := db.
		Model(&dbmodels.CryptoAddress{}).
		Where("id = ?", addressID).
		Updates(map[string]interface{}{
			"channel_id":     channelID,
			"reusable_after": nil,
		})
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to assign address to channel: ", dbResult.GetErrors())
	}
	return nil
}

// ReleaseAddressForChannel detaches an address from a terminal channel and
// starts its reuse cool-down. The row survives the channel deletion because
// it is detached before the channel row is removed.
func ReleaseAddressForChannel(db *gorm.DB, channelID uint64, reusableAfter time.Time) error {
	dbResult := db.
		Model(&dbmodels.CryptoAddress{}).
		Where("channel_id = ?", channelID).
		Updates(map[string]interface{}{
			"channel_id":     nil,
			"reusable_after": reusableAfter,
		})
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to release address: ", dbResult.GetErrors())
	}
	return nil
}

// AddressesForCompletedChannels locks and returns the deposit addresses of
// every completed channel on a currency, together with the owning channel
// row. Used by the consolidation executor; must run inside a transaction.
func AddressesForCompletedChannels(tx *gorm.DB, cryptoType string) ([]*dbmodels.CryptoAddress, error) {
	addresses := []*dbmodels.CryptoAddress{}
	dbResult := forUpdate(tx).
		Joins("INNER JOIN payment_channels ON payment_channels.id = crypto_addresses.channel_id").
		Where("crypto_addresses.crypto_type = ? AND payment_channels.status = ?",
			cryptoType, dbmodels.ChannelStatusCompleted).
		Find(&addresses)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch consolidation addresses: ", dbResult.GetErrors())
	}
	return addresses, nil
}
