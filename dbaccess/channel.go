package dbaccess

import (
	"time"

	"github.com/jinzhu/gorm"

	"github.com/dluxio/hiveonboard/dbmodels"
)

// ChannelByChannelID fetches a payment channel by its public 128-bit channel
// id. Returns (nil, nil) when no such channel exists.
func ChannelByChannelID(db *gorm.DB, channelID string) (*dbmodels.PaymentChannel, error) {
	channel := &dbmodels.PaymentChannel{}
	dbResult := db.Where(&dbmodels.PaymentChannel{ChannelID: channelID}).First(channel)
	if IsNotFoundError(dbResult) {
		return nil, nil
	}
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch channel: ", dbResult.GetErrors())
	}
	return channel, nil
}

// NonTerminalChannelByUsername returns the single live channel of a username,
// if any. The uniqueness of live channels per username is enforced at
// creation time.
func NonTerminalChannelByUsername(db *gorm.DB, username string) (*dbmodels.PaymentChannel, error) {
	channel := &dbmodels.PaymentChannel{}
	dbResult := db.
		Where("username = ? AND status IN (?)", username, dbmodels.NonTerminalStatuses).
		First(channel)
	if IsNotFoundError(dbResult) {
		return nil, nil
	}
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch channel by username: ", dbResult.GetErrors())
	}
	return channel, nil
}

// ChannelsByStatus returns every channel currently holding one of the given
// statuses.
func ChannelsByStatus(db *gorm.DB, statuses ...dbmodels.ChannelStatus) ([]*dbmodels.PaymentChannel, error) {
	channels := []*dbmodels.PaymentChannel{}
	dbResult := db.Where("status IN (?)", statuses).Find(&channels)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch channels by status: ", dbResult.GetErrors())
	}
	return channels, nil
}

// ChannelsByUsername returns every channel, live or terminal, ever opened for
// a username, newest first.
func ChannelsByUsername(db *gorm.DB, username string) ([]*dbmodels.PaymentChannel, error) {
	channels := []*dbmodels.PaymentChannel{}
	dbResult := db.
		Where(&dbmodels.PaymentChannel{Username: username}).
		Order("created_at DESC").
		Find(&channels)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch channels by username: ", dbResult.GetErrors())
	}
	return channels, nil
}

// AllChannels returns channels paginated by skip/limit, newest first.
func AllChannels(db *gorm.DB, skip, limit uint64) ([]*dbmodels.PaymentChannel, error) {
	channels := []*dbmodels.PaymentChannel{}
	dbResult := db.
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&channels)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch channels: ", dbResult.GetErrors())
	}
	return channels, nil
}

// CountChannelsByStatus returns how many channels currently hold each
// non-terminal status. Statuses with no channels are absent from the map.
func CountChannelsByStatus(db *gorm.DB) (map[dbmodels.ChannelStatus]int64, error) {
	rows := []struct {
		Status dbmodels.ChannelStatus
		Total  int64
	}{}
	dbResult := db.
		Model(&dbmodels.PaymentChannel{}).
		Select("status, COUNT(*) AS total").
		Where("status IN (?)", dbmodels.NonTerminalStatuses).
		Group("status").
		Scan(&rows)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to count channels by status: ", dbResult.GetErrors())
	}
	counts := map[dbmodels.ChannelStatus]int64{}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// ExpiredPendingChannels returns every pending channel past its deadline.
func ExpiredPendingChannels(db *gorm.DB, now time.Time) ([]*dbmodels.PaymentChannel, error) {
	channels := []*dbmodels.PaymentChannel{}
	dbResult := db.
		Where("status = ? AND expires_at <= ?", dbmodels.ChannelStatusPending, now).
		Find(&channels)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch expired channels: ", dbResult.GetErrors())
	}
	return channels, nil
}

// InsertChannel persists a new channel row.
func InsertChannel(db *gorm.DB, channel *dbmodels.PaymentChannel) error {
	dbResult := db.Create(channel)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to insert channel: ", dbResult.GetErrors())
	}
	return nil
}

// AdvanceChannelStatus conditionally transitions a channel from one of the
// given prior statuses to the target status, applying extraUpdates in the
// same statement. It returns false when the channel was not in any of the
// prior statuses, which keeps transitions monotonic under concurrent writers.
func AdvanceChannelStatus(db *gorm.DB, channelID uint64, from []dbmodels.ChannelStatus,
	to dbmodels.ChannelStatus, extraUpdates map[string]interface{}) (bool, error) {

	updates := map[string]interface{}{"status": to}
	for column, value := range extraUpdates {
		updates[column] = value
	}

	dbResult := db.
		Model(&dbmodels.PaymentChannel{}).
		Where("id = ? AND status IN (?)", channelID, from).
		Updates(updates)
	if HasDBError(dbResult) {
		return false, NewErrorFromDBErrors("failed to advance channel status: ", dbResult.GetErrors())
	}
	return dbResult.RowsAffected > 0, nil
}

// UpdateChannelConfirmations refreshes the confirmation counter of a live
// channel without touching its status.
func UpdateChannelConfirmations(db *gorm.DB, channelID uint64, confirmations int64) error {
	dbResult := db.
		Model(&dbmodels.PaymentChannel{}).
		Where("id = ?", channelID).
		Update("confirmations", confirmations)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to update channel confirmations: ", dbResult.GetErrors())
	}
	return nil
}

// DeleteChannel removes a channel row. Confirmations, creation attempts, and
// the address row are removed by the database's cascading foreign keys.
func DeleteChannel(db *gorm.DB, channel *dbmodels.PaymentChannel) error {
	dbResult := db.Delete(channel)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to delete channel: ", dbResult.GetErrors())
	}
	return nil
}
