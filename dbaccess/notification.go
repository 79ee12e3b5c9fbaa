package dbaccess

import (
	"github.com/jinzhu/gorm"

	"github.com/dluxio/hiveonboard/dbmodels"
)

// InsertNotification persists a per-user notification record.
func InsertNotification(db *gorm.DB, notification *dbmodels.Notification) error {
	dbResult := db.Create(notification)
	if HasDBError(dbResult) {
		return NewErrorFromDBErrors("failed to insert notification: ", dbResult.GetErrors())
	}
	return nil
}

// NotificationsForUsername returns a user's notifications, newest first.
func NotificationsForUsername(db *gorm.DB, username string, limit uint64) ([]*dbmodels.Notification, error) {
	notifications := []*dbmodels.Notification{}
	dbResult := db.
		Where(&dbmodels.Notification{Username: username}).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications)
	if HasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("failed to fetch notifications: ", dbResult.GetErrors())
	}
	return notifications, nil
}
