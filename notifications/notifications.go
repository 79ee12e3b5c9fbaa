package notifications

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/logger"
)

var log = logger.Logger("NTFY")

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification types.
const (
	TypePaymentDetected  = "payment_detected"
	TypePaymentConfirmed = "payment_confirmed"
	TypeAccountCreated   = "account_created"
	TypeChannelExpired   = "channel_expired"
	TypePaymentFailed    = "payment_failed"
)

// Manager persists notifications and fans status changes out to websocket
// subscribers. The database row is authoritative; websocket delivery is
// best-effort.
type Manager struct {
	hub *Hub
}

// NewManager builds a notification manager around a websocket hub.
func NewManager(hub *Hub) *Manager {
	return &Manager{hub: hub}
}

// Notify persists one notification. data is serialized to JSON when non-nil;
// ttl of zero means the notification never expires.
func (m *Manager) Notify(username, notificationType, title, message string,
	data map[string]interface{}, priority string, ttl time.Duration) error {

	db, err := database.DB()
	if err != nil {
		return err
	}

	row := &dbmodels.Notification{
		Username:  username,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	if data != nil {
		serialized, err := json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "failed to serialize notification data")
		}
		dataString := string(serialized)
		row.Data = &dataString
	}
	if ttl > 0 {
		expiresAt := row.CreatedAt.Add(ttl)
		row.ExpiresAt = &expiresAt
	}

	err = dbaccess.InsertNotification(db, row)
	if err != nil {
		return err
	}
	log.Debugf("Notified @%s: %s", username, notificationType)
	return nil
}

// StatusChange pushes a channel status transition to every websocket
// subscriber of the channel.
func (m *Manager) StatusChange(channelID string, status dbmodels.ChannelStatus, txHash *string) {
	if m.hub == nil {
		return
	}
	m.hub.Broadcast(channelID, &StatusEvent{
		ChannelID: channelID,
		Status:    string(status),
		TxHash:    txHash,
		Timestamp: time.Now().UTC(),
	})
}

// ForUsername returns a user's stored notifications, newest first.
func (m *Manager) ForUsername(username string, limit uint64) ([]*dbmodels.Notification, error) {
	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	return dbaccess.NotificationsForUsername(db, username, limit)
}
