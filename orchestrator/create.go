package orchestrator

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/hive"
	"github.com/dluxio/hiveonboard/metrics"
	"github.com/dluxio/hiveonboard/notifications"
)

// ProcessPending creates an account for every confirmed channel.
func (o *Orchestrator) ProcessPending() error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	channels, err := dbaccess.ChannelsByStatus(db, dbmodels.ChannelStatusConfirmed)
	if err != nil {
		return err
	}
	for _, channel := range channels {
		err = o.createAccount(db, channel)
		if err != nil {
			// One failing channel must not starve the rest.
			log.Errorf("Account creation for channel %s failed: %s", channel.ChannelID, err)
		}
	}
	return nil
}

// CreateForChannel creates the account of a single confirmed channel. Used by
// the admin manual-creation endpoint.
func (o *Orchestrator) CreateForChannel(channelID string) error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	channel, err := dbaccess.ChannelByChannelID(db, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return errors.Errorf("payment channel %s not found", channelID)
	}
	if channel.Status != dbmodels.ChannelStatusConfirmed {
		return errors.Errorf("channel %s is %s, not confirmed", channelID, channel.Status)
	}
	return o.createAccount(db, channel)
}

// createAccount runs one creation attempt for a confirmed channel: ACT-first,
// an opportunistic claim when the inventory is empty but RC allows, and a
// fee-paid account_create as the last resort.
func (o *Orchestrator) createAccount(db *gorm.DB, channel *dbmodels.PaymentChannel) error {
	attempts, err := dbaccess.CountCreationAttempts(db, channel.ID)
	if err != nil {
		return err
	}
	if attempts >= maxCreationAttempts {
		return o.failChannel(db, channel, "creation attempts exhausted")
	}

	inventory, err := o.SyncInventory()
	if err != nil {
		return err
	}

	useACT := inventory.ACTBalance > 0
	if !useACT {
		// An empty inventory with spare RC is worth one claim right now
		// rather than waiting for the scheduled run.
		claimCost := o.rcTracker.ClaimAccountCost()
		if inventory.ResourceCredits >= claimCost*(rcReserveMultiplier+1) {
			err = o.claimAccountToken()
			if err == nil {
				useACT = true
				err = o.recordClaim()
				if err != nil {
					return err
				}
			} else {
				log.Warnf("Opportunistic claim failed, falling back to paid creation: %s", err)
			}
		}
	}

	method := dbmodels.CreationMethodACT
	creationFee := 0.0
	if !useACT {
		method = dbmodels.CreationMethodDelegation
		creationFee = delegationFeeHive
	}

	now := time.Now().UTC()
	attempt := &dbmodels.HiveAccountCreation{
		ChannelID:    channel.ID,
		Method:       method,
		ACTUsed:      useACT,
		CreationFee:  creationFee,
		AttemptCount: attempts + 1,
		Status:       dbmodels.CreationStatusAttempting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = dbaccess.InsertCreationAttempt(db, attempt)
	if err != nil {
		return err
	}

	result, broadcastErr := o.broadcastCreation(channel, useACT)
	if broadcastErr != nil {
		message := broadcastErr.Error()
		err = dbaccess.FailCreationAttempt(db, attempt.ID, message)
		if err != nil {
			return err
		}
		metrics.CreationFailures.Inc()
		if attempts+1 >= maxCreationAttempts {
			return o.failChannel(db, channel, message)
		}
		return broadcastErr
	}

	err = dbaccess.CompleteCreationAttempt(db, attempt.ID, result.TxID)
	if err != nil {
		return err
	}
	return o.completeChannel(db, channel, result.TxID, now, string(method))
}

func (o *Orchestrator) broadcastCreation(channel *dbmodels.PaymentChannel, useACT bool) (
	*hive.BroadcastResult, error) {

	owner := hive.SingleKeyAuthority(channel.OwnerKey)
	active := hive.SingleKeyAuthority(channel.ActiveKey)
	posting := hive.SingleKeyAuthority(channel.PostingKey)

	if useACT {
		return o.broadcast(&hive.CreateClaimedAccountOperation{
			Creator:        o.cfg.HiveCreatorAccount,
			NewAccountName: channel.Username,
			Owner:          owner,
			Active:         active,
			Posting:        posting,
			MemoKey:        channel.MemoKey,
			JSONMetadata:   "{}",
		})
	}
	return o.broadcast(&hive.AccountCreateOperation{
		Fee:            hive.HiveAsset(delegationFeeHive),
		Creator:        o.cfg.HiveCreatorAccount,
		NewAccountName: channel.Username,
		Owner:          owner,
		Active:         active,
		Posting:        posting,
		MemoKey:        channel.MemoKey,
		JSONMetadata:   "{}",
	})
}

func (o *Orchestrator) completeChannel(db *gorm.DB, channel *dbmodels.PaymentChannel,
	hiveTxID string, createdAt time.Time, method string) error {

	advanced, err := dbaccess.AdvanceChannelStatus(db, channel.ID,
		[]dbmodels.ChannelStatus{dbmodels.ChannelStatusConfirmed},
		dbmodels.ChannelStatusCompleted,
		map[string]interface{}{
			"hive_tx_id":         hiveTxID,
			"account_created_at": createdAt,
		})
	if err != nil {
		return err
	}
	if !advanced {
		return nil
	}

	metrics.AccountsCreated.WithLabelValues(method).Inc()
	log.Infof("Created account @%s for channel %s (tx %s)",
		channel.Username, channel.ChannelID, hiveTxID)

	o.notifier.StatusChange(channel.ChannelID, dbmodels.ChannelStatusCompleted, channel.TxHash)
	return o.notifier.Notify(channel.Username, notifications.TypeAccountCreated,
		"Account created",
		"Your Hive account @"+channel.Username+" is ready.",
		map[string]interface{}{"channel_id": channel.ChannelID, "hive_tx_id": hiveTxID},
		notifications.PriorityHigh, 0)
}

func (o *Orchestrator) failChannel(db *gorm.DB, channel *dbmodels.PaymentChannel,
	reason string) error {

	advanced, err := dbaccess.AdvanceChannelStatus(db, channel.ID,
		[]dbmodels.ChannelStatus{dbmodels.ChannelStatusConfirmed},
		dbmodels.ChannelStatusFailed, nil)
	if err != nil {
		return err
	}
	if !advanced {
		return nil
	}

	log.Errorf("Channel %s failed permanently: %s", channel.ChannelID, reason)
	o.notifier.StatusChange(channel.ChannelID, dbmodels.ChannelStatusFailed, channel.TxHash)
	return o.notifier.Notify(channel.Username, notifications.TypePaymentFailed,
		"Account creation failed",
		"We could not create your account. Please contact support; your payment is recorded.",
		map[string]interface{}{"channel_id": channel.ChannelID, "reason": reason},
		notifications.PriorityHigh, 0)
}

// Reconcile marks live channels whose username meanwhile appeared on chain as
// completed, without broadcasting anything. This covers accounts created
// externally, or a broadcast whose success the service missed, at any point in
// the channel's lifecycle.
func (o *Orchestrator) Reconcile() error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	return o.reconcileChannels(db)
}

func (o *Orchestrator) reconcileChannels(db *gorm.DB) error {
	channels, err := dbaccess.ChannelsByStatus(db, dbmodels.NonTerminalStatuses...)
	if err != nil {
		return err
	}

	for _, channel := range channels {
		account, err := o.hiveClient.GetAccount(channel.Username)
		if err != nil {
			// One flaky lookup must not starve the remaining channels.
			log.Warnf("Reconciliation lookup for @%s failed: %s", channel.Username, err)
			continue
		}
		if account == nil {
			continue
		}

		advanced, err := dbaccess.AdvanceChannelStatus(db, channel.ID,
			dbmodels.NonTerminalStatuses,
			dbmodels.ChannelStatusCompleted,
			map[string]interface{}{"account_created_at": account.Created})
		if err != nil {
			log.Errorf("Reconciling channel %s failed: %s", channel.ChannelID, err)
			continue
		}
		if !advanced {
			continue
		}

		metrics.AccountsCreated.WithLabelValues("external").Inc()
		log.Infof("Channel %s reconciled: @%s already exists on chain (created %s)",
			channel.ChannelID, channel.Username, account.Created)
		o.notifier.StatusChange(channel.ChannelID, dbmodels.ChannelStatusCompleted, channel.TxHash)
	}
	return nil
}

// Health states of the creation capacity.
const (
	HealthHealthy        = "HEALTHY"
	HealthNeedsAttention = "NEEDS_ATTENTION"
	HealthCritical       = "CRITICAL"
)

// Health is the daily capacity report.
type Health struct {
	State           string
	ACTBalance      int
	ResourceCredits int64
	ClaimsRemaining int64
	DaysSustainable float64
}

// HealthCheck reports how many more accounts the creator can afford and
// claims aggressively when capacity is getting low.
func (o *Orchestrator) HealthCheck() (*Health, error) {
	inventory, err := o.SyncInventory()
	if err != nil {
		return nil, err
	}

	claimCost := o.rcTracker.ClaimAccountCost()
	claimsRemaining := inventory.ResourceCredits / claimCost

	health := &Health{
		ACTBalance:      inventory.ACTBalance,
		ResourceCredits: inventory.ResourceCredits,
		ClaimsRemaining: claimsRemaining,
		DaysSustainable: float64(claimsRemaining) / float64(maxClaimsPerRun),
	}
	switch {
	case claimsRemaining >= 10:
		health.State = HealthHealthy
	case claimsRemaining >= 3:
		health.State = HealthNeedsAttention
	default:
		health.State = HealthCritical
	}

	switch health.State {
	case HealthNeedsAttention:
		log.Warnf("Creation capacity needs attention: %d claims remaining", claimsRemaining)
		_, err = o.ProactiveClaim()
		if err != nil {
			log.Errorf("Aggressive claim run failed: %s", err)
		}
	case HealthCritical:
		log.Errorf("Creation capacity critical: %d claims remaining, %d ACT in inventory",
			claimsRemaining, inventory.ACTBalance)
	}
	return health, nil
}
