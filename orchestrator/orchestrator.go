package orchestrator

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/config"
	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/hive"
	"github.com/dluxio/hiveonboard/logger"
	"github.com/dluxio/hiveonboard/metrics"
	"github.com/dluxio/hiveonboard/notifications"
	"github.com/dluxio/hiveonboard/rccost"
	"github.com/dluxio/hiveonboard/util/panics"
)

var (
	log   = logger.Logger("ORCH")
	spawn = panics.GoroutineWrapperFunc(log)
)

const (
	// actTarget is the ACT inventory the proactive claim loop refills to.
	actTarget = 8

	// maxClaimsPerRun caps a single claim run.
	maxClaimsPerRun = 5

	// claimSpacing separates consecutive claim broadcasts so RC regeneration
	// and node rate limits are respected.
	claimSpacing = 5 * time.Second

	// rcReserveMultiplier is how many claim costs worth of RC are always
	// left unspent, keeping the creator account operational.
	rcReserveMultiplier = 2

	// maxCreationAttempts is how often a channel's account creation is
	// retried before the channel fails.
	maxCreationAttempts = 3

	// delegationFeeHive is the fee of a full account_create, used when no
	// ACT is available and none can be claimed.
	delegationFeeHive = 3.0

	// backstopInterval re-runs the creation pass even when no wake-up
	// arrived, covering missed signals and transient broadcast failures.
	backstopInterval = 30 * time.Second

	// reconcileInterval is the cadence of the external-creation check.
	reconcileInterval = 30 * time.Second
)

// Orchestrator turns confirmed payment channels into Hive accounts. It keeps
// an inventory of account creation tokens topped up from the creator's spare
// RC and falls back to fee-paid creation when the inventory runs dry.
type Orchestrator struct {
	cfg        *config.Config
	hiveClient *hive.Client
	rcTracker  *rccost.Tracker
	notifier   *notifications.Manager
	creatorKey *btcec.PrivateKey

	wake chan struct{}
	stop chan struct{}
}

// New builds an orchestrator. The creator account's active WIF is decoded
// once at startup so a malformed key fails fast.
func New(cfg *config.Config, hiveClient *hive.Client, rcTracker *rccost.Tracker,
	notifier *notifications.Manager) (*Orchestrator, error) {

	creatorKey, err := hive.DecodeWIF(cfg.HiveCreatorWIF)
	if err != nil {
		return nil, errors.Wrap(err, "invalid creator WIF")
	}
	return &Orchestrator{
		cfg:        cfg,
		hiveClient: hiveClient,
		rcTracker:  rcTracker,
		notifier:   notifier,
		creatorKey: creatorKey,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}, nil
}

// Wake nudges the creation worker. Non-blocking; coalesces with a pending
// wake-up.
func (o *Orchestrator) Wake() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Start launches the creation worker and the reconciliation loop. The
// proactive claim loop runs from the process-wide scheduler.
func (o *Orchestrator) Start() {
	spawn(func() {
		ticker := time.NewTicker(backstopInterval)
		defer ticker.Stop()
		for {
			select {
			case <-o.wake:
			case <-ticker.C:
			case <-o.stop:
				return
			}
			err := o.ProcessPending()
			if err != nil {
				log.Errorf("Creation pass failed: %s", err)
			}
		}
	})

	spawn(func() {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := o.Reconcile()
				if err != nil {
					log.Errorf("Reconciliation failed: %s", err)
				}
			case <-o.stop:
				return
			}
		}
	})
	log.Infof("Account orchestrator started for creator @%s", o.cfg.HiveCreatorAccount)
}

// Stop halts the workers.
func (o *Orchestrator) Stop() {
	close(o.stop)
}

// Inventory is the creator account's current creation capacity.
type Inventory struct {
	ACTBalance      int
	ResourceCredits int64
	LastClaimTime   *time.Time
	LastRCCheck     *time.Time
}

// SyncInventory reads the creator's ACT count and RC mana from the chain and
// mirrors them into the database.
func (o *Orchestrator) SyncInventory() (*Inventory, error) {
	account, err := o.hiveClient.GetAccount(o.cfg.HiveCreatorAccount)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.Errorf("creator account @%s does not exist", o.cfg.HiveCreatorAccount)
	}
	resourceCredits, err := o.hiveClient.ResourceCredits(o.cfg.HiveCreatorAccount)
	if err != nil {
		return nil, err
	}

	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = dbaccess.ACTBalanceForCreator(db, o.cfg.HiveCreatorAccount)
	if err != nil {
		return nil, err
	}
	err = dbaccess.UpdateACTBalance(db, o.cfg.HiveCreatorAccount,
		account.PendingClaimedAccounts, resourceCredits, now)
	if err != nil {
		return nil, err
	}

	metrics.ACTBalance.Set(float64(account.PendingClaimedAccounts))
	metrics.ResourceCredits.Set(float64(resourceCredits))

	row, err := dbaccess.ACTBalanceForCreator(db, o.cfg.HiveCreatorAccount)
	if err != nil {
		return nil, err
	}
	return &Inventory{
		ACTBalance:      account.PendingClaimedAccounts,
		ResourceCredits: resourceCredits,
		LastClaimTime:   row.LastClaimTime,
		LastRCCheck:     row.LastRCCheck,
	}, nil
}

// ProactiveClaim tops the ACT inventory up toward the target, spending only
// RC above the reserve. Returns how many tokens were claimed.
func (o *Orchestrator) ProactiveClaim() (int, error) {
	inventory, err := o.SyncInventory()
	if err != nil {
		return 0, err
	}
	if inventory.ACTBalance >= actTarget {
		return 0, nil
	}

	claimCost := o.rcTracker.ClaimAccountCost()
	reserve := claimCost * rcReserveMultiplier

	budget := (inventory.ResourceCredits - reserve) / claimCost
	if budget <= 0 {
		log.Debugf("No RC budget for claims: %d RC, %d reserve", inventory.ResourceCredits, reserve)
		return 0, nil
	}

	wanted := int64(actTarget - inventory.ACTBalance)
	if budget > wanted {
		budget = wanted
	}
	if budget > maxClaimsPerRun {
		budget = maxClaimsPerRun
	}

	claimed := 0
	for i := int64(0); i < budget; i++ {
		if i > 0 {
			time.Sleep(claimSpacing)

			// RC regenerates slowly; re-check so a run never dips into
			// the reserve.
			currentRC, err := o.hiveClient.ResourceCredits(o.cfg.HiveCreatorAccount)
			if err != nil {
				return claimed, err
			}
			if currentRC < reserve+claimCost {
				log.Infof("Stopping claim run early: %d RC left", currentRC)
				break
			}
		}

		err := o.claimAccountToken()
		if err != nil {
			return claimed, err
		}
		claimed++
	}

	if claimed > 0 {
		err = o.recordClaim()
		if err != nil {
			return claimed, err
		}
		log.Infof("Claimed %d account creation tokens", claimed)
	}
	return claimed, nil
}

func (o *Orchestrator) claimAccountToken() error {
	_, err := o.broadcast(&hive.ClaimAccountOperation{
		Creator: o.cfg.HiveCreatorAccount,
		Fee:     hive.HiveAsset(0),
	})
	return err
}

func (o *Orchestrator) recordClaim() error {
	account, err := o.hiveClient.GetAccount(o.cfg.HiveCreatorAccount)
	if err != nil {
		return err
	}
	resourceCredits, err := o.hiveClient.ResourceCredits(o.cfg.HiveCreatorAccount)
	if err != nil {
		return err
	}
	db, err := database.DB()
	if err != nil {
		return err
	}
	return dbaccess.RecordACTClaim(db, o.cfg.HiveCreatorAccount,
		account.PendingClaimedAccounts, resourceCredits, time.Now().UTC())
}

// broadcast anchors, signs, and submits a single-operation transaction.
func (o *Orchestrator) broadcast(operation hive.Operation) (*hive.BroadcastResult, error) {
	properties, err := o.hiveClient.DynamicGlobalProperties()
	if err != nil {
		return nil, err
	}
	tx, err := hive.NewTransaction(properties.HeadBlockNumber, properties.HeadBlockID, operation)
	if err != nil {
		return nil, err
	}
	err = tx.Sign(o.creatorKey)
	if err != nil {
		return nil, err
	}
	return o.hiveClient.Broadcast(tx)
}
