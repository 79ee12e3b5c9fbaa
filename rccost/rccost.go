package rccost

import (
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/logger"
)

var log = logger.Logger("RCCO")

const (
	// OpClaimAccount is the beacon's tag for the claim_account operation.
	OpClaimAccount = "claim_account_operation"

	// ClaimAccountFloor is the assumed RC cost of one account claim when the
	// beacon has never been reached. Slightly above recent observed costs so
	// the claim budget errs toward claiming less.
	ClaimAccountFloor = int64(13_700_000_000_000)

	// retention is how long beacon observations are kept.
	retention = 30 * 24 * time.Hour

	requestTimeout = 10 * time.Second
)

// Cost is one operation's current resource-credit price.
type Cost struct {
	OperationType string
	RCNeeded      int64
	HPNeeded      float64
	APITimestamp  time.Time
}

// Tracker polls the PeakD RC beacon on a three-hour cadence and caches the
// newest cost per operation.
type Tracker struct {
	beaconURL string

	mtx    sync.RWMutex
	latest map[string]*Cost
}

// NewTracker builds a tracker and warms its cache from the database.
func NewTracker(beaconURL string) *Tracker {
	tracker := &Tracker{beaconURL: beaconURL, latest: map[string]*Cost{}}
	tracker.loadPersisted()
	return tracker
}

func (t *Tracker) loadPersisted() {
	db, err := database.DB()
	if err != nil {
		return
	}
	rows, err := dbaccess.LatestRCCosts(db)
	if err != nil {
		log.Warnf("Failed to load persisted RC costs: %s", err)
		return
	}

	t.mtx.Lock()
	defer t.mtx.Unlock()
	for _, row := range rows {
		t.latest[row.OperationType] = &Cost{
			OperationType: row.OperationType,
			RCNeeded:      row.RCNeeded,
			HPNeeded:      row.HPNeeded,
			APITimestamp:  row.APITimestamp,
		}
	}
	if len(rows) > 0 {
		log.Infof("Loaded RC costs for %d operations", len(rows))
	}
}

// Refresh fetches the beacon and persists every reported operation cost.
func (t *Tracker) Refresh() error {
	result, err := t.fetchBeacon()
	if err != nil {
		return err
	}

	apiTimestamp := time.Unix(result.Get("timestamp").Int(), 0).UTC()
	if apiTimestamp.IsZero() || apiTimestamp.Unix() == 0 {
		// Some beacon versions report ISO timestamps.
		parsed, parseErr := time.Parse(time.RFC3339, result.Get("timestamp").String())
		if parseErr != nil {
			return errors.Errorf("beacon payload carries no usable timestamp")
		}
		apiTimestamp = parsed.UTC()
	}

	db, err := database.DB()
	if err != nil {
		return err
	}

	updated := 0
	for _, entry := range result.Get("costs").Array() {
		operationType := entry.Get("operation").String()
		if operationType == "" {
			continue
		}
		cost := &Cost{
			OperationType: operationType,
			RCNeeded:      entry.Get("rc_needed").Int(),
			HPNeeded:      entry.Get("hp_needed").Float(),
			APITimestamp:  apiTimestamp,
		}

		err = dbaccess.InsertRCCost(db, &dbmodels.RCCost{
			OperationType: cost.OperationType,
			APITimestamp:  cost.APITimestamp,
			RCNeeded:      cost.RCNeeded,
			HPNeeded:      cost.HPNeeded,
			CreatedAt:     time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		t.mtx.Lock()
		t.latest[cost.OperationType] = cost
		t.mtx.Unlock()
		updated++
	}

	log.Debugf("RC beacon refresh stored %d operation costs", updated)
	return nil
}

func (t *Tracker) fetchBeacon() (gjson.Result, error) {
	client := &http.Client{Timeout: requestTimeout}
	response, err := client.Get(t.beaconURL)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "RC beacon unavailable")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return gjson.Result{}, errors.Errorf("RC beacon returned status %d", response.StatusCode)
	}
	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "failed to read RC beacon response")
	}
	return gjson.ParseBytes(body), nil
}

// Cost returns the cached cost of an operation, or nil when the beacon has
// never reported it.
func (t *Tracker) Cost(operationType string) *Cost {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.latest[operationType]
}

// ClaimAccountCost returns the RC cost of one claim_account operation,
// falling back to a conservative floor when the beacon is unavailable.
func (t *Tracker) ClaimAccountCost() int64 {
	cost := t.Cost(OpClaimAccount)
	if cost == nil || cost.RCNeeded <= 0 {
		return ClaimAccountFloor
	}
	return cost.RCNeeded
}

// AllCosts returns a copy of the cached per-operation costs.
func (t *Tracker) AllCosts() []*Cost {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	costs := make([]*Cost, 0, len(t.latest))
	for _, cost := range t.latest {
		costs = append(costs, cost)
	}
	return costs
}

// Purge removes beacon observations past retention.
func (t *Tracker) Purge() error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	removed, err := dbaccess.PurgeRCCostsBefore(db, time.Now().Add(-retention))
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Infof("Purged %d RC cost rows", removed)
	}
	return nil
}
