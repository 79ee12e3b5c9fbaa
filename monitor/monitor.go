package monitor

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/chainapi"
	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/config"
	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/logger"
	"github.com/dluxio/hiveonboard/metrics"
	"github.com/dluxio/hiveonboard/notifications"
	"github.com/dluxio/hiveonboard/util/panics"
)

var (
	log   = logger.Logger("MNTR")
	spawn = panics.GoroutineWrapperFunc(log)
)

// sweepInterval is the cadence of the global re-check that backs up the
// per-network pollers.
const sweepInterval = 30 * time.Second

// Monitor watches every enabled network for deposits and drives channels
// through their payment lifecycle. Each network gets its own poller on the
// network's block cadence; a failure on one network never stalls the others.
type Monitor struct {
	clients  map[chainparams.Currency]chainapi.Client
	notifier *notifications.Manager

	// onConfirmed wakes the account-creation worker when a channel reaches
	// confirmed.
	onConfirmed func()

	stop chan struct{}
}

// New builds a monitor with one chain API client per monitored currency.
func New(cfg *config.Config, notifier *notifications.Manager) (*Monitor, error) {
	clients := map[chainparams.Currency]chainapi.Client{}
	for _, params := range chainparams.Monitored() {
		client, err := chainapi.NewClient(params, cfg)
		if err != nil {
			return nil, err
		}
		clients[params.Currency] = client
	}
	return &Monitor{
		clients:  clients,
		notifier: notifier,
		stop:     make(chan struct{}),
	}, nil
}

// SetConfirmedHook registers the callback invoked whenever a channel reaches
// confirmed. Must be called before Start.
func (m *Monitor) SetConfirmedHook(hook func()) {
	m.onConfirmed = hook
}

// Start launches the per-network pollers and the global sweep.
func (m *Monitor) Start() {
	for _, params := range chainparams.Monitored() {
		m.startNetworkPoller(params)
	}
	spawn(func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stop:
				return
			}
		}
	})
	log.Infof("Payment monitor started for %d networks", len(m.clients))
}

// Stop halts every poller.
func (m *Monitor) Stop() {
	close(m.stop)
}

func (m *Monitor) startNetworkPoller(params *chainparams.Params) {
	interval := time.Duration(params.BlockTimeSeconds) * time.Second
	spawn(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := m.pollNetwork(params)
				if err != nil {
					metrics.PollerErrors.WithLabelValues(string(params.Currency)).Inc()
					log.Warnf("%s poll cycle failed: %s", params.Currency, err)
				}
			case <-m.stop:
				return
			}
		}
	})
}

// pollNetwork runs one cycle for a network: look for new deposits on pending
// channels, then re-check confirmation counts on confirming ones.
func (m *Monitor) pollNetwork(params *chainparams.Params) error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	channels, err := dbaccess.ChannelsByStatus(db,
		dbmodels.ChannelStatusPending, dbmodels.ChannelStatusConfirming)
	if err != nil {
		return err
	}

	client := m.clients[params.Currency]
	for _, channel := range channels {
		if channel.CryptoType != string(params.Currency) {
			continue
		}
		switch channel.Status {
		case dbmodels.ChannelStatusPending:
			err = m.scanPendingChannel(db, client, params, channel)
		case dbmodels.ChannelStatusConfirming:
			err = m.recheckConfirmingChannel(db, client, params, channel)
		}
		if err != nil {
			// One bad channel must not block the rest of the cycle.
			log.Warnf("Channel %s poll failed: %s", channel.ChannelID, err)
		}
	}
	return nil
}

// scanPendingChannel looks for an inbound transfer to the channel's deposit
// address and credits the first one that matches.
func (m *Monitor) scanPendingChannel(db *gorm.DB, client chainapi.Client,
	params *chainparams.Params, channel *dbmodels.PaymentChannel) error {

	if channel.IsExpired(time.Now()) {
		return nil
	}

	transactions, err := client.GetAddressTransactions(
		channel.DepositAddress, channel.CreatedAt.Add(-time.Minute))
	if err != nil {
		return err
	}
	for _, tx := range transactions {
		matchErr := m.verifyTransactionMatch(db, params, channel, tx)
		if matchErr != nil {
			log.Debugf("Transaction %s does not match channel %s: %s",
				tx.Hash, channel.ChannelID, matchErr)
			continue
		}
		return m.ProcessPaymentFound(db, params, channel, tx)
	}
	return nil
}

// recheckConfirmingChannel refreshes the confirmation count of a channel's
// credited transaction and promotes the channel once the threshold is met.
func (m *Monitor) recheckConfirmingChannel(db *gorm.DB, client chainapi.Client,
	params *chainparams.Params, channel *dbmodels.PaymentChannel) error {

	if channel.TxHash == nil {
		return errors.Errorf("confirming channel %s has no transaction hash", channel.ChannelID)
	}
	tx, err := client.GetTransaction(*channel.TxHash)
	if err != nil {
		return err
	}
	if tx == nil {
		// A reorg may drop the transaction; keep waiting, the deposit will
		// reappear or the channel will expire.
		log.Warnf("Transaction %s of channel %s vanished from %s",
			*channel.TxHash, channel.ChannelID, params.Currency)
		return nil
	}
	return m.ProcessPaymentFound(db, params, channel, tx)
}

// sweep is the 30-second backstop: it re-runs every network once so a missed
// poller tick cannot strand a channel, then refreshes the live-channel gauges.
func (m *Monitor) sweep() {
	for _, params := range chainparams.Monitored() {
		err := m.pollNetwork(params)
		if err != nil {
			log.Warnf("%s sweep failed: %s", params.Currency, err)
		}
	}
	m.updateLiveChannelGauges()
}

// updateLiveChannelGauges mirrors the current channel counts into the
// live-channel metrics, including zeroes for drained statuses.
func (m *Monitor) updateLiveChannelGauges() {
	db, err := database.DB()
	if err != nil {
		return
	}
	counts, err := dbaccess.CountChannelsByStatus(db)
	if err != nil {
		log.Warnf("Live channel count failed: %s", err)
		return
	}
	for _, status := range dbmodels.NonTerminalStatuses {
		metrics.LiveChannels.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
