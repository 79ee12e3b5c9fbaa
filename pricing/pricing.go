package pricing

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/hive"
	"github.com/dluxio/hiveonboard/logger"
	"github.com/dluxio/hiveonboard/util/panics"
)

var (
	log   = logger.Logger("PRCE")
	spawn = panics.GoroutineWrapperFunc(log)
)

const (
	// baseFeeHive is the delegation fee of one account creation.
	baseFeeHive = 3.0

	// margin covers operating costs on top of the raw creation fee.
	margin = 1.5

	// networkFeeSurchargeRate is the share of a network's transfer fee
	// added to that network's USD price.
	networkFeeSurchargeRate = 0.2

	// staleAfter triggers an opportunistic asynchronous refresh on read.
	staleAfter = 2 * time.Hour

	// retention is how long snapshots are kept before the purge removes
	// them.
	retention = 7 * 24 * time.Hour
)

// CryptoRate is the per-currency quote of one snapshot.
type CryptoRate struct {
	PriceUSD               float64 `json:"price_usd"`
	AmountNeeded           float64 `json:"amount_needed"`
	TransferFee            float64 `json:"transfer_fee"`
	TotalAmount            float64 `json:"total_amount"`
	NetworkFeeSurchargeUSD float64 `json:"network_fee_surcharge_usd"`
	FinalCostUSD           float64 `json:"final_cost_usd"`
}

// Snapshot is one computed quote table. A snapshot is always fully formed:
// when a price source fails, its fallback value is used and Fallback is set.
type Snapshot struct {
	HivePriceUSD  float64                `json:"hive_price_usd"`
	BaseCostUSD   float64                `json:"base_cost_usd"`
	FinalCostUSD  float64                `json:"final_cost_usd"`
	CryptoRates   map[string]*CryptoRate `json:"crypto_rates"`
	TransferCosts map[string]float64     `json:"transfer_costs"`
	Fallback      bool                   `json:"fallback"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Rate returns the quote of one currency.
func (s *Snapshot) Rate(currency chainparams.Currency) (*CryptoRate, error) {
	rate, ok := s.CryptoRates[string(currency)]
	if !ok {
		return nil, errors.Errorf("snapshot has no rate for %s", currency)
	}
	return rate, nil
}

// Oracle refreshes crypto and HIVE prices on a one-hour cadence and serves
// the latest snapshot. It never blocks callers on external APIs: reads get
// the cached snapshot, possibly stale, and staleness triggers a background
// refresh.
type Oracle struct {
	priceSource PriceSource
	hiveClient  *hive.Client

	mtx        sync.RWMutex
	cached     *Snapshot
	refreshing bool
}

// NewOracle builds a pricing oracle. priceSource may be nil, in which case
// the CoinGecko source is used.
func NewOracle(hiveClient *hive.Client, priceSource PriceSource) *Oracle {
	if priceSource == nil {
		priceSource = &coinGeckoSource{}
	}
	oracle := &Oracle{priceSource: priceSource, hiveClient: hiveClient}
	oracle.loadPersisted()
	return oracle
}

// loadPersisted warms the cache from the newest stored snapshot, so a
// restart does not lose pricing while the first refresh is in flight.
func (o *Oracle) loadPersisted() {
	db, err := database.DB()
	if err != nil {
		return
	}
	row, err := dbaccess.LatestPricingSnapshot(db)
	if err != nil || row == nil {
		return
	}

	snapshot := &Snapshot{
		HivePriceUSD: row.HivePriceUSD,
		BaseCostUSD:  row.BaseCostUSD,
		FinalCostUSD: row.FinalCostUSD,
		Fallback:     row.Fallback,
		CreatedAt:    row.CreatedAt,
	}
	err = json.Unmarshal([]byte(row.CryptoRates), &snapshot.CryptoRates)
	if err != nil {
		log.Warnf("Discarding persisted snapshot with malformed rates: %s", err)
		return
	}
	err = json.Unmarshal([]byte(row.TransferCosts), &snapshot.TransferCosts)
	if err != nil {
		log.Warnf("Discarding persisted snapshot with malformed transfer costs: %s", err)
		return
	}

	o.mtx.Lock()
	o.cached = snapshot
	o.mtx.Unlock()
	log.Infof("Loaded pricing snapshot from %s", row.CreatedAt)
}

// Latest returns the freshest snapshot available without blocking. A stale
// or missing snapshot triggers a background refresh; when no snapshot exists
// at all, a fully degraded one is computed synchronously from fallback
// prices.
func (o *Oracle) Latest() *Snapshot {
	o.mtx.RLock()
	cached := o.cached
	o.mtx.RUnlock()

	if cached == nil {
		snapshot := o.fallbackSnapshot()
		o.kickRefresh()
		return snapshot
	}
	if time.Since(cached.CreatedAt) > staleAfter {
		o.kickRefresh()
	}
	return cached
}

func (o *Oracle) kickRefresh() {
	o.mtx.Lock()
	alreadyRefreshing := o.refreshing
	o.refreshing = true
	o.mtx.Unlock()
	if alreadyRefreshing {
		return
	}

	spawn(func() {
		defer func() {
			o.mtx.Lock()
			o.refreshing = false
			o.mtx.Unlock()
		}()
		err := o.Refresh()
		if err != nil {
			log.Errorf("Background pricing refresh failed: %s", err)
		}
	})
}

// Refresh recomputes the snapshot from live sources and persists it. Every
// source failure degrades to a fallback value rather than failing the
// refresh; only a database error is returned.
func (o *Oracle) Refresh() error {
	snapshot := o.computeSnapshot()

	o.mtx.Lock()
	o.cached = snapshot
	o.mtx.Unlock()

	db, err := database.DB()
	if err != nil {
		return err
	}
	rates, err := json.Marshal(snapshot.CryptoRates)
	if err != nil {
		return errors.Wrap(err, "failed to marshal crypto rates")
	}
	transferCosts, err := json.Marshal(snapshot.TransferCosts)
	if err != nil {
		return errors.Wrap(err, "failed to marshal transfer costs")
	}

	err = dbaccess.InsertPricingSnapshot(db, &dbmodels.PricingSnapshot{
		HivePriceUSD:  snapshot.HivePriceUSD,
		BaseCostUSD:   snapshot.BaseCostUSD,
		FinalCostUSD:  snapshot.FinalCostUSD,
		CryptoRates:   string(rates),
		TransferCosts: string(transferCosts),
		Fallback:      snapshot.Fallback,
		CreatedAt:     snapshot.CreatedAt,
	})
	if err != nil {
		return err
	}

	log.Infof("Pricing refreshed: HIVE $%.4f, account $%.4f, fallback=%t",
		snapshot.HivePriceUSD, snapshot.BaseCostUSD, snapshot.Fallback)
	return nil
}

// computeSnapshot assembles a snapshot, degrading per component.
func (o *Oracle) computeSnapshot() *Snapshot {
	fallback := false

	prices, err := o.priceSource.Prices(chainparams.All())
	if err != nil {
		log.Warnf("Price source failed, using fallback prices: %s", err)
		prices = map[chainparams.Currency]float64{}
		fallback = true
	}

	hivePrice, ok := prices[currencyHive]
	if !ok || hivePrice <= 0 {
		hivePrice, err = o.hiveClient.MedianHistoryPrice()
		if err != nil || hivePrice <= 0 {
			log.Warnf("Hive median price unavailable, using static fallback")
			hivePrice = chainparams.HiveFallbackPriceUSD
		}
		fallback = true
	}

	baseCost := hivePrice * baseFeeHive * margin

	snapshot := &Snapshot{
		HivePriceUSD:  hivePrice,
		BaseCostUSD:   baseCost,
		FinalCostUSD:  baseCost,
		CryptoRates:   map[string]*CryptoRate{},
		TransferCosts: map[string]float64{},
		CreatedAt:     time.Now().UTC(),
	}

	for _, params := range chainparams.All() {
		price, ok := prices[params.Currency]
		if !ok || price <= 0 {
			price = params.FallbackPriceUSD
			fallback = true
		}

		transferFee := params.AvgTransferFee
		if params.Currency == chainparams.ETH {
			fee, feeErr := estimateEthereumTransferFee()
			if feeErr != nil {
				log.Debugf("Gas estimation failed, using static ETH fee: %s", feeErr)
				fallback = true
			} else {
				transferFee = fee
			}
		}

		networkFeeUSD := transferFee * price
		surchargeUSD := networkFeeSurchargeRate * networkFeeUSD
		finalCostUSD := baseCost + surchargeUSD
		amountNeeded := round8(finalCostUSD / price)

		snapshot.CryptoRates[string(params.Currency)] = &CryptoRate{
			PriceUSD:               price,
			AmountNeeded:           amountNeeded,
			TransferFee:            transferFee,
			TotalAmount:            round8(amountNeeded + transferFee),
			NetworkFeeSurchargeUSD: surchargeUSD,
			FinalCostUSD:           finalCostUSD,
		}
		snapshot.TransferCosts[string(params.Currency)] = networkFeeUSD
	}

	snapshot.Fallback = fallback
	return snapshot
}

// fallbackSnapshot builds a snapshot purely from static prices. Used only
// when no snapshot has ever been computed or persisted.
func (o *Oracle) fallbackSnapshot() *Snapshot {
	snapshot := &Snapshot{
		HivePriceUSD:  chainparams.HiveFallbackPriceUSD,
		CryptoRates:   map[string]*CryptoRate{},
		TransferCosts: map[string]float64{},
		Fallback:      true,
		CreatedAt:     time.Now().UTC(),
	}
	snapshot.BaseCostUSD = snapshot.HivePriceUSD * baseFeeHive * margin
	snapshot.FinalCostUSD = snapshot.BaseCostUSD

	for _, params := range chainparams.All() {
		networkFeeUSD := params.AvgTransferFee * params.FallbackPriceUSD
		surchargeUSD := networkFeeSurchargeRate * networkFeeUSD
		finalCostUSD := snapshot.BaseCostUSD + surchargeUSD
		amountNeeded := round8(finalCostUSD / params.FallbackPriceUSD)
		snapshot.CryptoRates[string(params.Currency)] = &CryptoRate{
			PriceUSD:               params.FallbackPriceUSD,
			AmountNeeded:           amountNeeded,
			TransferFee:            params.AvgTransferFee,
			TotalAmount:            round8(amountNeeded + params.AvgTransferFee),
			NetworkFeeSurchargeUSD: surchargeUSD,
			FinalCostUSD:           finalCostUSD,
		}
		snapshot.TransferCosts[string(params.Currency)] = networkFeeUSD
	}
	return snapshot
}

// Purge removes snapshots past retention.
func (o *Oracle) Purge() error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	removed, err := dbaccess.PurgePricingSnapshotsBefore(db, time.Now().Add(-retention))
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Infof("Purged %d pricing snapshots", removed)
	}
	return nil
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
