package consolidation

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/config"
	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/logger"
	"github.com/dluxio/hiveonboard/vault"
)

var log = logger.Logger("CNSL")

// Priority levels of a sweep, each scaling the network fee rate.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// priorityMultiplier maps a priority to its fee-rate scale.
func priorityMultiplier(priority string) (float64, error) {
	switch priority {
	case PriorityLow:
		return 0.5, nil
	case PriorityMedium:
		return 1.0, nil
	case PriorityHigh:
		return 2.0, nil
	}
	return 0, errors.Errorf("unknown priority %q", priority)
}

// inputsPerFeeUnit scales the fee estimate with the number of swept inputs.
const inputsPerFeeUnit = 10

// Source is one deposit address to be swept, with the amount its completed
// channel received.
type Source struct {
	Address         *dbmodels.CryptoAddress
	Amount          float64
	OwningChannelID uint64
}

// Plan is an estimated, not yet executed, sweep of one currency.
type Plan struct {
	TxID               string    `json:"tx_id"`
	Currency           string    `json:"currency"`
	DestinationAddress string    `json:"destination_address"`
	Priority           string    `json:"priority"`
	SourceCount        int       `json:"source_count"`
	TotalAmount        float64   `json:"total_amount"`
	EstimatedFee       float64   `json:"estimated_fee"`
	NetAmount          float64   `json:"net_amount"`
	CreatedAt          time.Time `json:"created_at"`
}

// Result is an executed sweep: the canonical transaction hash plus any
// additional per-address hashes on account-model chains.
type Result struct {
	Plan               *Plan    `json:"plan"`
	TxHash             string   `json:"tx_hash"`
	AdditionalTxHashes []string `json:"additional_tx_hashes,omitempty"`
}

// Manager sweeps the deposits of completed channels into a treasury address.
// Sweeping is admin-triggered; nothing here runs on a schedule.
type Manager struct {
	cfg   *config.Config
	vault *vault.Vault
}

// NewManager builds a consolidation manager.
func NewManager(cfg *config.Config, keyVault *vault.Vault) *Manager {
	return &Manager{cfg: cfg, vault: keyVault}
}

// CurrencyInfo summarizes the sweepable funds of one currency.
type CurrencyInfo struct {
	Currency     string  `json:"currency"`
	SourceCount  int     `json:"source_count"`
	TotalAmount  float64 `json:"total_amount"`
	EstimatedFee float64 `json:"estimated_fee_medium"`
}

// Info reports, per monitored currency, how much is waiting to be swept.
func (m *Manager) Info() ([]*CurrencyInfo, error) {
	db, err := database.DB()
	if err != nil {
		return nil, err
	}

	infos := []*CurrencyInfo{}
	for _, params := range chainparams.Monitored() {
		var sources []*Source
		err = dbaccess.WithTransaction(db, func(tx *gorm.DB) error {
			var sourcesErr error
			sources, sourcesErr = m.collectSources(tx, params)
			return sourcesErr
		})
		if err != nil {
			return nil, err
		}

		info := &CurrencyInfo{Currency: string(params.Currency), SourceCount: len(sources)}
		for _, source := range sources {
			info.TotalAmount += source.Amount
		}
		info.EstimatedFee = estimateFee(params, len(sources), 1.0)
		infos = append(infos, info)
	}
	return infos, nil
}

// collectSources locks and returns the completed-channel addresses of a
// currency together with the amounts their channels received.
func (m *Manager) collectSources(tx *gorm.DB, params *chainparams.Params) ([]*Source, error) {
	addresses, err := dbaccess.AddressesForCompletedChannels(tx, string(params.Currency))
	if err != nil {
		return nil, err
	}

	sources := []*Source{}
	for _, address := range addresses {
		if address.ChannelID == nil {
			continue
		}
		confirmations, err := dbaccess.ConfirmationsForChannel(tx, *address.ChannelID)
		if err != nil {
			return nil, err
		}
		amount := 0.0
		for _, confirmation := range confirmations {
			amount += confirmation.AmountReceived
		}
		if amount <= 0 {
			continue
		}
		sources = append(sources, &Source{
			Address:         address,
			Amount:          amount,
			OwningChannelID: *address.ChannelID,
		})
	}
	return sources, nil
}

// estimateFee scales the network's base transfer fee with the input count and
// the priority multiplier.
func estimateFee(params *chainparams.Params, sourceCount int, multiplier float64) float64 {
	inputScale := 1.0 + float64(sourceCount)/inputsPerFeeUnit
	return params.AvgTransferFee * inputScale * multiplier
}

// Prepare computes a sweep plan without moving anything. A plan whose fee
// would eat the whole balance is refused.
func (m *Manager) Prepare(currency, destination, priority string) (*Plan, error) {
	params, err := chainparams.Parse(currency)
	if err != nil || !params.MonitoringEnabled {
		return nil, errors.Errorf("currency %s cannot be consolidated", currency)
	}
	if destination == "" {
		return nil, errors.New("destination address is required")
	}
	multiplier, err := priorityMultiplier(priority)
	if err != nil {
		return nil, err
	}

	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	var sources []*Source
	err = dbaccess.WithTransaction(db, func(tx *gorm.DB) error {
		var sourcesErr error
		sources, sourcesErr = m.collectSources(tx, params)
		return sourcesErr
	})
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.Errorf("no %s funds to consolidate", params.Currency)
	}

	plan := &Plan{
		Currency:           string(params.Currency),
		DestinationAddress: destination,
		Priority:           priority,
		SourceCount:        len(sources),
		EstimatedFee:       estimateFee(params, len(sources), multiplier),
		CreatedAt:          time.Now().UTC(),
	}
	for _, source := range sources {
		plan.TotalAmount += source.Amount
	}
	plan.NetAmount = plan.TotalAmount - plan.EstimatedFee
	if plan.NetAmount <= 0 {
		return nil, errors.Errorf(
			"consolidating %d %s sources would cost more in fees (%s) than it moves (%s)",
			plan.SourceCount, params.Currency,
			params.FormatAmount(plan.EstimatedFee), params.FormatAmount(plan.TotalAmount))
	}

	plan.TxID, err = newPlanID()
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Execute runs a prepared sweep: it re-collects the sources under lock,
// builds and broadcasts the network transactions, records the consolidation,
// and flips every swept channel to consolidated in the same database
// transaction.
func (m *Manager) Execute(plan *Plan) (*Result, error) {
	params, err := chainparams.Parse(plan.Currency)
	if err != nil {
		return nil, err
	}
	db, err := database.DB()
	if err != nil {
		return nil, err
	}

	existing, err := dbaccess.ConsolidationByTxID(db, plan.TxID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Errorf("consolidation %s was already executed", plan.TxID)
	}

	result := &Result{Plan: plan}
	err = dbaccess.WithTransaction(db, func(tx *gorm.DB) error {
		sources, err := m.collectSources(tx, params)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			return errors.Errorf("no %s funds left to consolidate", params.Currency)
		}

		hashes, err := m.sweep(params, sources, plan)
		if err != nil {
			return err
		}
		result.TxHash = hashes[0]
		result.AdditionalTxHashes = hashes[1:]

		row := &dbmodels.ConsolidationTransaction{
			TxID:               plan.TxID,
			CryptoType:         plan.Currency,
			DestinationAddress: plan.DestinationAddress,
			TotalAmount:        plan.TotalAmount,
			EstimatedFee:       plan.EstimatedFee,
			NetAmount:          plan.NetAmount,
			SourceCount:        len(sources),
			TxHash:             &result.TxHash,
			Priority:           plan.Priority,
			Status:             "executed",
			CreatedAt:          time.Now().UTC(),
		}
		if len(result.AdditionalTxHashes) > 0 {
			serialized, err := json.Marshal(result.AdditionalTxHashes)
			if err != nil {
				return errors.Wrap(err, "failed to serialize additional tx hashes")
			}
			additional := string(serialized)
			row.AdditionalTxHashes = &additional
		}
		err = dbaccess.InsertConsolidation(tx, row)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, source := range sources {
			advanced, err := dbaccess.AdvanceChannelStatus(tx, source.OwningChannelID,
				[]dbmodels.ChannelStatus{dbmodels.ChannelStatusCompleted},
				dbmodels.ChannelStatusConsolidated, nil)
			if err != nil {
				return err
			}
			if !advanced {
				return errors.Errorf("channel %d left completed during consolidation",
					source.OwningChannelID)
			}
			err = m.vault.ReleaseChannelAddress(tx, source.OwningChannelID, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Consolidated %d %s sources into %s (tx %s)",
		plan.SourceCount, plan.Currency, plan.DestinationAddress, result.TxHash)
	return result, nil
}

// sweep dispatches to the network-family builder. It returns at least one
// transaction hash; the first is canonical.
func (m *Manager) sweep(params *chainparams.Params, sources []*Source, plan *Plan) ([]string, error) {
	switch params.AddressType {
	case chainparams.AddressTypeBech32:
		hash, err := m.sweepBitcoin(params, sources, plan)
		if err != nil {
			return nil, err
		}
		return []string{hash}, nil
	case chainparams.AddressTypeEVM:
		return m.sweepEVM(params, sources, plan)
	case chainparams.AddressTypeEd25519:
		hash, err := m.sweepSolana(sources, plan)
		if err != nil {
			return nil, err
		}
		return []string{hash}, nil
	}
	return nil, errors.Errorf("currency %s has no sweep builder", params.Currency)
}

func newPlanID() (string, error) {
	var raw [16]byte
	_, err := rand.Read(raw[:])
	if err != nil {
		return "", errors.Wrap(err, "failed to generate consolidation id")
	}
	return hex.EncodeToString(raw[:]), nil
}
