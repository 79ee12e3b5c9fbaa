package channel

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/hive"
	"github.com/dluxio/hiveonboard/logger"
	"github.com/dluxio/hiveonboard/pricing"
	"github.com/dluxio/hiveonboard/vault"
)

var log = logger.Logger("CHAN")

// channelLifetime is how long a pending channel waits for its deposit.
const channelLifetime = 24 * time.Hour

// Typed failures the HTTP layer maps onto client errors.
var (
	// ErrAccountExists means the requested username is already taken on
	// chain.
	ErrAccountExists = errors.New("account already exists")

	// ErrActiveChannelExists means the username already has a live channel.
	ErrActiveChannelExists = errors.New("an active payment channel already exists for this username")

	// ErrCurrencyNotSupported means the currency is unknown or not
	// monitored for deposits.
	ErrCurrencyNotSupported = errors.New("currency is not supported for payments")

	// ErrChannelNotFound means no channel carries the given channel id.
	ErrChannelNotFound = errors.New("payment channel not found")

	// ErrInvalidRequest marks a request rejected by validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// CreateRequest carries everything needed to open a payment channel. All four
// public keys belong to the future account; the service never sees the
// matching private keys.
type CreateRequest struct {
	Username   string
	Currency   string
	OwnerKey   string
	ActiveKey  string
	PostingKey string
	MemoKey    string
}

// CreateResult is a freshly opened channel plus its payment instructions.
type CreateResult struct {
	Channel       *dbmodels.PaymentChannel
	Rate          *pricing.CryptoRate
	AddressReused bool
}

// Engine opens, inspects, and retires payment channels.
type Engine struct {
	vault      *vault.Vault
	oracle     *pricing.Oracle
	hiveClient *hive.Client
}

// NewEngine builds a channel engine.
func NewEngine(keyVault *vault.Vault, oracle *pricing.Oracle, hiveClient *hive.Client) *Engine {
	return &Engine{vault: keyVault, oracle: oracle, hiveClient: hiveClient}
}

// Create validates the request, quotes the price, allocates a deposit
// address, and persists the channel atomically.
func (e *Engine) Create(request *CreateRequest) (*CreateResult, error) {
	err := hive.ValidateUsername(request.Username)
	if err != nil {
		return nil, errors.WithMessage(ErrInvalidRequest, err.Error())
	}
	err = validateKeys(request)
	if err != nil {
		return nil, errors.WithMessage(ErrInvalidRequest, err.Error())
	}

	params, err := chainparams.Parse(request.Currency)
	if err != nil || !params.MonitoringEnabled {
		return nil, errors.Wrapf(ErrCurrencyNotSupported, "%s", request.Currency)
	}

	exists, err := e.hiveClient.AccountExists(request.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrapf(ErrAccountExists, "%s", request.Username)
	}

	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	existing, err := dbaccess.NonTerminalChannelByUsername(db, request.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.IsExpired(time.Now()) {
		return nil, errors.Wrapf(ErrActiveChannelExists, "channel %s", existing.ChannelID)
	}

	rate, err := e.oracle.Latest().Rate(params.Currency)
	if err != nil {
		return nil, err
	}

	channelID, err := newChannelID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	channel := &dbmodels.PaymentChannel{
		ChannelID:    channelID,
		Username:     request.Username,
		CryptoType:   string(params.Currency),
		AmountCrypto: rate.TotalAmount,
		AmountUSD:    rate.FinalCostUSD,
		Status:       dbmodels.ChannelStatusPending,
		OwnerKey:     request.OwnerKey,
		ActiveKey:    request.ActiveKey,
		PostingKey:   request.PostingKey,
		MemoKey:      request.MemoKey,
		CreatedAt:    now,
		ExpiresAt:    now.Add(channelLifetime),
	}
	if memoCapable(params.Currency) {
		memo := channelID
		channel.Memo = &memo
	}

	var reused bool
	err = dbaccess.WithTransaction(db, func(tx *gorm.DB) error {
		address, addressReused, err := e.vault.ChannelAddress(tx, params, now)
		if err != nil {
			return err
		}
		reused = addressReused

		channel.DepositAddress = address.Address
		err = dbaccess.InsertChannel(tx, channel)
		if err != nil {
			return err
		}
		return dbaccess.AssignAddressToChannel(tx, address.ID, channel.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Opened channel %s for @%s: %s %s to %s",
		channelID, request.Username, params.FormatAmount(channel.AmountCrypto),
		params.Currency, channel.DepositAddress)
	return &CreateResult{Channel: channel, Rate: rate, AddressReused: reused}, nil
}

func validateKeys(request *CreateRequest) error {
	keys := map[string]string{
		"owner":   request.OwnerKey,
		"active":  request.ActiveKey,
		"posting": request.PostingKey,
		"memo":    request.MemoKey,
	}
	for role, key := range keys {
		if !hive.IsPublicKey(key) {
			return errors.Errorf("invalid %s public key", role)
		}
	}
	return nil
}

// memoCapable reports whether deposits on a chain can carry the channel memo.
// UTXO chains use OP_RETURN, Solana the memo program; plain EVM transfers
// have no standard memo field.
func memoCapable(currency chainparams.Currency) bool {
	return currency == chainparams.BTC || currency == chainparams.SOL
}

func newChannelID() (string, error) {
	var raw [16]byte
	_, err := rand.Read(raw[:])
	if err != nil {
		return "", errors.Wrap(err, "failed to generate channel id")
	}
	return hex.EncodeToString(raw[:]), nil
}

// StatusView is the client-facing projection of a channel.
type StatusView struct {
	Channel               *dbmodels.PaymentChannel
	EffectiveStatus       dbmodels.ChannelStatus
	RequiredConfirmations int64
	ProgressPercent       int
	Message               string
}

// Status fetches a channel by its public id and renders its progress. An
// expired pending channel is surfaced as expired without being mutated; the
// sweep owns the actual transition.
func (e *Engine) Status(channelID string) (*StatusView, error) {
	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	channel, err := dbaccess.ChannelByChannelID(db, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, errors.Wrapf(ErrChannelNotFound, "%s", channelID)
	}
	return e.RenderStatus(channel), nil
}

// RenderStatus projects an already fetched channel row into its client view.
func (e *Engine) RenderStatus(channel *dbmodels.PaymentChannel) *StatusView {
	params, err := chainparams.Get(chainparams.Currency(channel.CryptoType))
	var required int64 = 1
	if err == nil {
		required = params.RequiredConfirmations
	}

	view := &StatusView{
		Channel:               channel,
		EffectiveStatus:       channel.Status,
		RequiredConfirmations: required,
	}
	if channel.IsExpired(time.Now()) {
		view.EffectiveStatus = dbmodels.ChannelStatusExpired
	}

	switch view.EffectiveStatus {
	case dbmodels.ChannelStatusPending:
		view.ProgressPercent = 10
		view.Message = fmt.Sprintf("Waiting for your %s payment", channel.CryptoType)
	case dbmodels.ChannelStatusConfirming:
		progress := 25 + int(float64(channel.Confirmations)/float64(required)*50)
		if progress > 75 {
			progress = 75
		}
		view.ProgressPercent = progress
		view.Message = fmt.Sprintf("Payment detected, %d of %d confirmations",
			channel.Confirmations, required)
	case dbmodels.ChannelStatusConfirmed:
		view.ProgressPercent = 85
		view.Message = "Payment confirmed, creating your Hive account"
	case dbmodels.ChannelStatusCompleted, dbmodels.ChannelStatusConsolidated:
		view.ProgressPercent = 100
		view.Message = fmt.Sprintf("Account @%s created", channel.Username)
	case dbmodels.ChannelStatusExpired:
		view.Message = "Payment window expired, please open a new channel"
	case dbmodels.ChannelStatusFailed:
		view.Message = "Payment failed, please contact support"
	}
	return view
}

// ChannelsForUsername returns the rendered history of every channel a
// username has opened, newest first.
func (e *Engine) ChannelsForUsername(username string) ([]*StatusView, error) {
	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	channels, err := dbaccess.ChannelsByUsername(db, username)
	if err != nil {
		return nil, err
	}
	views := make([]*StatusView, len(channels))
	for i, channel := range channels {
		views[i] = e.RenderStatus(channel)
	}
	return views, nil
}

// Cancel flips a pending channel to failed and starts its address cool-down.
// Channels past pending have money in flight and cannot be cancelled.
func (e *Engine) Cancel(channelID string) error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	channel, err := dbaccess.ChannelByChannelID(db, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return errors.Wrapf(ErrChannelNotFound, "%s", channelID)
	}

	advanced, err := dbaccess.AdvanceChannelStatus(db, channel.ID,
		[]dbmodels.ChannelStatus{dbmodels.ChannelStatusPending},
		dbmodels.ChannelStatusFailed, nil)
	if err != nil {
		return err
	}
	if !advanced {
		return errors.Errorf("channel %s is %s and cannot be cancelled",
			channelID, channel.Status)
	}

	err = e.vault.ReleaseChannelAddress(db, channel.ID, time.Now())
	if err != nil {
		return err
	}
	log.Infof("Cancelled channel %s for @%s", channelID, channel.Username)
	return nil
}

// Delete removes a channel row entirely. Admin-only; the address is released
// first so it survives the cascade and can be recycled.
func (e *Engine) Delete(channelID string) error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	channel, err := dbaccess.ChannelByChannelID(db, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return errors.Wrapf(ErrChannelNotFound, "%s", channelID)
	}

	err = e.vault.ReleaseChannelAddress(db, channel.ID, time.Now())
	if err != nil {
		return err
	}
	err = dbaccess.DeleteChannel(db, channel)
	if err != nil {
		return err
	}
	log.Infof("Deleted channel %s for @%s", channelID, channel.Username)
	return nil
}

// ExpireSweep flips every pending channel past its deadline to expired and
// releases its address. Runs on a fixed cadence.
func (e *Engine) ExpireSweep() error {
	db, err := database.DB()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	expired, err := dbaccess.ExpiredPendingChannels(db, now)
	if err != nil {
		return err
	}

	for _, channel := range expired {
		advanced, err := dbaccess.AdvanceChannelStatus(db, channel.ID,
			[]dbmodels.ChannelStatus{dbmodels.ChannelStatusPending},
			dbmodels.ChannelStatusExpired, nil)
		if err != nil {
			return err
		}
		if !advanced {
			// A deposit raced the sweep; the channel moved on.
			continue
		}
		err = e.vault.ReleaseChannelAddress(db, channel.ID, now)
		if err != nil {
			return err
		}
		log.Infof("Expired channel %s for @%s", channel.ChannelID, channel.Username)
	}
	return nil
}
