package monitor

import (
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/chainapi"
	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/metrics"
	"github.com/dluxio/hiveonboard/notifications"
)

// amountTolerance accepts deposits up to 5% under the quoted amount, which
// absorbs sender-side fee deductions and exchange rounding.
const amountTolerance = 0.95

// Typed match failures surfaced by the manual verification endpoint.
var (
	ErrWrongRecipient     = errors.New("transaction does not pay the deposit address")
	ErrBelowDust          = errors.New("amount is below the network dust minimum")
	ErrInsufficientAmount = errors.New("amount is below the quoted payment amount")
	ErrMemoMismatch       = errors.New("transaction memo does not match the channel memo")
	ErrTooEarly           = errors.New("transaction predates the channel")
	ErrAlreadyCredited    = errors.New("transaction is already credited to another channel")
)

// verifyTransactionMatch decides whether a transaction pays for the given
// channel. Every rule that rejects here protects an invariant: the recipient
// rule binds the payment to the channel's address, the tolerance and dust
// rules protect revenue, the memo rule disambiguates recycled addresses, the
// timestamp rule blocks replaying pre-channel history, and the credited rule
// keeps one transaction from paying for two accounts.
func (m *Monitor) verifyTransactionMatch(db *gorm.DB, params *chainparams.Params,
	channel *dbmodels.PaymentChannel, tx *chainapi.Tx) error {

	amount := tx.AmountTo(channel.DepositAddress)
	if amount <= 0 {
		return ErrWrongRecipient
	}
	if amount < params.DustMinimum {
		return ErrBelowDust
	}
	if amount < channel.AmountCrypto*amountTolerance {
		return errors.Wrapf(ErrInsufficientAmount, "got %s, need at least %s",
			params.FormatAmount(amount),
			params.FormatAmount(channel.AmountCrypto*amountTolerance))
	}

	// Memo equality is enforced only when both sides carry one; a memo-less
	// deposit to the right address for the right amount still counts.
	if channel.Memo != nil && tx.Memo != nil {
		if strings.TrimSpace(*tx.Memo) != strings.TrimSpace(*channel.Memo) {
			return ErrMemoMismatch
		}
	}

	// A deposit stamped exactly at channel creation is accepted.
	if tx.Timestamp.Before(channel.CreatedAt) {
		return ErrTooEarly
	}

	existing, err := dbaccess.ConfirmationByCryptoTxHash(db, channel.CryptoType, tx.Hash)
	if err != nil {
		return err
	}
	if existing != nil && existing.ChannelID != channel.ID {
		return ErrAlreadyCredited
	}
	return nil
}

// ProcessPaymentFound is the single credit pipeline every detection path
// feeds into: pollers, the sweep, manual verification, and webhooks. It
// records the sighting, advances the channel as far as the confirmation
// count allows, and emits notifications for each transition it causes.
func (m *Monitor) ProcessPaymentFound(db *gorm.DB, params *chainparams.Params,
	channel *dbmodels.PaymentChannel, tx *chainapi.Tx) error {

	amount := tx.AmountTo(channel.DepositAddress)
	confirmation := &dbmodels.PaymentConfirmation{
		ChannelID:      channel.ID,
		CryptoType:     channel.CryptoType,
		TxHash:         tx.Hash,
		BlockHeight:    tx.BlockHeight,
		Confirmations:  tx.Confirmations,
		AmountReceived: amount,
		DetectedAt:     time.Now().UTC(),
	}
	err := dbaccess.UpsertConfirmation(db, confirmation)
	if err != nil {
		return err
	}

	detected, err := dbaccess.AdvanceChannelStatus(db, channel.ID,
		[]dbmodels.ChannelStatus{dbmodels.ChannelStatusPending},
		dbmodels.ChannelStatusConfirming,
		map[string]interface{}{
			"tx_hash":       tx.Hash,
			"confirmations": tx.Confirmations,
		})
	if err != nil {
		return err
	}
	if detected {
		metrics.PaymentsDetected.WithLabelValues(channel.CryptoType).Inc()
		log.Infof("Payment detected on channel %s: %s %s in %s",
			channel.ChannelID, params.FormatAmount(amount), channel.CryptoType, tx.Hash)
		m.notifier.StatusChange(channel.ChannelID, dbmodels.ChannelStatusConfirming, &tx.Hash)
		err = m.notifier.Notify(channel.Username, notifications.TypePaymentDetected,
			"Payment detected",
			"Your payment was detected and is waiting for confirmations.",
			map[string]interface{}{"channel_id": channel.ChannelID, "tx_hash": tx.Hash},
			notifications.PriorityNormal, 0)
		if err != nil {
			return err
		}
	} else {
		err = dbaccess.UpdateChannelConfirmations(db, channel.ID, tx.Confirmations)
		if err != nil {
			return err
		}
	}

	if tx.Confirmations < params.RequiredConfirmations {
		return nil
	}

	now := time.Now().UTC()
	confirmed, err := dbaccess.AdvanceChannelStatus(db, channel.ID,
		[]dbmodels.ChannelStatus{dbmodels.ChannelStatusPending, dbmodels.ChannelStatusConfirming},
		dbmodels.ChannelStatusConfirmed,
		map[string]interface{}{
			"tx_hash":       tx.Hash,
			"confirmations": tx.Confirmations,
			"confirmed_at":  now,
		})
	if err != nil {
		return err
	}
	if !confirmed {
		// Already confirmed by a concurrent poller.
		return nil
	}

	// The processed stamp closes the credit pipeline for this sighting. A
	// zero id means a concurrent poller owns the row and will stamp it.
	if confirmation.ID != 0 {
		err = dbaccess.MarkConfirmationProcessed(db, confirmation.ID, now)
		if err != nil {
			return err
		}
	}

	metrics.PaymentsConfirmed.WithLabelValues(channel.CryptoType).Inc()
	log.Infof("Payment confirmed on channel %s (%d confirmations)",
		channel.ChannelID, tx.Confirmations)
	m.notifier.StatusChange(channel.ChannelID, dbmodels.ChannelStatusConfirmed, &tx.Hash)
	err = m.notifier.Notify(channel.Username, notifications.TypePaymentConfirmed,
		"Payment confirmed",
		"Your payment is confirmed. Your Hive account is being created.",
		map[string]interface{}{"channel_id": channel.ChannelID, "tx_hash": tx.Hash},
		notifications.PriorityHigh, 0)
	if err != nil {
		return err
	}

	if m.onConfirmed != nil {
		m.onConfirmed()
	}
	return nil
}

// VerifyTransaction is the manual verification path: a user (or a webhook)
// claims a specific transaction pays a channel, and the monitor re-verifies
// the claim against the chain before crediting anything.
func (m *Monitor) VerifyTransaction(channelID, txHash string) (*dbmodels.PaymentChannel, error) {
	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	channel, err := dbaccess.ChannelByChannelID(db, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, errors.Errorf("payment channel %s not found", channelID)
	}
	if channel.Status.IsTerminal() {
		return nil, errors.Errorf("channel %s is already %s", channelID, channel.Status)
	}

	params, err := chainparams.Get(chainparams.Currency(channel.CryptoType))
	if err != nil {
		return nil, err
	}
	client, ok := m.clients[params.Currency]
	if !ok {
		return nil, errors.Errorf("no chain client for %s", params.Currency)
	}

	tx, err := client.GetTransaction(txHash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.Errorf("transaction %s not found on %s", txHash, params.Currency)
	}

	err = m.verifyTransactionMatch(db, params, channel, tx)
	if err != nil {
		return nil, err
	}
	err = m.ProcessPaymentFound(db, params, channel, tx)
	if err != nil {
		return nil, err
	}

	refreshed, err := dbaccess.ChannelByChannelID(db, channelID)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}
