package dbmodels

import (
	"time"
)

// ChannelStatus is the lifecycle state of a payment channel.
type ChannelStatus string

// Channel lifecycle states. Transitions are monotonic along
// pending → confirming → confirmed → completed; failed, expired, and
// consolidated are terminal.
const (
	ChannelStatusPending      ChannelStatus = "pending"
	ChannelStatusConfirming   ChannelStatus = "confirming"
	ChannelStatusConfirmed    ChannelStatus = "confirmed"
	ChannelStatusCompleted    ChannelStatus = "completed"
	ChannelStatusFailed       ChannelStatus = "failed"
	ChannelStatusExpired      ChannelStatus = "expired"
	ChannelStatusConsolidated ChannelStatus = "consolidated"
)

// IsTerminal returns whether a channel in this status can never advance again.
func (s ChannelStatus) IsTerminal() bool {
	switch s {
	case ChannelStatusCompleted, ChannelStatusFailed, ChannelStatusExpired, ChannelStatusConsolidated:
		return true
	}
	return false
}

// NonTerminalStatuses lists every status a live channel can hold.
var NonTerminalStatuses = []ChannelStatus{
	ChannelStatusPending,
	ChannelStatusConfirming,
	ChannelStatusConfirmed,
}

// CreationMethod is how a Hive account creation was paid for.
type CreationMethod string

// Creation methods.
const (
	CreationMethodACT        CreationMethod = "ACT"
	CreationMethodDelegation CreationMethod = "DELEGATION"
)

// CreationStatus is the state of a single account-creation attempt.
type CreationStatus string

// Creation attempt states.
const (
	CreationStatusAttempting CreationStatus = "attempting"
	CreationStatusSuccess    CreationStatus = "success"
	CreationStatusFailed     CreationStatus = "failed"
)

// PaymentChannel is a single attempt by one user to purchase exactly one Hive
// account via one cryptocurrency.
type PaymentChannel struct {
	ID               uint64        `gorm:"primary_key"`
	ChannelID        string        `gorm:"column:channel_id"`
	Username         string        `gorm:"column:username"`
	CryptoType       string        `gorm:"column:crypto_type"`
	DepositAddress   string        `gorm:"column:deposit_address"`
	AmountCrypto     float64       `gorm:"column:amount_crypto"`
	AmountUSD        float64       `gorm:"column:amount_usd"`
	Memo             *string       `gorm:"column:memo"`
	Status           ChannelStatus `gorm:"column:status"`
	Confirmations    int64         `gorm:"column:confirmations"`
	TxHash           *string       `gorm:"column:tx_hash"`
	HiveTxID         *string       `gorm:"column:hive_tx_id"`
	OwnerKey         string        `gorm:"column:owner_key"`
	ActiveKey        string        `gorm:"column:active_key"`
	PostingKey       string        `gorm:"column:posting_key"`
	MemoKey          string        `gorm:"column:memo_key"`
	CreatedAt        time.Time     `gorm:"column:created_at"`
	ConfirmedAt      *time.Time    `gorm:"column:confirmed_at"`
	AccountCreatedAt *time.Time    `gorm:"column:account_created_at"`
	ExpiresAt        time.Time     `gorm:"column:expires_at"`

	Address       *CryptoAddress         `gorm:"foreignkey:ChannelID"`
	Confirmation  []*PaymentConfirmation `gorm:"foreignkey:ChannelID"`
	CreationTries []*HiveAccountCreation `gorm:"foreignkey:ChannelID"`
}

// TableName returns the table name associated with the paymentChannel model.
func (PaymentChannel) TableName() string {
	return "payment_channels"
}

// IsExpired reports whether a pending channel is past its deadline.
func (c *PaymentChannel) IsExpired(now time.Time) bool {
	return c.Status == ChannelStatusPending && !now.Before(c.ExpiresAt)
}

// PaymentConfirmation is one observation of an on-chain transaction credited
// to a channel. (channel_id, tx_hash) and (crypto_type, tx_hash) are unique.
type PaymentConfirmation struct {
	ID             uint64     `gorm:"primary_key"`
	ChannelID      uint64     `gorm:"column:channel_id"`
	CryptoType     string     `gorm:"column:crypto_type"`
	TxHash         string     `gorm:"column:tx_hash"`
	BlockHeight    int64      `gorm:"column:block_height"`
	Confirmations  int64      `gorm:"column:confirmations"`
	AmountReceived float64    `gorm:"column:amount_received"`
	DetectedAt     time.Time  `gorm:"column:detected_at"`
	ProcessedAt    *time.Time `gorm:"column:processed_at"`
}

// TableName returns the table name associated with the paymentConfirmation
// model.
func (PaymentConfirmation) TableName() string {
	return "payment_confirmations"
}

// CryptoAddress is a derived deposit address and its encrypted private key.
// (crypto_type, derivation_index) is unique; the row is reassigned to a new
// channel when the address is recycled.
type CryptoAddress struct {
	ID                  uint64     `gorm:"primary_key"`
	ChannelID           *uint64    `gorm:"column:channel_id"`
	CryptoType          string     `gorm:"column:crypto_type"`
	DerivationIndex     uint32     `gorm:"column:derivation_index"`
	Address             string     `gorm:"column:address"`
	PublicKey           string     `gorm:"column:public_key"`
	EncryptedPrivateKey string     `gorm:"column:encrypted_private_key"`
	DerivationPath      string     `gorm:"column:derivation_path"`
	AddressType         string     `gorm:"column:address_type"`
	ReusableAfter       *time.Time `gorm:"column:reusable_after"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
}

// TableName returns the table name associated with the cryptoAddress model.
func (CryptoAddress) TableName() string {
	return "crypto_addresses"
}

// HiveAccountCreation is one attempt to create the Hive account of a channel.
type HiveAccountCreation struct {
	ID           uint64         `gorm:"primary_key"`
	ChannelID    uint64         `gorm:"column:channel_id"`
	Method       CreationMethod `gorm:"column:method"`
	ACTUsed      bool           `gorm:"column:act_used"`
	CreationFee  float64        `gorm:"column:creation_fee"`
	TxID         *string        `gorm:"column:tx_id"`
	AttemptCount int            `gorm:"column:attempt_count"`
	Status       CreationStatus `gorm:"column:status"`
	ErrorMessage *string        `gorm:"column:error_message"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

// TableName returns the table name associated with the hiveAccountCreation
// model.
func (HiveAccountCreation) TableName() string {
	return "hive_account_creations"
}

// ACTBalance tracks the account-creation-token inventory of a creator
// account.
type ACTBalance struct {
	ID              uint64     `gorm:"primary_key"`
	CreatorAccount  string     `gorm:"column:creator_account"`
	ACTBalance      int        `gorm:"column:act_balance"`
	ResourceCredits int64      `gorm:"column:resource_credits"`
	LastClaimTime   *time.Time `gorm:"column:last_claim_time"`
	LastRCCheck     *time.Time `gorm:"column:last_rc_check"`
}

// TableName returns the table name associated with the actBalance model.
func (ACTBalance) TableName() string {
	return "act_balances"
}

// RCCost is one beacon observation of the RC price of a Hive operation. The
// latest row per operation_type is authoritative.
type RCCost struct {
	ID            uint64    `gorm:"primary_key"`
	OperationType string    `gorm:"column:operation_type"`
	APITimestamp  time.Time `gorm:"column:api_timestamp"`
	RCNeeded      int64     `gorm:"column:rc_needed"`
	HPNeeded      float64   `gorm:"column:hp_needed"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName returns the table name associated with the rcCost model.
func (RCCost) TableName() string {
	return "rc_costs"
}

// PricingSnapshot is one computed quote table. CryptoRates and TransferCosts
// are JSON-serialized maps.
type PricingSnapshot struct {
	ID            uint64    `gorm:"primary_key"`
	HivePriceUSD  float64   `gorm:"column:hive_price_usd"`
	BaseCostUSD   float64   `gorm:"column:base_cost_usd"`
	FinalCostUSD  float64   `gorm:"column:final_cost_usd"`
	CryptoRates   string    `gorm:"column:crypto_rates"`
	TransferCosts string    `gorm:"column:transfer_costs"`
	Fallback      bool      `gorm:"column:fallback"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName returns the table name associated with the pricingSnapshot model.
func (PricingSnapshot) TableName() string {
	return "pricing_snapshots"
}

// ConsolidationTransaction records one executed sweep of per-channel deposit
// addresses into a destination address.
type ConsolidationTransaction struct {
	ID                 uint64    `gorm:"primary_key"`
	TxID               string    `gorm:"column:tx_id"`
	CryptoType         string    `gorm:"column:crypto_type"`
	DestinationAddress string    `gorm:"column:destination_address"`
	TotalAmount        float64   `gorm:"column:total_amount"`
	EstimatedFee       float64   `gorm:"column:estimated_fee"`
	NetAmount          float64   `gorm:"column:net_amount"`
	SourceCount        int       `gorm:"column:source_count"`
	TxHash             *string   `gorm:"column:tx_hash"`
	AdditionalTxHashes *string   `gorm:"column:additional_tx_hashes"`
	Priority           string    `gorm:"column:priority"`
	Status             string    `gorm:"column:status"`
	CreatedAt          time.Time `gorm:"column:created_at"`
}

// TableName returns the table name associated with the
// consolidationTransaction model.
func (ConsolidationTransaction) TableName() string {
	return "consolidation_transactions"
}

// Notification is a persisted per-user notice. Websocket delivery is
// best-effort; this row is authoritative.
type Notification struct {
	ID        uint64     `gorm:"primary_key"`
	Username  string     `gorm:"column:username"`
	Type      string     `gorm:"column:type"`
	Title     string     `gorm:"column:title"`
	Message   string     `gorm:"column:message"`
	Data      *string    `gorm:"column:data"`
	Priority  string     `gorm:"column:priority"`
	IsRead    bool       `gorm:"column:is_read"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
}

// TableName returns the table name associated with the notification model.
func (Notification) TableName() string {
	return "notifications"
}
