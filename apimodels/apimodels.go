package apimodels

import (
	"time"
)

// PricingResponse is the public quote table.
type PricingResponse struct {
	HivePriceUSD        float64                     `json:"hive_price_usd"`
	AccountCreationCost float64                     `json:"account_creation_cost_usd"`
	CryptoRates         map[string]*CryptoRate      `json:"crypto_rates"`
	TransferCosts       map[string]float64          `json:"transfer_costs_usd"`
	SupportedCurrencies []string                    `json:"supported_currencies"`
	Fallback            bool                        `json:"fallback"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// CryptoRate is the per-currency quote inside a PricingResponse.
type CryptoRate struct {
	PriceUSD               float64 `json:"price_usd"`
	AmountNeeded           float64 `json:"amount_needed"`
	TransferFee            float64 `json:"transfer_fee"`
	TotalAmount            float64 `json:"total_amount"`
	NetworkFeeSurchargeUSD float64 `json:"network_fee_surcharge_usd"`
	FinalCostUSD           float64 `json:"final_cost_usd"`
}

// InitiatePaymentRequest opens a payment channel.
type InitiatePaymentRequest struct {
	Username   string `json:"username"`
	CryptoType string `json:"cryptoType"`
	OwnerKey   string `json:"ownerKey"`
	ActiveKey  string `json:"activeKey"`
	PostingKey string `json:"postingKey"`
	MemoKey    string `json:"memoKey"`
}

// InitiatePaymentResponse carries the payment instructions of a new channel.
type InitiatePaymentResponse struct {
	ChannelID      string    `json:"channelId"`
	Username       string    `json:"username"`
	CryptoType     string    `json:"cryptoType"`
	DepositAddress string    `json:"depositAddress"`
	Amount         float64   `json:"amount"`
	AmountUSD      float64   `json:"amountUsd"`
	Memo           *string   `json:"memo,omitempty"`
	AddressReused  bool      `json:"addressReused"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// ChannelStatusResponse is the client-facing projection of a channel.
type ChannelStatusResponse struct {
	ChannelID             string     `json:"channelId"`
	Username              string     `json:"username"`
	CryptoType            string     `json:"cryptoType"`
	DepositAddress        string     `json:"depositAddress"`
	Amount                float64    `json:"amount"`
	Status                string     `json:"status"`
	Confirmations         int64      `json:"confirmations"`
	RequiredConfirmations int64      `json:"requiredConfirmations"`
	ProgressPercent       int        `json:"progressPercent"`
	Message               string     `json:"message"`
	TxHash                *string    `json:"txHash,omitempty"`
	HiveTxID              *string    `json:"hiveTxId,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	ExpiresAt             time.Time  `json:"expiresAt"`
	AccountCreatedAt      *time.Time `json:"accountCreatedAt,omitempty"`
}

// VerifyTransactionRequest claims a transaction pays for a channel.
type VerifyTransactionRequest struct {
	ChannelID string `json:"channelId"`
	TxHash    string `json:"txHash"`
}

// WebhookPaymentRequest is an external hint that a payment landed. It is
// never trusted; the monitor re-verifies against the chain.
type WebhookPaymentRequest struct {
	ChannelID string `json:"channelId"`
	TxHash    string `json:"txHash"`
}

// ACTStatusResponse reports the creator's creation capacity.
type ACTStatusResponse struct {
	CreatorAccount  string     `json:"creatorAccount"`
	ACTBalance      int        `json:"actBalance"`
	ResourceCredits int64      `json:"resourceCredits"`
	LastClaimTime   *time.Time `json:"lastClaimTime,omitempty"`
	LastRCCheck     *time.Time `json:"lastRcCheck,omitempty"`
}

// ClaimACTResponse reports the outcome of a manual claim run.
type ClaimACTResponse struct {
	Claimed int `json:"claimed"`
}

// HealthCheckResponse is the capacity health report.
type HealthCheckResponse struct {
	State           string  `json:"state"`
	ACTBalance      int     `json:"actBalance"`
	ResourceCredits int64   `json:"resourceCredits"`
	ClaimsRemaining int64   `json:"claimsRemaining"`
	DaysSustainable float64 `json:"daysSustainable"`
}

// RCCostResponse is one operation's current RC price.
type RCCostResponse struct {
	OperationType string    `json:"operationType"`
	RCNeeded      int64     `json:"rcNeeded"`
	HPNeeded      float64   `json:"hpNeeded"`
	APITimestamp  time.Time `json:"apiTimestamp"`
}

// ConsolidationPrepareRequest asks for a sweep plan.
type ConsolidationPrepareRequest struct {
	CryptoType         string `json:"cryptoType"`
	DestinationAddress string `json:"destinationAddress"`
	Priority           string `json:"priority"`
}

// ConsolidationExecuteRequest executes a previously prepared plan.
type ConsolidationExecuteRequest struct {
	TxID               string  `json:"txId"`
	CryptoType         string  `json:"cryptoType"`
	DestinationAddress string  `json:"destinationAddress"`
	Priority           string  `json:"priority"`
	SourceCount        int     `json:"sourceCount"`
	TotalAmount        float64 `json:"totalAmount"`
	EstimatedFee       float64 `json:"estimatedFee"`
	NetAmount          float64 `json:"netAmount"`
}

// ManualCreateRequest forces account creation for a confirmed channel.
type ManualCreateRequest struct {
	ChannelID string `json:"channelId"`
}
