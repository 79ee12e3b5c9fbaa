package chainparams

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Currency is the tag of a supported payment network.
type Currency string

// Payment networks known to the service. Monero and Dash exist for pricing
// symmetry only and are never monitored.
const (
	BTC   Currency = "BTC"
	ETH   Currency = "ETH"
	BNB   Currency = "BNB"
	MATIC Currency = "MATIC"
	SOL   Currency = "SOL"
	XMR   Currency = "XMR"
	DASH  Currency = "DASH"
)

// AddressType describes the on-chain address kind the vault derives for a
// currency.
type AddressType string

// Address types per network family.
const (
	AddressTypeBech32  AddressType = "bech32"
	AddressTypeEVM     AddressType = "evm"
	AddressTypeEd25519 AddressType = "ed25519"
)

// Params holds the per-currency constants the monitor, vault, and pricing
// oracle depend on.
type Params struct {
	Currency Currency
	Name     string

	// CoinGeckoID is the id used against the CoinGecko simple-price API.
	CoinGeckoID string

	// Decimals is the number of fractional digits of the network's base
	// unit. Deposit amounts are quoted and compared at this precision.
	Decimals int

	// BlockTimeSeconds doubles as the poll cadence of the network's
	// deposit poller.
	BlockTimeSeconds int

	// RequiredConfirmations is the number of confirmations a deposit needs
	// before the channel advances to confirmed.
	RequiredConfirmations int64

	// AvgTransferFee is the static outbound-fee estimate in the currency's
	// own unit. ETH overrides it with live gas quotes when available.
	AvgTransferFee float64

	// FallbackPriceUSD is used when every price source fails.
	FallbackPriceUSD float64

	// DustMinimum is the smallest deposit the monitor will credit.
	DustMinimum float64

	// DerivationPath is the BIP44/84 prefix the vault appends the
	// per-channel index to.
	DerivationPath string

	AddressType AddressType

	// MonitoringEnabled gates both deposit polling and channel creation.
	MonitoringEnabled bool

	// EVMCompatible marks account-model chains that reuse the secp256k1
	// keccak address scheme.
	EVMCompatible bool
}

var registry = map[Currency]*Params{
	BTC: {
		Currency:              BTC,
		Name:                  "Bitcoin",
		CoinGeckoID:           "bitcoin",
		Decimals:              8,
		BlockTimeSeconds:      600,
		RequiredConfirmations: 2,
		AvgTransferFee:        0.0001,
		FallbackPriceUSD:      50000,
		DustMinimum:           0.00000546,
		DerivationPath:        "m/84'/0'/0'/0",
		AddressType:           AddressTypeBech32,
		MonitoringEnabled:     true,
	},
	ETH: {
		Currency:              ETH,
		Name:                  "Ethereum",
		CoinGeckoID:           "ethereum",
		Decimals:              18,
		BlockTimeSeconds:      12,
		RequiredConfirmations: 2,
		AvgTransferFee:        0.0015,
		FallbackPriceUSD:      3000,
		DustMinimum:           0.000001,
		DerivationPath:        "m/44'/60'/0'/0",
		AddressType:           AddressTypeEVM,
		MonitoringEnabled:     true,
		EVMCompatible:         true,
	},
	BNB: {
		Currency:              BNB,
		Name:                  "BNB Smart Chain",
		CoinGeckoID:           "binancecoin",
		Decimals:              18,
		BlockTimeSeconds:      3,
		RequiredConfirmations: 3,
		AvgTransferFee:        0.0005,
		FallbackPriceUSD:      500,
		DustMinimum:           0.00001,
		DerivationPath:        "m/44'/60'/0'/0",
		AddressType:           AddressTypeEVM,
		MonitoringEnabled:     true,
		EVMCompatible:         true,
	},
	MATIC: {
		Currency:              MATIC,
		Name:                  "Polygon",
		CoinGeckoID:           "matic-network",
		Decimals:              18,
		BlockTimeSeconds:      2,
		RequiredConfirmations: 10,
		AvgTransferFee:        0.01,
		FallbackPriceUSD:      0.8,
		DustMinimum:           0.001,
		DerivationPath:        "m/44'/60'/0'/0",
		AddressType:           AddressTypeEVM,
		MonitoringEnabled:     true,
		EVMCompatible:         true,
	},
	SOL: {
		Currency:              SOL,
		Name:                  "Solana",
		CoinGeckoID:           "solana",
		Decimals:              9,
		BlockTimeSeconds:      1,
		RequiredConfirmations: 1,
		AvgTransferFee:        0.000005,
		FallbackPriceUSD:      150,
		DustMinimum:           0.000001,
		DerivationPath:        "m/44'/501'",
		AddressType:           AddressTypeEd25519,
		MonitoringEnabled:     true,
	},
	XMR: {
		Currency:          XMR,
		Name:              "Monero",
		CoinGeckoID:       "monero",
		Decimals:          12,
		AvgTransferFee:    0.0001,
		FallbackPriceUSD:  160,
		MonitoringEnabled: false,
	},
	DASH: {
		Currency:          DASH,
		Name:              "Dash",
		CoinGeckoID:       "dash",
		Decimals:          8,
		AvgTransferFee:    0.0001,
		FallbackPriceUSD:  30,
		MonitoringEnabled: false,
	},
}

// HiveFallbackPriceUSD is used when both the CoinGecko and the Hive node
// price feeds are unavailable.
const HiveFallbackPriceUSD = 0.30

// Get returns the params of the given currency.
func Get(currency Currency) (*Params, error) {
	params, ok := registry[currency]
	if !ok {
		return nil, errors.Errorf("unknown currency %s", currency)
	}
	return params, nil
}

// Parse normalizes a user-supplied currency tag and resolves it against the
// registry.
func Parse(s string) (*Params, error) {
	return Get(Currency(strings.ToUpper(strings.TrimSpace(s))))
}

// All returns every registered currency, monitored or not, in a stable order.
func All() []*Params {
	return ordered(false)
}

// Monitored returns the currencies deposits may arrive on, in a stable order.
func Monitored() []*Params {
	return ordered(true)
}

func ordered(monitoredOnly bool) []*Params {
	order := []Currency{BTC, ETH, BNB, MATIC, SOL, XMR, DASH}
	result := make([]*Params, 0, len(order))
	for _, currency := range order {
		params := registry[currency]
		if monitoredOnly && !params.MonitoringEnabled {
			continue
		}
		result = append(result, params)
	}
	return result
}

// FormatAmount renders an amount at the currency's native precision.
func (p *Params) FormatAmount(amount float64) string {
	decimals := p.Decimals
	if decimals > 8 {
		// Quotes are carried at 8 fractional digits even on 18-decimal
		// chains; finer precision is below every dust minimum.
		decimals = 8
	}
	return fmt.Sprintf("%.*f", decimals, amount)
}
