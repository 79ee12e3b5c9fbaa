package chainapi

import (
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/config"
	"github.com/dluxio/hiveonboard/logger"
)

var log = logger.Logger("MNTR")

// requestTimeout bounds every chain API call.
const requestTimeout = 10 * time.Second

// Output is one output of a UTXO transaction.
type Output struct {
	Address    string
	Amount     float64
	ScriptType string
}

// Tx is the normalized shape every network client reduces its native
// transaction format to.
type Tx struct {
	Hash          string
	Amount        float64
	To            string
	Confirmations int64
	BlockHeight   int64
	Timestamp     time.Time
	Memo          *string

	// AllOutputs is populated on UTXO chains only; a deposit may hide in
	// any output, not just the first.
	AllOutputs []Output
}

// PaysTo reports whether the transaction credits the given address, checking
// every output on UTXO chains.
func (tx *Tx) PaysTo(address string) bool {
	if tx.To == address {
		return true
	}
	for _, output := range tx.AllOutputs {
		if output.Address == address {
			return true
		}
	}
	return false
}

// AmountTo returns the amount the transaction credits to the given address.
func (tx *Tx) AmountTo(address string) float64 {
	if len(tx.AllOutputs) == 0 {
		if tx.To == address {
			return tx.Amount
		}
		return 0
	}
	total := 0.0
	for _, output := range tx.AllOutputs {
		if output.Address == address {
			total += output.Amount
		}
	}
	return total
}

// Client fetches transactions of one network.
type Client interface {
	// Currency returns the network this client serves.
	Currency() chainparams.Currency

	// GetTransaction fetches a transaction by hash, or (nil, nil) when
	// the chain does not know it (yet).
	GetTransaction(hash string) (*Tx, error)

	// GetAddressTransactions returns inbound transfers to the address
	// strictly after since.
	GetAddressTransactions(address string, since time.Time) ([]*Tx, error)
}

// NewClient builds the client of a monitored currency.
func NewClient(params *chainparams.Params, cfg *config.Config) (Client, error) {
	switch params.Currency {
	case chainparams.BTC:
		return newBitcoinClient(params, cfg.BlockCypherAPIKey), nil
	case chainparams.ETH:
		return newEVMClient(params, "https://api.etherscan.io/api", cfg.EtherscanAPIKey), nil
	case chainparams.BNB:
		return newEVMClient(params, "https://api.bscscan.com/api", cfg.BscScanAPIKey), nil
	case chainparams.MATIC:
		return newEVMClient(params, "https://api.polygonscan.com/api", cfg.PolygonScanAPIKey), nil
	case chainparams.SOL:
		return newSolanaClient(params, cfg.SolanaRPCURL), nil
	}
	return nil, errors.Errorf("currency %s has no chain API client", params.Currency)
}

// httpGetJSON fetches a URL and parses the body as JSON.
func httpGetJSON(rawURL string) (gjson.Result, error) {
	client := &http.Client{Timeout: requestTimeout}
	response, err := client.Get(rawURL)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "request to %s failed", sanitizeURL(rawURL))
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return gjson.Result{}, errNotFound
	}
	if response.StatusCode != http.StatusOK {
		return gjson.Result{}, errors.Errorf("request to %s returned status %d",
			sanitizeURL(rawURL), response.StatusCode)
	}

	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "failed to read response body")
	}
	return gjson.ParseBytes(body), nil
}

// errNotFound marks a transaction the chain does not know.
var errNotFound = errors.New("not found")

// sanitizeURL strips query parameters, which may carry API keys, before a URL
// reaches a log line or error message.
func sanitizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	parsed.RawQuery = ""
	return parsed.String()
}
