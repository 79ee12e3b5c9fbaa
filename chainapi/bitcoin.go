package chainapi

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dluxio/hiveonboard/chainparams"
)

const (
	blockstreamBaseURL = "https://blockstream.info/api"
	blockcypherBaseURL = "https://api.blockcypher.com/v1/btc/main"

	satoshisPerBitcoin = 1e8
)

// bitcoinClient reads the Blockstream esplora API with a BlockCypher
// fallback for transaction fetches.
type bitcoinClient struct {
	params         *chainparams.Params
	blockCypherKey string
}

func newBitcoinClient(params *chainparams.Params, blockCypherKey string) *bitcoinClient {
	return &bitcoinClient{params: params, blockCypherKey: blockCypherKey}
}

// Currency implements Client.
func (c *bitcoinClient) Currency() chainparams.Currency {
	return c.params.Currency
}

// GetTransaction implements Client.
func (c *bitcoinClient) GetTransaction(hash string) (*Tx, error) {
	tx, err := c.blockstreamTransaction(hash)
	if err == nil || err == errNotFound {
		return tx, nil
	}

	log.Debugf("Blockstream failed for %s, trying BlockCypher: %s", hash, err)
	tx, err = c.blockcypherTransaction(hash)
	if err == errNotFound {
		return nil, nil
	}
	return tx, err
}

func (c *bitcoinClient) blockstreamTransaction(hash string) (*Tx, error) {
	result, err := httpGetJSON(fmt.Sprintf("%s/tx/%s", blockstreamBaseURL, hash))
	if err != nil {
		return nil, err
	}

	tipHeight, err := c.blockstreamTipHeight()
	if err != nil {
		return nil, err
	}
	return c.normalizeBlockstreamTx(result, tipHeight), nil
}

func (c *bitcoinClient) blockstreamTipHeight() (int64, error) {
	result, err := httpGetJSON(fmt.Sprintf("%s/blocks/tip/height", blockstreamBaseURL))
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch tip height")
	}
	return result.Int(), nil
}

// normalizeBlockstreamTx reduces an esplora transaction to the shared shape.
// Every output is carried so the matcher can find a deposit in any position,
// and an OP_RETURN output becomes the memo.
func (c *bitcoinClient) normalizeBlockstreamTx(result gjson.Result, tipHeight int64) *Tx {
	tx := &Tx{
		Hash: result.Get("txid").String(),
	}

	if result.Get("status.confirmed").Bool() {
		tx.BlockHeight = result.Get("status.block_height").Int()
		tx.Confirmations = tipHeight - tx.BlockHeight + 1
		tx.Timestamp = time.Unix(result.Get("status.block_time").Int(), 0).UTC()
	} else {
		tx.Timestamp = time.Now().UTC()
	}

	for _, vout := range result.Get("vout").Array() {
		scriptType := vout.Get("scriptpubkey_type").String()
		if scriptType == "op_return" {
			if memo := decodeOpReturn(vout.Get("scriptpubkey_asm").String()); memo != "" {
				tx.Memo = &memo
			}
			continue
		}
		output := Output{
			Address:    vout.Get("scriptpubkey_address").String(),
			Amount:     float64(vout.Get("value").Int()) / satoshisPerBitcoin,
			ScriptType: scriptType,
		}
		tx.AllOutputs = append(tx.AllOutputs, output)
		tx.Amount += output.Amount
	}
	return tx
}

func (c *bitcoinClient) blockcypherTransaction(hash string) (*Tx, error) {
	rawURL := fmt.Sprintf("%s/txs/%s", blockcypherBaseURL, hash)
	if c.blockCypherKey != "" {
		rawURL += "?token=" + c.blockCypherKey
	}
	result, err := httpGetJSON(rawURL)
	if err != nil {
		return nil, err
	}

	tx := &Tx{
		Hash:          result.Get("hash").String(),
		Confirmations: result.Get("confirmations").Int(),
		BlockHeight:   result.Get("block_height").Int(),
	}
	if confirmed := result.Get("confirmed").String(); confirmed != "" {
		timestamp, err := time.Parse(time.RFC3339, confirmed)
		if err == nil {
			tx.Timestamp = timestamp.UTC()
		}
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	for _, vout := range result.Get("outputs").Array() {
		addresses := vout.Get("addresses").Array()
		if len(addresses) == 0 {
			continue
		}
		output := Output{
			Address:    addresses[0].String(),
			Amount:     float64(vout.Get("value").Int()) / satoshisPerBitcoin,
			ScriptType: vout.Get("script_type").String(),
		}
		tx.AllOutputs = append(tx.AllOutputs, output)
		tx.Amount += output.Amount
	}
	return tx, nil
}

// GetAddressTransactions implements Client.
func (c *bitcoinClient) GetAddressTransactions(address string, since time.Time) ([]*Tx, error) {
	result, err := httpGetJSON(fmt.Sprintf("%s/address/%s/txs", blockstreamBaseURL, address))
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tipHeight, err := c.blockstreamTipHeight()
	if err != nil {
		return nil, err
	}

	transactions := []*Tx{}
	for _, rawTx := range result.Array() {
		tx := c.normalizeBlockstreamTx(rawTx, tipHeight)
		if !tx.Timestamp.After(since) {
			continue
		}
		if tx.AmountTo(address) <= 0 {
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// decodeOpReturn extracts the pushed data of an OP_RETURN script rendered in
// esplora asm form ("OP_RETURN OP_PUSHBYTES_n <hex>").
func decodeOpReturn(asm string) string {
	fields := strings.Fields(asm)
	if len(fields) < 2 || fields[0] != "OP_RETURN" {
		return ""
	}
	payload, err := hex.DecodeString(fields[len(fields)-1])
	if err != nil {
		return ""
	}
	return string(payload)
}
