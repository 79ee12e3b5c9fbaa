package chainapi

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/chainparams"
)

// evmClient reads an Etherscan-family HTTP API. Etherscan, BscScan, and
// PolygonScan share the same surface, so ETH, BNB, and MATIC differ only in
// base URL and API key.
type evmClient struct {
	params  *chainparams.Params
	baseURL string
	apiKey  string
}

func newEVMClient(chainParams *chainparams.Params, baseURL, apiKey string) *evmClient {
	return &evmClient{params: chainParams, baseURL: baseURL, apiKey: apiKey}
}

// Currency implements Client.
func (c *evmClient) Currency() chainparams.Currency {
	return c.params.Currency
}

// GetTransaction implements Client.
func (c *evmClient) GetTransaction(hash string) (*Tx, error) {
	result, err := httpGetJSON(fmt.Sprintf(
		"%s?module=proxy&action=eth_getTransactionByHash&txhash=%s&apikey=%s",
		c.baseURL, hash, c.apiKey))
	if err != nil {
		return nil, err
	}
	rawTx := result.Get("result")
	if !rawTx.Exists() || rawTx.Type.String() == "Null" {
		return nil, nil
	}

	tx := &Tx{
		Hash: rawTx.Get("hash").String(),
		To:   strings.ToLower(rawTx.Get("to").String()),
	}

	value, err := hexutil.DecodeBig(rawTx.Get("value").String())
	if err != nil {
		return nil, errors.Wrapf(err, "malformed value in transaction %s", hash)
	}
	tx.Amount = weiToFloat(value)

	blockNumberHex := rawTx.Get("blockNumber").String()
	if blockNumberHex == "" || blockNumberHex == "null" {
		// Still in the mempool.
		tx.Timestamp = time.Now().UTC()
		return tx, nil
	}
	blockNumber, err := hexutil.DecodeUint64(blockNumberHex)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed block number in transaction %s", hash)
	}
	tx.BlockHeight = int64(blockNumber)

	tipNumber, err := c.blockNumber()
	if err != nil {
		return nil, err
	}
	tx.Confirmations = tipNumber - tx.BlockHeight + 1

	timestamp, err := c.blockTimestamp(blockNumberHex)
	if err != nil {
		return nil, err
	}
	tx.Timestamp = timestamp
	return tx, nil
}

func (c *evmClient) blockNumber() (int64, error) {
	result, err := httpGetJSON(fmt.Sprintf(
		"%s?module=proxy&action=eth_blockNumber&apikey=%s", c.baseURL, c.apiKey))
	if err != nil {
		return 0, err
	}
	number, err := hexutil.DecodeUint64(result.Get("result").String())
	if err != nil {
		return 0, errors.Wrap(err, "malformed tip block number")
	}
	return int64(number), nil
}

func (c *evmClient) blockTimestamp(blockNumberHex string) (time.Time, error) {
	result, err := httpGetJSON(fmt.Sprintf(
		"%s?module=proxy&action=eth_getBlockByNumber&tag=%s&boolean=false&apikey=%s",
		c.baseURL, blockNumberHex, c.apiKey))
	if err != nil {
		return time.Time{}, err
	}
	timestamp, err := hexutil.DecodeUint64(result.Get("result.timestamp").String())
	if err != nil {
		return time.Time{}, errors.Wrap(err, "malformed block timestamp")
	}
	return time.Unix(int64(timestamp), 0).UTC(), nil
}

// GetAddressTransactions implements Client. The account txlist endpoint
// carries timestamps and confirmation counts directly.
func (c *evmClient) GetAddressTransactions(address string, since time.Time) ([]*Tx, error) {
	result, err := httpGetJSON(fmt.Sprintf(
		"%s?module=account&action=txlist&address=%s&sort=desc&apikey=%s",
		c.baseURL, address, c.apiKey))
	if err != nil {
		return nil, err
	}
	if result.Get("status").String() == "0" && result.Get("message").String() != "No transactions found" {
		return nil, errors.Errorf("%s txlist error: %s", c.params.Currency, result.Get("message").String())
	}

	lowerAddress := strings.ToLower(address)
	transactions := []*Tx{}
	for _, rawTx := range result.Get("result").Array() {
		if strings.ToLower(rawTx.Get("to").String()) != lowerAddress {
			continue
		}
		// A reverted transfer never credits the address.
		if rawTx.Get("isError").String() == "1" {
			continue
		}

		timestamp := time.Unix(rawTx.Get("timeStamp").Int(), 0).UTC()
		if !timestamp.After(since) {
			continue
		}

		value, ok := new(big.Int).SetString(rawTx.Get("value").String(), 10)
		if !ok {
			continue
		}
		transactions = append(transactions, &Tx{
			Hash:          rawTx.Get("hash").String(),
			Amount:        weiToFloat(value),
			To:            lowerAddress,
			Confirmations: rawTx.Get("confirmations").Int(),
			BlockHeight:   rawTx.Get("blockNumber").Int(),
			Timestamp:     timestamp,
		})
	}
	return transactions, nil
}

// weiToFloat converts a wei amount to whole coins.
func weiToFloat(wei *big.Int) float64 {
	value := new(big.Float).SetInt(wei)
	value.Quo(value, big.NewFloat(params.Ether))
	result, _ := value.Float64()
	return result
}
