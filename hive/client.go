package hive

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dluxio/hiveonboard/logger"
)

var log = logger.Logger("HIVE")

// requestTimeout bounds every call to the Hive node.
const requestTimeout = 10 * time.Second

// Client is a minimal JSON-RPC client against a Hive API node.
type Client struct {
	nodeURL    string
	httpClient *http.Client
}

// NewClient builds a client for the given node URL.
func NewClient(nodeURL string) *Client {
	return &Client{
		nodeURL:    nodeURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// RPCError is a structured error returned by the node, kept separate from
// transport errors so broadcast rejections can be recorded verbatim.
type RPCError struct {
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return e.Message
}

// call performs one JSON-RPC request and returns the raw result.
func (c *Client) call(method string, params interface{}) (gjson.Result, error) {
	requestBody, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "failed to marshal %s request", method)
	}

	response, err := c.httpClient.Post(c.nodeURL, "application/json", bytes.NewReader(requestBody))
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "hive node unavailable for %s", method)
	}
	defer response.Body.Close()

	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "failed to read %s response", method)
	}

	parsed := gjson.ParseBytes(body)
	if rpcError := parsed.Get("error"); rpcError.Exists() {
		return gjson.Result{}, &RPCError{
			Code:    rpcError.Get("code").Int(),
			Message: rpcError.Get("message").String(),
		}
	}
	return parsed.Get("result"), nil
}

// GlobalProperties is the subset of dynamic global properties the service
// anchors transactions with.
type GlobalProperties struct {
	HeadBlockNumber uint32
	HeadBlockID     string
	Time            time.Time
}

// DynamicGlobalProperties fetches the chain head state.
func (c *Client) DynamicGlobalProperties() (*GlobalProperties, error) {
	result, err := c.call("condenser_api.get_dynamic_global_properties", []interface{}{})
	if err != nil {
		return nil, err
	}

	blockTime, err := time.Parse(expirationFormat, result.Get("time").String())
	if err != nil {
		return nil, errors.Wrap(err, "malformed head block time")
	}
	return &GlobalProperties{
		HeadBlockNumber: uint32(result.Get("head_block_number").Uint()),
		HeadBlockID:     result.Get("head_block_id").String(),
		Time:            blockTime.UTC(),
	}, nil
}

// Account is the subset of on-chain account state the orchestrator reads.
type Account struct {
	Name                   string
	Created                time.Time
	PendingClaimedAccounts int
}

// GetAccount fetches an account, or (nil, nil) when it does not exist.
func (c *Client) GetAccount(name string) (*Account, error) {
	result, err := c.call("condenser_api.get_accounts", []interface{}{[]string{name}})
	if err != nil {
		return nil, err
	}
	accounts := result.Array()
	if len(accounts) == 0 {
		return nil, nil
	}

	raw := accounts[0]
	created, err := time.Parse(expirationFormat, raw.Get("created").String())
	if err != nil {
		return nil, errors.Wrapf(err, "malformed created time for account %s", name)
	}
	return &Account{
		Name:                   raw.Get("name").String(),
		Created:                created.UTC(),
		PendingClaimedAccounts: int(raw.Get("pending_claimed_accounts").Int()),
	}, nil
}

// AccountExists reports whether a username is taken on chain.
func (c *Client) AccountExists(name string) (bool, error) {
	account, err := c.GetAccount(name)
	if err != nil {
		return false, err
	}
	return account != nil, nil
}

// ResourceCredits returns the current RC mana of an account.
func (c *Client) ResourceCredits(name string) (int64, error) {
	result, err := c.call("rc_api.find_rc_accounts", map[string]interface{}{
		"accounts": []string{name},
	})
	if err != nil {
		return 0, err
	}
	rcAccounts := result.Get("rc_accounts").Array()
	if len(rcAccounts) == 0 {
		return 0, errors.Errorf("no RC account found for %s", name)
	}

	// current_mana regenerates linearly between writes; the raw value is
	// good enough for claim budgeting.
	return rcAccounts[0].Get("rc_manabar.current_mana").Int(), nil
}

// MedianHistoryPrice returns the node's HIVE/HBD median price in USD terms
// (HBD is treated as 1 USD). Used as a price-feed fallback.
func (c *Client) MedianHistoryPrice() (float64, error) {
	result, err := c.call("condenser_api.get_current_median_history_price", []interface{}{})
	if err != nil {
		return 0, err
	}

	base, err := assetAmount(result.Get("base").String())
	if err != nil {
		return 0, err
	}
	quote, err := assetAmount(result.Get("quote").String())
	if err != nil {
		return 0, err
	}
	if quote == 0 {
		return 0, errors.New("median history price has zero quote")
	}
	return base / quote, nil
}

// BroadcastResult is the node's response to a synchronous broadcast.
type BroadcastResult struct {
	TxID     string
	BlockNum int64
}

// Broadcast signs nothing; it submits an already signed transaction and
// waits for inclusion.
func (c *Client) Broadcast(tx *Transaction) (*BroadcastResult, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	result, err := c.call("condenser_api.broadcast_transaction_synchronous",
		[]interface{}{json.RawMessage(payload)})
	if err != nil {
		return nil, err
	}

	broadcastResult := &BroadcastResult{
		TxID:     result.Get("id").String(),
		BlockNum: result.Get("block_num").Int(),
	}
	log.Debugf("Broadcast transaction %s in block %d", broadcastResult.TxID, broadcastResult.BlockNum)
	return broadcastResult, nil
}

// assetAmount parses the numeric part of a textual asset like "0.233 HBD".
func assetAmount(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, errors.Errorf("malformed asset %q", s)
	}
	amount, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.Errorf("malformed asset amount %q", s)
	}
	return amount, nil
}
