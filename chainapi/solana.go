package chainapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dluxio/hiveonboard/chainparams"
)

const (
	lamportsPerSol = 1e9

	// memoProgramID is the SPL memo program.
	memoProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

	// finalizedConfirmations is substituted when the RPC reports a
	// finalized signature, whose confirmation counter is null.
	finalizedConfirmations = 32
)

// solanaClient reads a Solana JSON-RPC node.
type solanaClient struct {
	params *chainparams.Params
	rpcURL string
}

func newSolanaClient(params *chainparams.Params, rpcURL string) *solanaClient {
	return &solanaClient{params: params, rpcURL: rpcURL}
}

// Currency implements Client.
func (c *solanaClient) Currency() chainparams.Currency {
	return c.params.Currency
}

// rpcCall performs one JSON-RPC request against the configured node.
func (c *solanaClient) rpcCall(method string, params interface{}) (gjson.Result, error) {
	requestBody, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "failed to marshal %s request", method)
	}

	client := &http.Client{Timeout: requestTimeout}
	response, err := client.Post(c.rpcURL, "application/json", bytes.NewReader(requestBody))
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "solana RPC unavailable for %s", method)
	}
	defer response.Body.Close()

	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "failed to read solana RPC response")
	}
	parsed := gjson.ParseBytes(body)
	if rpcError := parsed.Get("error"); rpcError.Exists() {
		return gjson.Result{}, errors.Errorf("solana RPC error on %s: %s",
			method, rpcError.Get("message").String())
	}
	return parsed.Get("result"), nil
}

// GetTransaction implements Client.
func (c *solanaClient) GetTransaction(hash string) (*Tx, error) {
	result, err := c.rpcCall("getTransaction", []interface{}{
		hash,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	})
	if err != nil {
		return nil, err
	}
	if !result.Exists() || result.Type.String() == "Null" {
		return nil, nil
	}

	tx := &Tx{
		Hash:        hash,
		BlockHeight: result.Get("slot").Int(),
		Timestamp:   time.Unix(result.Get("blockTime").Int(), 0).UTC(),
	}

	// The largest positive balance delta is the transfer destination. The
	// matcher re-checks the exact recipient via AmountTo.
	accountKeys := result.Get("transaction.message.accountKeys").Array()
	preBalances := result.Get("meta.preBalances").Array()
	postBalances := result.Get("meta.postBalances").Array()
	for i := range accountKeys {
		if i >= len(preBalances) || i >= len(postBalances) {
			break
		}
		delta := postBalances[i].Int() - preBalances[i].Int()
		if delta <= 0 {
			continue
		}
		amount := float64(delta) / lamportsPerSol
		tx.AllOutputs = append(tx.AllOutputs, Output{
			Address: accountKeys[i].Get("pubkey").String(),
			Amount:  amount,
		})
		if amount > tx.Amount {
			tx.Amount = amount
			tx.To = accountKeys[i].Get("pubkey").String()
		}
	}

	if memo := extractMemo(result); memo != "" {
		tx.Memo = &memo
	}

	confirmations, err := c.signatureConfirmations(hash)
	if err != nil {
		return nil, err
	}
	tx.Confirmations = confirmations
	return tx, nil
}

func (c *solanaClient) signatureConfirmations(hash string) (int64, error) {
	result, err := c.rpcCall("getSignatureStatuses", []interface{}{
		[]string{hash},
		map[string]interface{}{"searchTransactionHistory": true},
	})
	if err != nil {
		return 0, err
	}
	status := result.Get("value.0")
	if !status.Exists() || status.Type.String() == "Null" {
		return 0, nil
	}
	if status.Get("confirmationStatus").String() == "finalized" {
		return finalizedConfirmations, nil
	}
	return status.Get("confirmations").Int(), nil
}

// extractMemo pulls the memo-program instruction of a parsed transaction.
// jsonParsed encoding decodes spl-memo payloads in place; raw instructions
// fall back to base64 decoding.
func extractMemo(result gjson.Result) string {
	for _, instruction := range result.Get("transaction.message.instructions").Array() {
		if instruction.Get("program").String() == "spl-memo" {
			return instruction.Get("parsed").String()
		}
		if instruction.Get("programId").String() != memoProgramID {
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(instruction.Get("data").String())
		if err != nil {
			continue
		}
		return string(payload)
	}
	return ""
}

// GetAddressTransactions implements Client.
func (c *solanaClient) GetAddressTransactions(address string, since time.Time) ([]*Tx, error) {
	result, err := c.rpcCall("getSignaturesForAddress", []interface{}{
		address,
		map[string]interface{}{"limit": 25},
	})
	if err != nil {
		return nil, err
	}

	transactions := []*Tx{}
	for _, signature := range result.Array() {
		if signature.Get("err").Exists() && signature.Get("err").Type.String() != "Null" {
			continue
		}
		blockTime := time.Unix(signature.Get("blockTime").Int(), 0).UTC()
		if !blockTime.After(since) {
			continue
		}

		tx, err := c.GetTransaction(signature.Get("signature").String())
		if err != nil {
			return nil, err
		}
		if tx == nil || tx.AmountTo(address) <= 0 {
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}
