package consolidation

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dluxio/hiveonboard/chainparams"
)

const (
	blockstreamBaseURL = "https://blockstream.info/api"
	satoshisPerBitcoin = 1e8

	httpTimeout = 10 * time.Second
)

type utxo struct {
	txid   string
	vout   uint32
	value  int64
	source *Source
}

// sweepBitcoin spends every UTXO of every source address in a single
// transaction paying the destination.
func (m *Manager) sweepBitcoin(params *chainparams.Params, sources []*Source, plan *Plan) (string, error) {
	utxos, err := m.fetchUTXOs(sources)
	if err != nil {
		return "", err
	}
	if len(utxos) == 0 {
		return "", errors.New("source addresses hold no spendable outputs")
	}

	var totalIn int64
	msgTx := wire.NewMsgTx(2)
	for _, u := range utxos {
		txHash, err := chainhash.NewHashFromStr(u.txid)
		if err != nil {
			return "", errors.Wrapf(err, "malformed utxo txid %s", u.txid)
		}
		msgTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(txHash, u.vout), nil, nil))
		totalIn += u.value
	}

	feeSatoshis := int64(plan.EstimatedFee * satoshisPerBitcoin)
	if totalIn <= feeSatoshis {
		return "", errors.Errorf("inputs (%d sat) do not cover the fee (%d sat)", totalIn, feeSatoshis)
	}

	destination, err := btcutil.DecodeAddress(plan.DestinationAddress, &chaincfg.MainNetParams)
	if err != nil {
		return "", errors.Wrap(err, "invalid destination address")
	}
	destinationScript, err := txscript.PayToAddrScript(destination)
	if err != nil {
		return "", errors.Wrap(err, "failed to build destination script")
	}
	msgTx.AddTxOut(wire.NewTxOut(totalIn-feeSatoshis, destinationScript))

	err = m.signBitcoinInputs(msgTx, utxos)
	if err != nil {
		return "", err
	}

	var serialized bytes.Buffer
	err = msgTx.Serialize(&serialized)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize transaction")
	}
	return broadcastBitcoin(hex.EncodeToString(serialized.Bytes()))
}

// signBitcoinInputs produces a P2WPKH witness for every input with its source
// address's key.
func (m *Manager) signBitcoinInputs(msgTx *wire.MsgTx, utxos []*utxo) error {
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(utxos))
	scripts := make([][]byte, len(utxos))
	for i, u := range utxos {
		sourceAddress, err := btcutil.DecodeAddress(u.source.Address.Address, &chaincfg.MainNetParams)
		if err != nil {
			return errors.Wrapf(err, "malformed source address %s", u.source.Address.Address)
		}
		script, err := txscript.PayToAddrScript(sourceAddress)
		if err != nil {
			return errors.Wrap(err, "failed to build source script")
		}
		scripts[i] = script
		prevOuts[msgTx.TxIn[i].PreviousOutPoint] = wire.NewTxOut(u.value, script)
	}

	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(msgTx, fetcher)
	for i, u := range utxos {
		rawKey, err := m.vault.PrivateKey(u.source.Address)
		if err != nil {
			return err
		}
		privateKey, _ := btcec.PrivKeyFromBytes(rawKey)

		witness, err := txscript.WitnessSignature(msgTx, sigHashes, i, u.value,
			scripts[i], txscript.SigHashAll, privateKey, true)
		if err != nil {
			return errors.Wrapf(err, "failed to sign input %d", i)
		}
		msgTx.TxIn[i].Witness = witness
	}
	return nil
}

func (m *Manager) fetchUTXOs(sources []*Source) ([]*utxo, error) {
	utxos := []*utxo{}
	client := &http.Client{Timeout: httpTimeout}
	for _, source := range sources {
		response, err := client.Get(fmt.Sprintf("%s/address/%s/utxo",
			blockstreamBaseURL, source.Address.Address))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch utxos of %s", source.Address.Address)
		}
		body, err := ioutil.ReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read utxo response")
		}
		if response.StatusCode != http.StatusOK {
			return nil, errors.Errorf("utxo fetch returned status %d", response.StatusCode)
		}

		for _, raw := range gjson.ParseBytes(body).Array() {
			if !raw.Get("status.confirmed").Bool() {
				continue
			}
			utxos = append(utxos, &utxo{
				txid:   raw.Get("txid").String(),
				vout:   uint32(raw.Get("vout").Uint()),
				value:  raw.Get("value").Int(),
				source: source,
			})
		}
	}
	return utxos, nil
}

func broadcastBitcoin(rawTxHex string) (string, error) {
	client := &http.Client{Timeout: httpTimeout}
	response, err := client.Post(blockstreamBaseURL+"/tx", "text/plain",
		strings.NewReader(rawTxHex))
	if err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}
	defer response.Body.Close()

	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read broadcast response")
	}
	if response.StatusCode != http.StatusOK {
		return "", errors.Errorf("broadcast rejected: %s", strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}
