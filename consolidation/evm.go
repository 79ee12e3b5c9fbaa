package consolidation

import (
	"fmt"
	"io/ioutil"
	"math/big"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dluxio/hiveonboard/chainparams"
)

const transferGasLimit = 21000

// evmNetwork carries the per-chain constants of an Etherscan-family network.
type evmNetwork struct {
	baseURL string
	chainID *big.Int
}

func (m *Manager) evmNetwork(currency chainparams.Currency) (*evmNetwork, string, error) {
	switch currency {
	case chainparams.ETH:
		return &evmNetwork{"https://api.etherscan.io/api", big.NewInt(1)}, m.cfg.EtherscanAPIKey, nil
	case chainparams.BNB:
		return &evmNetwork{"https://api.bscscan.com/api", big.NewInt(56)}, m.cfg.BscScanAPIKey, nil
	case chainparams.MATIC:
		return &evmNetwork{"https://api.polygonscan.com/api", big.NewInt(137)}, m.cfg.PolygonScanAPIKey, nil
	}
	return nil, "", errors.Errorf("currency %s is not an EVM network", currency)
}

// sweepEVM drains each source address with its own transaction; account-model
// chains cannot merge inputs. The first hash returned is canonical.
func (m *Manager) sweepEVM(params *chainparams.Params, sources []*Source, plan *Plan) ([]string, error) {
	network, apiKey, err := m.evmNetwork(params.Currency)
	if err != nil {
		return nil, err
	}
	multiplier, err := priorityMultiplier(plan.Priority)
	if err != nil {
		return nil, err
	}

	gasPrice, err := network.gasPrice(apiKey)
	if err != nil {
		return nil, err
	}
	scaled := new(big.Float).Mul(new(big.Float).SetInt(gasPrice), big.NewFloat(multiplier))
	gasPrice, _ = scaled.Int(nil)
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(transferGasLimit))

	destination := common.HexToAddress(plan.DestinationAddress)
	hashes := []string{}
	for _, source := range sources {
		balance, err := network.balance(source.Address.Address, apiKey)
		if err != nil {
			return nil, err
		}
		value := new(big.Int).Sub(balance, gasCost)
		if value.Sign() <= 0 {
			log.Warnf("Skipping %s: balance %s does not cover gas", source.Address.Address, balance)
			continue
		}

		nonce, err := network.nonce(source.Address.Address, apiKey)
		if err != nil {
			return nil, err
		}

		rawKey, err := m.vault.PrivateKey(source.Address)
		if err != nil {
			return nil, err
		}
		privateKey, err := ethcrypto.ToECDSA(rawKey)
		if err != nil {
			return nil, errors.Wrap(err, "malformed stored private key")
		}

		tx := types.NewTransaction(nonce, destination, value, transferGasLimit, gasPrice, nil)
		signed, err := types.SignTx(tx, types.NewEIP155Signer(network.chainID), privateKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to sign transaction")
		}
		rawTx, err := signed.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode transaction")
		}

		hash, err := network.sendRawTransaction(hexutil.Encode(rawTx), apiKey)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}

	if len(hashes) == 0 {
		return nil, errors.New("no source address held enough to cover gas")
	}
	return hashes, nil
}

func (n *evmNetwork) balance(address, apiKey string) (*big.Int, error) {
	result, err := n.get(fmt.Sprintf(
		"%s?module=account&action=balance&address=%s&tag=latest&apikey=%s",
		n.baseURL, address, apiKey))
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(result.Get("result").String(), 10)
	if !ok {
		return nil, errors.Errorf("malformed balance of %s", address)
	}
	return balance, nil
}

func (n *evmNetwork) gasPrice(apiKey string) (*big.Int, error) {
	result, err := n.get(fmt.Sprintf(
		"%s?module=proxy&action=eth_gasPrice&apikey=%s", n.baseURL, apiKey))
	if err != nil {
		return nil, err
	}
	gasPrice, err := hexutil.DecodeBig(result.Get("result").String())
	if err != nil {
		return nil, errors.Wrap(err, "malformed gas price")
	}
	return gasPrice, nil
}

func (n *evmNetwork) nonce(address, apiKey string) (uint64, error) {
	result, err := n.get(fmt.Sprintf(
		"%s?module=proxy&action=eth_getTransactionCount&address=%s&tag=latest&apikey=%s",
		n.baseURL, address, apiKey))
	if err != nil {
		return 0, err
	}
	nonce, err := hexutil.DecodeUint64(result.Get("result").String())
	if err != nil {
		return 0, errors.Wrap(err, "malformed nonce")
	}
	return nonce, nil
}

func (n *evmNetwork) sendRawTransaction(rawTxHex, apiKey string) (string, error) {
	result, err := n.get(fmt.Sprintf(
		"%s?module=proxy&action=eth_sendRawTransaction&hex=%s&apikey=%s",
		n.baseURL, url.QueryEscape(rawTxHex), apiKey))
	if err != nil {
		return "", err
	}
	if rpcError := result.Get("error"); rpcError.Exists() {
		return "", errors.Errorf("broadcast rejected: %s", rpcError.Get("message").String())
	}
	hash := result.Get("result").String()
	if hash == "" {
		return "", errors.New("broadcast returned no transaction hash")
	}
	return hash, nil
}

func (n *evmNetwork) get(rawURL string) (gjson.Result, error) {
	client := &http.Client{Timeout: httpTimeout}
	response, err := client.Get(rawURL)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "EVM API request failed")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return gjson.Result{}, errors.Errorf("EVM API returned status %d", response.StatusCode)
	}
	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "failed to read EVM API response")
	}
	return gjson.ParseBytes(body), nil
}
