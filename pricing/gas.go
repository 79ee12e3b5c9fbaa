package pricing

import (
	"github.com/pkg/errors"
)

const (
	// transferGasLimit is the gas of a plain value transfer.
	transferGasLimit = 21000

	gweiPerEther = 1e9
)

// gasEndpoints are tried in order. Both render a "fast" gas price that can be
// read as gwei after scaling.
var gasEndpoints = []struct {
	url   string
	path  string
	scale float64
}{
	// ethgasstation reports tenths of gwei.
	{"https://ethgasstation.info/api/ethgasAPI.json", "fast", 0.1},
	// etherscan's keyless gastracker reports gwei directly.
	{"https://api.etherscan.io/api?module=gastracker&action=gasoracle", "result.FastGasPrice", 1},
}

// estimateEthereumTransferFee returns the ETH cost of a standard transfer at
// current fast gas prices.
func estimateEthereumTransferFee() (float64, error) {
	var lastErr error
	for _, endpoint := range gasEndpoints {
		result, err := fetchJSON(endpoint.url)
		if err != nil {
			lastErr = err
			continue
		}
		gwei := result.Get(endpoint.path).Float() * endpoint.scale
		if gwei <= 0 {
			lastErr = errors.Errorf("gas endpoint returned no price")
			continue
		}
		return gwei * transferGasLimit / gweiPerEther, nil
	}
	return 0, errors.Wrap(lastErr, "every gas endpoint failed")
}
