package pricing

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dluxio/hiveonboard/chainparams"
)

// currencyHive keys the HIVE price inside a PriceSource result. HIVE is not a
// deposit currency, so it lives outside the chainparams registry.
const currencyHive = chainparams.Currency("HIVE")

const (
	coinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	hiveCoinGeckoID  = "hive"

	requestTimeout = 10 * time.Second
)

// PriceSource fetches USD spot prices for a set of currencies plus HIVE.
type PriceSource interface {
	Prices(currencies []*chainparams.Params) (map[chainparams.Currency]float64, error)
}

// coinGeckoSource batches every currency into a single simple-price call.
type coinGeckoSource struct{}

// Prices implements PriceSource.
func (s *coinGeckoSource) Prices(currencies []*chainparams.Params) (
	map[chainparams.Currency]float64, error) {

	ids := []string{hiveCoinGeckoID}
	for _, params := range currencies {
		ids = append(ids, params.CoinGeckoID)
	}
	result, err := fetchJSON(fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		coinGeckoBaseURL, strings.Join(ids, ",")))
	if err != nil {
		return nil, err
	}

	prices := map[chainparams.Currency]float64{}
	if hivePrice := result.Get(hiveCoinGeckoID + ".usd").Float(); hivePrice > 0 {
		prices[currencyHive] = hivePrice
	}
	for _, params := range currencies {
		price := result.Get(params.CoinGeckoID + ".usd").Float()
		if price > 0 {
			prices[params.Currency] = price
		}
	}
	if len(prices) == 0 {
		return nil, errors.New("coingecko returned no usable prices")
	}
	return prices, nil
}

func fetchJSON(rawURL string) (gjson.Result, error) {
	client := &http.Client{Timeout: requestTimeout}
	response, err := client.Get(rawURL)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "price request failed")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return gjson.Result{}, errors.Errorf("price request returned status %d",
			response.StatusCode)
	}
	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "failed to read price response")
	}
	return gjson.ParseBytes(body), nil
}
