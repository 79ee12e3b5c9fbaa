package controllers

import (
	"net/http"

	"github.com/dluxio/hiveonboard/apimodels"
	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/httpserverutils"
)

// GetPricing handles GET /pricing: the current quote table for every
// currency, plus the list of currencies payments are actually accepted in.
func (s *Services) GetPricing(_ *http.Request, _ map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	snapshot := s.Oracle.Latest()

	response := &apimodels.PricingResponse{
		HivePriceUSD:        snapshot.HivePriceUSD,
		AccountCreationCost: snapshot.BaseCostUSD,
		CryptoRates:         map[string]*apimodels.CryptoRate{},
		TransferCosts:       snapshot.TransferCosts,
		Fallback:            snapshot.Fallback,
		UpdatedAt:           snapshot.CreatedAt,
	}
	for currency, rate := range snapshot.CryptoRates {
		response.CryptoRates[currency] = &apimodels.CryptoRate{
			PriceUSD:               rate.PriceUSD,
			AmountNeeded:           rate.AmountNeeded,
			TransferFee:            rate.TransferFee,
			TotalAmount:            rate.TotalAmount,
			NetworkFeeSurchargeUSD: rate.NetworkFeeSurchargeUSD,
			FinalCostUSD:           rate.FinalCostUSD,
		}
	}
	for _, params := range chainparams.Monitored() {
		response.SupportedCurrencies = append(response.SupportedCurrencies, string(params.Currency))
	}
	return response, nil
}
