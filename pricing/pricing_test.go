package pricing

import (
	"math"
	"testing"

	"github.com/dluxio/hiveonboard/chainparams"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestFallbackSnapshotQuoteMath(t *testing.T) {
	o := &Oracle{}
	snapshot := o.fallbackSnapshot()

	if !snapshot.Fallback {
		t.Error("fallback snapshot must be flagged as such")
	}
	if !almostEqual(snapshot.HivePriceUSD, 0.30) {
		t.Errorf("HIVE price is %v, want 0.30", snapshot.HivePriceUSD)
	}
	// 0.30 HIVE/USD x 3 HIVE fee x 1.5 margin.
	if !almostEqual(snapshot.BaseCostUSD, 1.35) {
		t.Errorf("base cost is %v, want 1.35", snapshot.BaseCostUSD)
	}

	rate, err := snapshot.Rate(chainparams.BTC)
	if err != nil {
		t.Fatalf("Rate(BTC) failed: %s", err)
	}
	// BTC at $50000 with a 0.0001 BTC transfer fee: $5 network fee, 20%
	// surcharge, so $2.35 total and 0.000047 BTC needed.
	if !almostEqual(rate.NetworkFeeSurchargeUSD, 1.0) {
		t.Errorf("BTC surcharge is %v, want 1.0", rate.NetworkFeeSurchargeUSD)
	}
	if !almostEqual(rate.FinalCostUSD, 2.35) {
		t.Errorf("BTC final cost is %v, want 2.35", rate.FinalCostUSD)
	}
	if !almostEqual(rate.AmountNeeded, 0.000047) {
		t.Errorf("BTC amount needed is %v, want 0.000047", rate.AmountNeeded)
	}
	if !almostEqual(rate.TotalAmount, 0.000147) {
		t.Errorf("BTC total amount is %v, want 0.000147", rate.TotalAmount)
	}
}

func TestFallbackSnapshotQuoteIdentity(t *testing.T) {
	o := &Oracle{}
	snapshot := o.fallbackSnapshot()

	for _, params := range chainparams.All() {
		rate, err := snapshot.Rate(params.Currency)
		if err != nil {
			t.Fatalf("Rate(%s) failed: %s", params.Currency, err)
		}
		if !almostEqual(rate.TotalAmount, round8(rate.AmountNeeded+rate.TransferFee)) {
			t.Errorf("%s: total %v != needed %v + fee %v",
				params.Currency, rate.TotalAmount, rate.AmountNeeded, rate.TransferFee)
		}
		if rate.AmountNeeded <= 0 {
			t.Errorf("%s: non-positive amount needed %v", params.Currency, rate.AmountNeeded)
		}
		if rate.FinalCostUSD < snapshot.BaseCostUSD {
			t.Errorf("%s: final cost %v below base cost %v",
				params.Currency, rate.FinalCostUSD, snapshot.BaseCostUSD)
		}
	}
}

func TestSnapshotRateUnknownCurrency(t *testing.T) {
	o := &Oracle{}
	snapshot := o.fallbackSnapshot()
	_, err := snapshot.Rate(chainparams.Currency("DOGE"))
	if err == nil {
		t.Error("Rate accepted an unknown currency")
	}
}

func TestRound8(t *testing.T) {
	tests := []struct {
		in, out float64
	}{
		{0.123456789, 0.12345679},
		{0.000000004, 0},
		{0.000000006, 0.00000001},
		{1.0, 1.0},
	}
	for _, test := range tests {
		if got := round8(test.in); !almostEqual(got, test.out) {
			t.Errorf("round8(%v) = %v, want %v", test.in, got, test.out)
		}
	}
}
