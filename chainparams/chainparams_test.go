package chainparams

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		currency Currency
		valid    bool
	}{
		{"BTC", BTC, true},
		{"btc", BTC, true},
		{" eth ", ETH, true},
		{"Sol", SOL, true},
		{"xmr", XMR, true},
		{"DOGE", "", false},
		{"", "", false},
	}
	for _, test := range tests {
		params, err := Parse(test.input)
		if test.valid {
			if err != nil {
				t.Errorf("Parse(%q) failed: %s", test.input, err)
				continue
			}
			if params.Currency != test.currency {
				t.Errorf("Parse(%q) = %s, want %s", test.input, params.Currency, test.currency)
			}
		} else if err == nil {
			t.Errorf("Parse(%q) accepted an unknown currency", test.input)
		}
	}
}

func TestMonitoredExcludesPricingOnlyCurrencies(t *testing.T) {
	for _, params := range Monitored() {
		if !params.MonitoringEnabled {
			t.Errorf("Monitored returned %s with monitoring disabled", params.Currency)
		}
		if params.Currency == XMR || params.Currency == DASH {
			t.Errorf("%s is pricing-only and must not be monitored", params.Currency)
		}
	}
	if len(Monitored()) != 5 {
		t.Errorf("Monitored returned %d currencies, want 5", len(Monitored()))
	}
	if len(All()) != 7 {
		t.Errorf("All returned %d currencies, want 7", len(All()))
	}
}

func TestMonitoredParamsAreComplete(t *testing.T) {
	for _, params := range Monitored() {
		if params.BlockTimeSeconds <= 0 {
			t.Errorf("%s has no poll cadence", params.Currency)
		}
		if params.RequiredConfirmations <= 0 {
			t.Errorf("%s has no confirmation threshold", params.Currency)
		}
		if params.DerivationPath == "" {
			t.Errorf("%s has no derivation path", params.Currency)
		}
		if params.AddressType == "" {
			t.Errorf("%s has no address type", params.Currency)
		}
		if params.DustMinimum <= 0 {
			t.Errorf("%s has no dust minimum", params.Currency)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	btc, _ := Get(BTC)
	if got := btc.FormatAmount(0.000147); got != "0.00014700" {
		t.Errorf("BTC FormatAmount = %q, want 0.00014700", got)
	}

	// 18-decimal chains are capped at 8 fractional digits.
	eth, _ := Get(ETH)
	if got := eth.FormatAmount(1.5); got != "1.50000000" {
		t.Errorf("ETH FormatAmount = %q, want 1.50000000", got)
	}
}
