package consolidation

import (
	"math"
	"testing"

	"github.com/dluxio/hiveonboard/chainparams"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestPriorityMultiplier(t *testing.T) {
	tests := []struct {
		priority   string
		multiplier float64
		valid      bool
	}{
		{"low", 0.5, true},
		{"medium", 1.0, true},
		{"high", 2.0, true},
		{"normal", 0, false},
		{"urgent", 0, false},
		{"", 0, false},
	}
	for _, test := range tests {
		multiplier, err := priorityMultiplier(test.priority)
		if test.valid {
			if err != nil {
				t.Errorf("priorityMultiplier(%q) failed: %s", test.priority, err)
				continue
			}
			if multiplier != test.multiplier {
				t.Errorf("priorityMultiplier(%q) = %v, want %v",
					test.priority, multiplier, test.multiplier)
			}
		} else if err == nil {
			t.Errorf("priorityMultiplier(%q) accepted an unknown priority", test.priority)
		}
	}
}

func TestEstimateFee(t *testing.T) {
	btc, _ := chainparams.Get(chainparams.BTC)

	// Base fee 0.0001 BTC, five inputs scale it by 1.5.
	if got := estimateFee(btc, 5, 1.0); !almostEqual(got, 0.00015) {
		t.Errorf("normal fee for 5 sources = %v, want 0.00015", got)
	}
	if got := estimateFee(btc, 5, 2.0); !almostEqual(got, 0.0003) {
		t.Errorf("high fee for 5 sources = %v, want 0.0003", got)
	}
	if got := estimateFee(btc, 5, 0.5); !almostEqual(got, 0.000075) {
		t.Errorf("low-priority fee for 5 sources = %v, want 0.000075", got)
	}
	if got := estimateFee(btc, 0, 1.0); !almostEqual(got, 0.0001) {
		t.Errorf("fee for 0 sources = %v, want the base fee", got)
	}

	// More inputs always cost more at the same priority.
	if estimateFee(btc, 20, 1.0) <= estimateFee(btc, 10, 1.0) {
		t.Error("fee estimate does not grow with the input count")
	}
}

func TestNewPlanID(t *testing.T) {
	first, err := newPlanID()
	if err != nil {
		t.Fatalf("newPlanID failed: %s", err)
	}
	second, err := newPlanID()
	if err != nil {
		t.Fatalf("newPlanID failed: %s", err)
	}
	if len(first) != 32 {
		t.Errorf("plan id is %d characters, want 32", len(first))
	}
	if first == second {
		t.Error("two plan ids collided")
	}
}
