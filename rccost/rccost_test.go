package rccost

import (
	"testing"
	"time"
)

func TestClaimAccountCostFallsBackToFloor(t *testing.T) {
	tracker := &Tracker{latest: map[string]*Cost{}}

	if got := tracker.ClaimAccountCost(); got != ClaimAccountFloor {
		t.Errorf("empty tracker returned %d, want the floor %d", got, ClaimAccountFloor)
	}

	tracker.latest[OpClaimAccount] = &Cost{OperationType: OpClaimAccount, RCNeeded: 0}
	if got := tracker.ClaimAccountCost(); got != ClaimAccountFloor {
		t.Errorf("zero beacon cost returned %d, want the floor %d", got, ClaimAccountFloor)
	}

	tracker.latest[OpClaimAccount] = &Cost{
		OperationType: OpClaimAccount,
		RCNeeded:      12_000_000_000_000,
		APITimestamp:  time.Now().UTC(),
	}
	if got := tracker.ClaimAccountCost(); got != 12_000_000_000_000 {
		t.Errorf("beacon cost returned %d, want 12000000000000", got)
	}
}

func TestCostReturnsNilForUnknownOperations(t *testing.T) {
	tracker := &Tracker{latest: map[string]*Cost{}}
	if cost := tracker.Cost("transfer_operation"); cost != nil {
		t.Errorf("unknown operation returned %+v, want nil", cost)
	}
}

func TestAllCostsCopies(t *testing.T) {
	tracker := &Tracker{latest: map[string]*Cost{
		OpClaimAccount: {OperationType: OpClaimAccount, RCNeeded: 1},
		"transfer":     {OperationType: "transfer", RCNeeded: 2},
	}}
	costs := tracker.AllCosts()
	if len(costs) != 2 {
		t.Errorf("AllCosts returned %d entries, want 2", len(costs))
	}
}
