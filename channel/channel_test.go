package channel

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/dbmodels"
)

func liveChannel(status dbmodels.ChannelStatus, confirmations int64) *dbmodels.PaymentChannel {
	now := time.Now().UTC()
	return &dbmodels.PaymentChannel{
		ChannelID:     "abc123",
		Username:      "alice",
		CryptoType:    string(chainparams.MATIC),
		Status:        status,
		Confirmations: confirmations,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Hour),
	}
}

func TestRenderStatusProgress(t *testing.T) {
	engine := &Engine{}

	tests := []struct {
		name          string
		status        dbmodels.ChannelStatus
		confirmations int64
		progress      int
	}{
		{"pending", dbmodels.ChannelStatusPending, 0, 10},
		{"confirming start", dbmodels.ChannelStatusConfirming, 0, 25},
		{"confirming halfway", dbmodels.ChannelStatusConfirming, 5, 50},
		{"confirming capped", dbmodels.ChannelStatusConfirming, 40, 75},
		{"confirmed", dbmodels.ChannelStatusConfirmed, 10, 85},
		{"completed", dbmodels.ChannelStatusCompleted, 10, 100},
		{"consolidated", dbmodels.ChannelStatusConsolidated, 10, 100},
	}
	for _, test := range tests {
		view := engine.RenderStatus(liveChannel(test.status, test.confirmations))
		if view.ProgressPercent != test.progress {
			t.Errorf("%s: progress is %d, want %d", test.name, view.ProgressPercent, test.progress)
		}
		if view.EffectiveStatus != test.status {
			t.Errorf("%s: effective status is %s, want %s", test.name, view.EffectiveStatus, test.status)
		}
		// MATIC requires 10 confirmations.
		if view.RequiredConfirmations != 10 {
			t.Errorf("%s: required confirmations is %d, want 10",
				test.name, view.RequiredConfirmations)
		}
		if view.Message == "" {
			t.Errorf("%s: empty status message", test.name)
		}
	}
}

func TestRenderStatusSurfacesExpiryWithoutMutation(t *testing.T) {
	engine := &Engine{}
	channel := liveChannel(dbmodels.ChannelStatusPending, 0)
	channel.ExpiresAt = time.Now().Add(-time.Minute)

	view := engine.RenderStatus(channel)
	if view.EffectiveStatus != dbmodels.ChannelStatusExpired {
		t.Errorf("effective status is %s, want expired; view: %s",
			view.EffectiveStatus, spew.Sdump(view))
	}
	// The row itself is untouched; the sweep owns the transition.
	if channel.Status != dbmodels.ChannelStatusPending {
		t.Errorf("channel row was mutated to %s", channel.Status)
	}
}

func TestRenderStatusExpiryOnlyAppliesToPending(t *testing.T) {
	engine := &Engine{}
	channel := liveChannel(dbmodels.ChannelStatusConfirming, 1)
	channel.ExpiresAt = time.Now().Add(-time.Minute)

	view := engine.RenderStatus(channel)
	if view.EffectiveStatus != dbmodels.ChannelStatusConfirming {
		t.Errorf("a confirming channel past its deadline rendered as %s", view.EffectiveStatus)
	}
}

func TestMemoCapable(t *testing.T) {
	tests := []struct {
		currency chainparams.Currency
		capable  bool
	}{
		{chainparams.BTC, true},
		{chainparams.SOL, true},
		{chainparams.ETH, false},
		{chainparams.BNB, false},
		{chainparams.MATIC, false},
	}
	for _, test := range tests {
		if got := memoCapable(test.currency); got != test.capable {
			t.Errorf("memoCapable(%s) = %t, want %t", test.currency, got, test.capable)
		}
	}
}

func TestNewChannelID(t *testing.T) {
	first, err := newChannelID()
	if err != nil {
		t.Fatalf("newChannelID failed: %s", err)
	}
	if len(first) != 32 {
		t.Errorf("channel id is %d characters, want 32", len(first))
	}
	if _, err := hex.DecodeString(first); err != nil {
		t.Errorf("channel id %q is not hex", first)
	}

	second, err := newChannelID()
	if err != nil {
		t.Fatalf("newChannelID failed: %s", err)
	}
	if first == second {
		t.Error("two channel ids collided")
	}
}
