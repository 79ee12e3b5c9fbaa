package chainapi

import (
	"testing"
)

func TestTxAmountToSingleRecipient(t *testing.T) {
	tx := &Tx{Hash: "h", To: "addr1", Amount: 1.5}

	if got := tx.AmountTo("addr1"); got != 1.5 {
		t.Errorf("AmountTo(addr1) = %v, want 1.5", got)
	}
	if got := tx.AmountTo("addr2"); got != 0 {
		t.Errorf("AmountTo(addr2) = %v, want 0", got)
	}
	if !tx.PaysTo("addr1") || tx.PaysTo("addr2") {
		t.Error("PaysTo misreports the recipient")
	}
}

func TestTxAmountToSumsUTXOOutputs(t *testing.T) {
	// The deposit may be split across several outputs of one transaction.
	tx := &Tx{
		Hash: "h",
		AllOutputs: []Output{
			{Address: "deposit", Amount: 0.3},
			{Address: "change", Amount: 0.5},
			{Address: "deposit", Amount: 0.2},
		},
	}

	if got := tx.AmountTo("deposit"); got != 0.5 {
		t.Errorf("AmountTo(deposit) = %v, want 0.5", got)
	}
	if !tx.PaysTo("deposit") {
		t.Error("PaysTo(deposit) = false, want true")
	}
	if tx.PaysTo("stranger") {
		t.Error("PaysTo(stranger) = true, want false")
	}
}

func TestSanitizeURL(t *testing.T) {
	got := sanitizeURL("https://api.etherscan.io/api?module=proxy&apikey=SECRET")
	if got != "https://api.etherscan.io/api" {
		t.Errorf("sanitizeURL kept the query: %s", got)
	}
}
