package vault

import (
	"strings"
	"testing"

	"github.com/dluxio/hiveonboard/chainparams"
)

const testMasterSeed = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(testMasterSeed, testEncryptionKey)
	if err != nil {
		t.Fatalf("New failed: %s", err)
	}
	return v
}

func TestSeedFromMaterial(t *testing.T) {
	if _, err := seedFromMaterial(testMasterSeed); err != nil {
		t.Errorf("rejected a 64-hex-character seed: %s", err)
	}
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon about"
	if _, err := seedFromMaterial(mnemonic); err != nil {
		t.Errorf("rejected a valid BIP39 mnemonic: %s", err)
	}
	if _, err := seedFromMaterial("not a seed"); err == nil {
		t.Error("accepted material that is neither hex nor a mnemonic")
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	v := testVault(t)
	for _, params := range chainparams.Monitored() {
		first, err := v.deriveKey(params, 7)
		if err != nil {
			t.Fatalf("%s: deriveKey failed: %s", params.Currency, err)
		}
		second, err := v.deriveKey(params, 7)
		if err != nil {
			t.Fatalf("%s: deriveKey failed: %s", params.Currency, err)
		}
		if first.address != second.address {
			t.Errorf("%s: index 7 derived two addresses: %s and %s",
				params.Currency, first.address, second.address)
		}

		next, err := v.deriveKey(params, 8)
		if err != nil {
			t.Fatalf("%s: deriveKey failed: %s", params.Currency, err)
		}
		if next.address == first.address {
			t.Errorf("%s: indexes 7 and 8 derived the same address %s",
				params.Currency, first.address)
		}
	}
}

func TestDeriveKeyAddressFormats(t *testing.T) {
	v := testVault(t)

	btcParams, _ := chainparams.Get(chainparams.BTC)
	btc, err := v.deriveKey(btcParams, 0)
	if err != nil {
		t.Fatalf("BTC derivation failed: %s", err)
	}
	if !strings.HasPrefix(btc.address, "bc1") {
		t.Errorf("BTC address %s is not bech32", btc.address)
	}
	if btc.path != "m/84'/0'/0'/0/0" {
		t.Errorf("BTC path is %s, want m/84'/0'/0'/0/0", btc.path)
	}
	if len(btc.privateKey) != 32 {
		t.Errorf("BTC private key is %d bytes, want 32", len(btc.privateKey))
	}

	ethParams, _ := chainparams.Get(chainparams.ETH)
	eth, err := v.deriveKey(ethParams, 0)
	if err != nil {
		t.Fatalf("ETH derivation failed: %s", err)
	}
	if !strings.HasPrefix(eth.address, "0x") || len(eth.address) != 42 {
		t.Errorf("ETH address %s is not a 20-byte hex address", eth.address)
	}
	if eth.address != strings.ToLower(eth.address) {
		t.Errorf("ETH address %s is not lowercased", eth.address)
	}

	solParams, _ := chainparams.Get(chainparams.SOL)
	sol, err := v.deriveKey(solParams, 0)
	if err != nil {
		t.Fatalf("SOL derivation failed: %s", err)
	}
	if len(sol.privateKey) != 64 {
		t.Errorf("SOL private key is %d bytes, want 64", len(sol.privateKey))
	}
	if sol.path != "m/44'/501'/0'/0'" {
		t.Errorf("SOL path is %s, want m/44'/501'/0'/0'", sol.path)
	}
}

func TestDeriveKeyEVMChainsShareTheScheme(t *testing.T) {
	v := testVault(t)
	ethParams, _ := chainparams.Get(chainparams.ETH)
	bnbParams, _ := chainparams.Get(chainparams.BNB)

	eth, err := v.deriveKey(ethParams, 3)
	if err != nil {
		t.Fatalf("ETH derivation failed: %s", err)
	}
	bnb, err := v.deriveKey(bnbParams, 3)
	if err != nil {
		t.Fatalf("BNB derivation failed: %s", err)
	}
	if eth.address != bnb.address {
		t.Errorf("ETH and BNB share the derivation path but derived %s and %s",
			eth.address, bnb.address)
	}
}
