package hive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

func TestHiveAsset(t *testing.T) {
	tests := []struct {
		amount float64
		text   string
	}{
		{3.0, "3.000 HIVE"},
		{0.001, "0.001 HIVE"},
		{0, "0.000 HIVE"},
		{12.3456, "12.346 HIVE"},
	}
	for _, test := range tests {
		got := HiveAsset(test.amount).String()
		if got != test.text {
			t.Errorf("HiveAsset(%v) = %q, want %q", test.amount, got, test.text)
		}
	}
}

func TestAssetMarshalJSON(t *testing.T) {
	serialized, err := json.Marshal(HiveAsset(3.0))
	if err != nil {
		t.Fatalf("Marshal failed: %s", err)
	}
	if string(serialized) != `"3.000 HIVE"` {
		t.Errorf("asset marshals as %s, want \"3.000 HIVE\"", serialized)
	}
}

func TestNewTransactionTaPoS(t *testing.T) {
	// ref_block_prefix is the little-endian uint32 at bytes 4..8 of the
	// block id.
	headBlockID := "00f0e1d2aabbccdd0000000000000000000000000000000000000000"
	tx, err := NewTransaction(0x12345678, headBlockID)
	if err != nil {
		t.Fatalf("NewTransaction failed: %s", err)
	}
	if tx.RefBlockNum != 0x5678 {
		t.Errorf("RefBlockNum is %#x, want 0x5678", tx.RefBlockNum)
	}
	if tx.RefBlockPrefix != 0xddccbbaa {
		t.Errorf("RefBlockPrefix is %#x, want 0xddccbbaa", tx.RefBlockPrefix)
	}

	if _, err := NewTransaction(1, "zzzz"); err == nil {
		t.Error("NewTransaction accepted a malformed block id")
	}
	if _, err := NewTransaction(1, "aabb"); err == nil {
		t.Error("NewTransaction accepted a too-short block id")
	}
}

func testAuthority(t *testing.T) Authority {
	t.Helper()
	publicKey, err := PublicKeyFromPrivate(testPrivateKey())
	if err != nil {
		t.Fatalf("PublicKeyFromPrivate failed: %s", err)
	}
	return SingleKeyAuthority(publicKey)
}

func testTransaction(t *testing.T) *Transaction {
	t.Helper()
	publicKey, err := PublicKeyFromPrivate(testPrivateKey())
	if err != nil {
		t.Fatalf("PublicKeyFromPrivate failed: %s", err)
	}
	op := &CreateClaimedAccountOperation{
		Creator:        "creator",
		NewAccountName: "newbie",
		Owner:          testAuthority(t),
		Active:         testAuthority(t),
		Posting:        testAuthority(t),
		MemoKey:        publicKey,
		JSONMetadata:   "{}",
	}
	tx, err := NewTransaction(1000, "000003e8aabbccdd00000000000000000000000000000000", op)
	if err != nil {
		t.Fatalf("NewTransaction failed: %s", err)
	}
	return tx
}

func TestTransactionSignProducesCanonicalRecoverableSignature(t *testing.T) {
	tx := testTransaction(t)
	privateKey := testPrivateKey()

	err := tx.Sign(privateKey)
	if err != nil {
		t.Fatalf("Sign failed: %s", err)
	}
	if len(tx.Signatures) != 1 {
		t.Fatalf("transaction carries %d signatures, want 1", len(tx.Signatures))
	}

	compact, err := hex.DecodeString(tx.Signatures[0])
	if err != nil {
		t.Fatalf("signature is not hex: %s", err)
	}
	if !isCanonicalSignature(compact) {
		t.Error("signature is not canonical")
	}

	// The digest must recover the signing key; the chain verifies exactly
	// this.
	digest, err := tx.Digest()
	if err != nil {
		t.Fatalf("Digest failed: %s", err)
	}
	recovered, compressed, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		t.Fatalf("RecoverCompact failed: %s", err)
	}
	if !compressed {
		t.Error("signature does not mark a compressed key")
	}
	if !recovered.IsEqual(privateKey.PubKey()) {
		t.Error("signature does not recover the signing key")
	}
}

func TestTransactionDigestMixesChainID(t *testing.T) {
	tx := testTransaction(t)
	digest, err := tx.Digest()
	if err != nil {
		t.Fatalf("Digest failed: %s", err)
	}
	if len(digest) != sha256.Size {
		t.Errorf("digest is %d bytes, want %d", len(digest), sha256.Size)
	}

	serialized, err := tx.serialize()
	if err != nil {
		t.Fatalf("serialize failed: %s", err)
	}
	bare := sha256.Sum256(serialized)
	if hex.EncodeToString(bare[:]) == hex.EncodeToString(digest) {
		t.Error("digest does not mix in the chain id")
	}
}

func TestTransactionMarshalJSON(t *testing.T) {
	tx := testTransaction(t)
	serialized, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal failed: %s", err)
	}

	var decoded struct {
		RefBlockNum    uint16            `json:"ref_block_num"`
		RefBlockPrefix uint32            `json:"ref_block_prefix"`
		Expiration     string            `json:"expiration"`
		Operations     []json.RawMessage `json:"operations"`
		Signatures     []string          `json:"signatures"`
	}
	err = json.Unmarshal(serialized, &decoded)
	if err != nil {
		t.Fatalf("Unmarshal failed: %s", err)
	}

	if decoded.RefBlockNum != tx.RefBlockNum {
		t.Errorf("ref_block_num is %d, want %d", decoded.RefBlockNum, tx.RefBlockNum)
	}
	if strings.ContainsAny(decoded.Expiration, "Zz+") {
		t.Errorf("expiration %q must carry no zone suffix", decoded.Expiration)
	}
	if decoded.Signatures == nil {
		t.Error("signatures must marshal as an empty array, not null")
	}
	if len(decoded.Operations) != 1 {
		t.Fatalf("transaction marshals %d operations, want 1", len(decoded.Operations))
	}

	var tuple []json.RawMessage
	err = json.Unmarshal(decoded.Operations[0], &tuple)
	if err != nil || len(tuple) != 2 {
		t.Fatalf("operation is not a [name, payload] tuple: %s", decoded.Operations[0])
	}
	var name string
	err = json.Unmarshal(tuple[0], &name)
	if err != nil || name != "create_claimed_account" {
		t.Errorf("operation name is %q, want create_claimed_account", name)
	}
}

func TestOperationIDs(t *testing.T) {
	tests := []struct {
		op   Operation
		id   uint8
		name string
	}{
		{&AccountCreateOperation{}, 9, "account_create"},
		{&ClaimAccountOperation{}, 22, "claim_account"},
		{&CreateClaimedAccountOperation{}, 23, "create_claimed_account"},
	}
	for _, test := range tests {
		if test.op.OperationID() != test.id {
			t.Errorf("%s has id %d, want %d", test.name, test.op.OperationID(), test.id)
		}
		if test.op.OperationName() != test.name {
			t.Errorf("operation name is %q, want %q", test.op.OperationName(), test.name)
		}
	}
}
