package hive

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mr-tron/base58"
)

func testPrivateKey() *btcec.PrivateKey {
	raw := [32]byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
		0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18,
		0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x20,
	}
	privateKey, _ := btcec.PrivKeyFromBytes(raw[:])
	return privateKey
}

// encodeWIF builds the wallet-import form of a raw private key, for decoding
// tests.
func encodeWIF(privateKey *btcec.PrivateKey) string {
	payload := append([]byte{0x80}, privateKey.Serialize()...)
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return base58.Encode(append(payload, second[:4]...))
}

func TestPublicKeyRoundTrip(t *testing.T) {
	keyBytes := testPrivateKey().PubKey().SerializeCompressed()

	encoded, err := EncodePublicKey(keyBytes)
	if err != nil {
		t.Fatalf("EncodePublicKey failed: %s", err)
	}
	if !IsPublicKey(encoded) {
		t.Errorf("encoded key %s does not match the public key pattern", encoded)
	}

	decoded, err := DecodePublicKey(encoded)
	if err != nil {
		t.Fatalf("DecodePublicKey failed: %s", err)
	}
	if !bytes.Equal(decoded, keyBytes) {
		t.Errorf("round trip mismatch: got %x, want %x", decoded, keyBytes)
	}
}

func TestDecodePublicKeyRejectsCorruption(t *testing.T) {
	keyBytes := testPrivateKey().PubKey().SerializeCompressed()
	encoded, err := EncodePublicKey(keyBytes)
	if err != nil {
		t.Fatalf("EncodePublicKey failed: %s", err)
	}

	corrupted := []byte(encoded)
	last := corrupted[len(corrupted)-1]
	if last == 'z' {
		corrupted[len(corrupted)-1] = 'y'
	} else if last == 'y' {
		corrupted[len(corrupted)-1] = 'z'
	} else {
		corrupted[len(corrupted)-1] = 'z'
	}
	_, err = DecodePublicKey(string(corrupted))
	if err == nil {
		t.Error("DecodePublicKey accepted a key with a corrupted checksum")
	}

	if _, err := DecodePublicKey("STMshort"); err == nil {
		t.Error("DecodePublicKey accepted a truncated key")
	}
	if _, err := DecodePublicKey("ABC" + encoded[3:]); err == nil {
		t.Error("DecodePublicKey accepted a key with a wrong prefix")
	}
}

func TestEncodePublicKeyRejectsWrongLength(t *testing.T) {
	if _, err := EncodePublicKey(make([]byte, 32)); err == nil {
		t.Error("EncodePublicKey accepted 32 key bytes")
	}
}

func TestDecodeWIF(t *testing.T) {
	privateKey := testPrivateKey()
	wif := encodeWIF(privateKey)

	decoded, err := DecodeWIF(wif)
	if err != nil {
		t.Fatalf("DecodeWIF failed: %s", err)
	}
	if !bytes.Equal(decoded.Serialize(), privateKey.Serialize()) {
		t.Errorf("decoded key mismatch: got %x, want %x",
			decoded.Serialize(), privateKey.Serialize())
	}
}

func TestDecodeWIFRejectsCorruption(t *testing.T) {
	privateKey := testPrivateKey()

	t.Run("bad checksum", func(t *testing.T) {
		payload := append([]byte{0x80}, privateKey.Serialize()...)
		wif := base58.Encode(append(payload, 0xde, 0xad, 0xbe, 0xef))
		if _, err := DecodeWIF(wif); err == nil {
			t.Error("DecodeWIF accepted a bad checksum")
		}
	})

	t.Run("bad version byte", func(t *testing.T) {
		payload := append([]byte{0x42}, privateKey.Serialize()...)
		first := sha256.Sum256(payload)
		second := sha256.Sum256(first[:])
		wif := base58.Encode(append(payload, second[:4]...))
		if _, err := DecodeWIF(wif); err == nil {
			t.Error("DecodeWIF accepted a wrong version byte")
		}
	})

	t.Run("not base58", func(t *testing.T) {
		if _, err := DecodeWIF("0OIl"); err == nil {
			t.Error("DecodeWIF accepted non-base58 input")
		}
	})
}
