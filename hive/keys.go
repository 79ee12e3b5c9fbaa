package hive

import (
	"crypto/sha256"
	"regexp"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// publicKeyPattern matches the textual form of a Hive public key.
var publicKeyPattern = regexp.MustCompile(`^(STM|TST)[A-Za-z0-9]{50,60}$`)

// IsPublicKey reports whether s looks like a Hive public key.
func IsPublicKey(s string) bool {
	return publicKeyPattern.MatchString(s)
}

// DecodePublicKey converts the textual STM... form to the 33 compressed
// secp256k1 bytes used in binary serialization.
func DecodePublicKey(s string) ([]byte, error) {
	if !IsPublicKey(s) {
		return nil, errors.Errorf("malformed public key %q", s)
	}
	raw, err := base58.Decode(s[3:])
	if err != nil {
		return nil, errors.Wrap(err, "public key is not valid base58")
	}
	if len(raw) != 37 {
		return nil, errors.Errorf("public key payload must be 37 bytes, got %d", len(raw))
	}

	keyBytes := raw[:33]
	checksum := raw[33:]
	hasher := ripemd160.New()
	hasher.Write(keyBytes)
	digest := hasher.Sum(nil)
	if digest[0] != checksum[0] || digest[1] != checksum[1] ||
		digest[2] != checksum[2] || digest[3] != checksum[3] {
		return nil, errors.Errorf("public key %q has a bad checksum", s)
	}
	return keyBytes, nil
}

// EncodePublicKey renders 33 compressed key bytes in the STM... form.
func EncodePublicKey(keyBytes []byte) (string, error) {
	if len(keyBytes) != 33 {
		return "", errors.Errorf("public key must be 33 bytes, got %d", len(keyBytes))
	}
	hasher := ripemd160.New()
	hasher.Write(keyBytes)
	checksum := hasher.Sum(nil)[:4]

	payload := make([]byte, 0, 37)
	payload = append(payload, keyBytes...)
	payload = append(payload, checksum...)
	return "STM" + base58.Encode(payload), nil
}

// DecodeWIF parses a private key in wallet-import format.
func DecodeWIF(wif string) (*btcec.PrivateKey, error) {
	raw, err := base58.Decode(wif)
	if err != nil {
		return nil, errors.Wrap(err, "WIF is not valid base58")
	}
	if len(raw) != 37 {
		return nil, errors.Errorf("WIF payload must be 37 bytes, got %d", len(raw))
	}
	if raw[0] != 0x80 {
		return nil, errors.Errorf("WIF has unexpected version byte %#x", raw[0])
	}

	payload := raw[:33]
	checksum := raw[33:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if second[0] != checksum[0] || second[1] != checksum[1] ||
		second[2] != checksum[2] || second[3] != checksum[3] {
		return nil, errors.New("WIF has a bad checksum")
	}

	privateKey, _ := btcec.PrivKeyFromBytes(payload[1:])
	return privateKey, nil
}
