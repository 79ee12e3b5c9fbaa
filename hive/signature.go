package hive

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
)

// PublicKeyFromPrivate renders the STM form of a private key's public half.
func PublicKeyFromPrivate(privateKey *btcec.PrivateKey) (string, error) {
	return EncodePublicKey(privateKey.PubKey().SerializeCompressed())
}

// VerifyChallengeSignature checks that signatureHex is a compact signature
// over sha256(challenge) made by the private half of expectedKey.
func VerifyChallengeSignature(challenge, signatureHex, expectedKey string) error {
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return errors.Wrap(err, "malformed signature")
	}
	digest := sha256.Sum256([]byte(challenge))

	recovered, _, err := ecdsa.RecoverCompact(signature, digest[:])
	if err != nil {
		return errors.Wrap(err, "failed to recover public key from signature")
	}
	recoveredKey, err := EncodePublicKey(recovered.SerializeCompressed())
	if err != nil {
		return err
	}
	if recoveredKey != expectedKey {
		return errors.New("signature does not match the expected key")
	}
	return nil
}
