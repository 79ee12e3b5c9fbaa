package hive

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

func signChallenge(t *testing.T, challenge string) (signatureHex, publicKey string) {
	t.Helper()
	privateKey := testPrivateKey()
	digest := sha256.Sum256([]byte(challenge))
	compact := ecdsa.SignCompact(privateKey, digest[:], true)

	publicKey, err := PublicKeyFromPrivate(privateKey)
	if err != nil {
		t.Fatalf("PublicKeyFromPrivate failed: %s", err)
	}
	return hex.EncodeToString(compact), publicKey
}

func TestVerifyChallengeSignature(t *testing.T) {
	challenge := time.Now().UTC().Format(time.RFC3339)
	signature, publicKey := signChallenge(t, challenge)

	err := VerifyChallengeSignature(challenge, signature, publicKey)
	if err != nil {
		t.Errorf("rejected a valid signature: %s", err)
	}
}

func TestVerifyChallengeSignatureRejectsWrongKey(t *testing.T) {
	challenge := time.Now().UTC().Format(time.RFC3339)
	signature, _ := signChallenge(t, challenge)

	otherKey, err := EncodePublicKey(make([]byte, 33))
	if err != nil {
		t.Fatalf("EncodePublicKey failed: %s", err)
	}
	err = VerifyChallengeSignature(challenge, signature, otherKey)
	if err == nil {
		t.Error("accepted a signature against the wrong key")
	}
}

func TestVerifyChallengeSignatureRejectsWrongChallenge(t *testing.T) {
	signature, publicKey := signChallenge(t, "challenge one")

	err := VerifyChallengeSignature("challenge two", signature, publicKey)
	if err == nil {
		t.Error("accepted a signature over a different challenge")
	}
}

func TestVerifyChallengeSignatureRejectsGarbage(t *testing.T) {
	_, publicKey := signChallenge(t, "whatever")

	if err := VerifyChallengeSignature("whatever", "not-hex", publicKey); err == nil {
		t.Error("accepted a non-hex signature")
	}
	if err := VerifyChallengeSignature("whatever", "abcd", publicKey); err == nil {
		t.Error("accepted a truncated signature")
	}
}
