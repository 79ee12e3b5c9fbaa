package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

const (
	// ivSize is the GCM nonce length. 16 bytes rather than the Go default
	// of 12 to stay compatible with ciphertexts produced by earlier
	// deployments.
	ivSize = 16

	// tagSize is the GCM authentication tag length.
	tagSize = 16

	// aadTag binds every ciphertext to its purpose. A ciphertext lifted
	// from another column fails authentication.
	aadTag = "private_key"
)

// Cipher encrypts private keys at rest with AES-256-GCM.
type Cipher struct {
	key []byte
}

// NewCipher builds a Cipher from a 64-hex-character key.
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "encryption key is not valid hex")
	}
	if len(key) != 32 {
		return nil, errors.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext and returns hex(IV || authTag || ciphertext).
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to initialize AES")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", errors.Wrap(err, "failed to initialize GCM")
	}

	iv := make([]byte, ivSize)
	_, err = rand.Read(iv)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate IV")
	}

	sealed := gcm.Seal(nil, iv, plaintext, []byte(aadTag))
	ciphertext := sealed[:len(sealed)-tagSize]
	authTag := sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, ivSize+tagSize+len(ciphertext))
	out = append(out, iv...)
	out = append(out, authTag...)
	out = append(out, ciphertext...)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It fails closed: any tampering, truncation, or
// wrong-key input yields an error and no plaintext.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "encrypted key is not valid hex")
	}
	if len(raw) < ivSize+tagSize {
		return nil, errors.Errorf("encrypted key is too short (%d bytes)", len(raw))
	}

	iv := raw[:ivSize]
	authTag := raw[ivSize : ivSize+tagSize]
	ciphertext := raw[ivSize+tagSize:]

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize AES")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize GCM")
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)

	plaintext, err := gcm.Open(nil, iv, sealed, []byte(aadTag))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt private key")
	}
	return plaintext, nil
}
