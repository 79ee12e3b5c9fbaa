package vault

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

const testEncryptionKey = "aaaabbbbccccddddeeeeffff00001111aaaabbbbccccddddeeeeffff00001111"

func TestNewCipherRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", strings.Repeat("zz", 32)},
		{"too short", "aabbccdd"},
		{"too long", strings.Repeat("ab", 40)},
	}
	for _, test := range tests {
		_, err := NewCipher(test.key)
		if err == nil {
			t.Errorf("NewCipher accepted a %s key", test.name)
		}
	}
}

func TestCipherRoundTrip(t *testing.T) {
	cipher, err := NewCipher(testEncryptionKey)
	if err != nil {
		t.Fatalf("NewCipher failed: %s", err)
	}

	plaintext := []byte{0x01, 0x02, 0x03, 0xfe, 0xff, 0x00, 0x7f}
	encrypted, err := cipher.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %s", err)
	}

	raw, err := hex.DecodeString(encrypted)
	if err != nil {
		t.Fatalf("Encrypt output is not hex: %s", err)
	}
	if len(raw) != ivSize+tagSize+len(plaintext) {
		t.Errorf("ciphertext length is %d, want %d", len(raw), ivSize+tagSize+len(plaintext))
	}

	decrypted, err := cipher.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt failed: %s", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip mismatch: got %x, want %x", decrypted, plaintext)
	}
}

func TestCipherEncryptIsRandomized(t *testing.T) {
	cipher, err := NewCipher(testEncryptionKey)
	if err != nil {
		t.Fatalf("NewCipher failed: %s", err)
	}

	plaintext := []byte("same input")
	first, err := cipher.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %s", err)
	}
	second, err := cipher.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %s", err)
	}
	if first == second {
		t.Error("two encryptions of the same plaintext produced identical output")
	}
}

func TestCipherDecryptFailsClosed(t *testing.T) {
	cipher, err := NewCipher(testEncryptionKey)
	if err != nil {
		t.Fatalf("NewCipher failed: %s", err)
	}
	encrypted, err := cipher.Encrypt([]byte("secret key material"))
	if err != nil {
		t.Fatalf("Encrypt failed: %s", err)
	}

	t.Run("tampered ciphertext", func(t *testing.T) {
		raw, _ := hex.DecodeString(encrypted)
		raw[len(raw)-1] ^= 0x01
		_, err := cipher.Decrypt(hex.EncodeToString(raw))
		if err == nil {
			t.Error("Decrypt accepted a tampered ciphertext")
		}
	})

	t.Run("tampered tag", func(t *testing.T) {
		raw, _ := hex.DecodeString(encrypted)
		raw[ivSize] ^= 0x01
		_, err := cipher.Decrypt(hex.EncodeToString(raw))
		if err == nil {
			t.Error("Decrypt accepted a tampered auth tag")
		}
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := cipher.Decrypt(encrypted[:2*(ivSize+tagSize)-2])
		if err == nil {
			t.Error("Decrypt accepted a truncated ciphertext")
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		otherKey := strings.Repeat("42", 32)
		other, err := NewCipher(otherKey)
		if err != nil {
			t.Fatalf("NewCipher failed: %s", err)
		}
		_, err = other.Decrypt(encrypted)
		if err == nil {
			t.Error("Decrypt accepted a ciphertext sealed under a different key")
		}
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := cipher.Decrypt("not-hex-at-all")
		if err == nil {
			t.Error("Decrypt accepted a non-hex input")
		}
	})
}
