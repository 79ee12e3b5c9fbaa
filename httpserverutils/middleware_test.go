package httpserverutils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/dluxio/hiveonboard/hive"
)

const testAdminAccount = "dlux-io"

func adminTestKey(t *testing.T) (*btcec.PrivateKey, string) {
	t.Helper()
	raw := [32]byte{
		0xaa, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
		0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
		0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f,
	}
	privateKey, _ := btcec.PrivKeyFromBytes(raw[:])
	publicKey, err := hive.PublicKeyFromPrivate(privateKey)
	require.NoError(t, err)
	return privateKey, publicKey
}

func signedChallenge(privateKey *btcec.PrivateKey, issued time.Time) (challenge, signature string) {
	challenge = issued.UTC().Format(time.RFC3339)
	digest := sha256.Sum256([]byte(challenge))
	return challenge, hex.EncodeToString(ecdsa.SignCompact(privateKey, digest[:], true))
}

func adminRequest(account, challenge, pubKey, signature string) *http.Request {
	r := httptest.NewRequest("POST", "/admin/claim-act", nil)
	if account != "" {
		r.Header.Set(HeaderAdminAccount, account)
	}
	if challenge != "" {
		r.Header.Set(HeaderAdminChallenge, challenge)
	}
	if pubKey != "" {
		r.Header.Set(HeaderAdminPubKey, pubKey)
	}
	if signature != "" {
		r.Header.Set(HeaderAdminSignature, signature)
	}
	return r
}

func runAdminMiddleware(t *testing.T, adminKey string, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	called := false
	handler := AdminAuthMiddleware(testAdminAccount, adminKey)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))
	handler.ServeHTTP(recorder, r)
	if recorder.Code == http.StatusOK {
		require.True(t, called, "middleware passed without invoking the handler")
	} else {
		require.False(t, called, "middleware invoked the handler despite rejecting")
	}
	return recorder
}

func TestAdminAuthMiddlewareAcceptsSignedChallenge(t *testing.T) {
	privateKey, publicKey := adminTestKey(t)
	challenge, signature := signedChallenge(privateKey, time.Now())

	recorder := runAdminMiddleware(t, publicKey,
		adminRequest(testAdminAccount, challenge, publicKey, signature))
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestAdminAuthMiddlewareRejections(t *testing.T) {
	privateKey, publicKey := adminTestKey(t)
	challenge, signature := signedChallenge(privateKey, time.Now())

	otherKey, err := hive.EncodePublicKey(make([]byte, 33))
	require.NoError(t, err)

	expiredChallenge, expiredSignature := signedChallenge(privateKey,
		time.Now().Add(-25*time.Hour))
	futureChallenge, futureSignature := signedChallenge(privateKey,
		time.Now().Add(time.Hour))

	tests := []struct {
		name    string
		request *http.Request
		code    int
	}{
		{
			name:    "missing headers",
			request: adminRequest("", "", "", ""),
			code:    http.StatusUnauthorized,
		},
		{
			name:    "missing signature",
			request: adminRequest(testAdminAccount, challenge, publicKey, ""),
			code:    http.StatusUnauthorized,
		},
		{
			name:    "wrong account",
			request: adminRequest("mallory", challenge, publicKey, signature),
			code:    http.StatusForbidden,
		},
		{
			name:    "unauthorized key",
			request: adminRequest(testAdminAccount, challenge, otherKey, signature),
			code:    http.StatusForbidden,
		},
		{
			name:    "challenge is not a timestamp",
			request: adminRequest(testAdminAccount, "yesterday", publicKey, signature),
			code:    http.StatusUnauthorized,
		},
		{
			name:    "expired challenge",
			request: adminRequest(testAdminAccount, expiredChallenge, publicKey, expiredSignature),
			code:    http.StatusUnauthorized,
		},
		{
			name:    "future challenge",
			request: adminRequest(testAdminAccount, futureChallenge, publicKey, futureSignature),
			code:    http.StatusUnauthorized,
		},
		{
			name:    "signature over a different challenge",
			request: adminRequest(testAdminAccount, time.Now().UTC().Format(time.RFC3339), publicKey, expiredSignature),
			code:    http.StatusUnauthorized,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recorder := runAdminMiddleware(t, publicKey, test.request)
			require.Equal(t, test.code, recorder.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("empty allow list permits any origin", func(t *testing.T) {
		handler := CORSMiddleware(nil)(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

		r := httptest.NewRequest("GET", "/pricing", nil)
		r.Header.Set("Origin", "https://example.com")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, r)

		require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight is answered without reaching the handler", func(t *testing.T) {
		called := false
		handler := CORSMiddleware([]string{"https://dlux.io"})(http.HandlerFunc(
			func(http.ResponseWriter, *http.Request) { called = true }))

		r := httptest.NewRequest(http.MethodOptions, "/payment/initiate", nil)
		r.Header.Set("Origin", "https://dlux.io")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, r)

		require.Equal(t, http.StatusNoContent, recorder.Code)
		require.False(t, called)
		require.Equal(t, "https://dlux.io", recorder.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin gets no allow header", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://dlux.io"})(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

		r := httptest.NewRequest("GET", "/pricing", nil)
		r.Header.Set("Origin", "https://evil.example")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, r)

		require.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
	})
}
