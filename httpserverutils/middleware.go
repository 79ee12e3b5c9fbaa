package httpserverutils

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dluxio/hiveonboard/hive"
)

// Admin authentication headers. The client signs a fresh timestamp challenge
// with the admin account's key; the service recovers the key from the
// signature and checks it against the configured admin identity.
const (
	HeaderAdminAccount   = "X-Admin-Account"
	HeaderAdminChallenge = "X-Admin-Challenge"
	HeaderAdminPubKey    = "X-Admin-Pubkey"
	HeaderAdminSignature = "X-Admin-Signature"
)

// challengeMaxAge bounds replay of a captured admin challenge.
const challengeMaxAge = 24 * time.Hour

// RequestLoggingMiddleware logs every request with its duration.
func RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s from %s took %s", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// CORSMiddleware answers preflights and stamps the allowed origins. An empty
// allow list permits any origin.
func CORSMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	allowed := map[string]struct{}{}
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				_, ok := allowed[origin]
				if len(allowed) == 0 {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, "+HeaderAdminAccount+", "+HeaderAdminChallenge+", "+
						HeaderAdminPubKey+", "+HeaderAdminSignature)
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuthMiddleware guards admin routes: the request must carry a
// signed challenge no older than 24 hours, made by adminKey and claiming
// adminAccount.
func AdminAuthMiddleware(adminAccount, adminKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hErr := verifyAdminRequest(r, adminAccount, adminKey)
			if hErr != nil {
				SendErr(w, hErr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verifyAdminRequest(r *http.Request, adminAccount, adminKey string) *HandlerError {
	account := r.Header.Get(HeaderAdminAccount)
	challenge := r.Header.Get(HeaderAdminChallenge)
	pubKey := r.Header.Get(HeaderAdminPubKey)
	signature := r.Header.Get(HeaderAdminSignature)
	if account == "" || challenge == "" || pubKey == "" || signature == "" {
		return NewHandlerError(http.StatusUnauthorized, "Missing admin authentication headers")
	}

	if account != adminAccount {
		return NewHandlerError(http.StatusForbidden, "Account is not an admin")
	}
	if pubKey != adminKey {
		return NewHandlerError(http.StatusForbidden, "Key is not authorized for admin access")
	}

	issued, err := time.Parse(time.RFC3339, challenge)
	if err != nil {
		return NewHandlerError(http.StatusUnauthorized, "Challenge must be an RFC3339 timestamp")
	}
	age := time.Since(issued)
	if age < 0 || age > challengeMaxAge {
		return NewHandlerError(http.StatusUnauthorized, "Challenge has expired")
	}

	err = hive.VerifyChallengeSignature(challenge, signature, pubKey)
	if err != nil {
		return NewHandlerError(http.StatusUnauthorized, "Invalid challenge signature")
	}
	return nil
}
