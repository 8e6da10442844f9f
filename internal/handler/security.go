package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/xenking/curbside/internal/domain/auth"
)

// apiKeyCtxKey is the context key for the authenticated API key.
type apiKeyCtxKey struct{}

// APIKeyFromContext returns the API key that authenticated the request,
// or nil when the request did not pass through APIKeyAuth.
func APIKeyFromContext(ctx context.Context) *auth.APIKeyInfo {
	info, _ := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info
}

// APIKeyAuth returns a middleware that authenticates requests via
// HMAC-SHA256 hashed API keys. The key is read from the api_key header,
// hashed with the pepper, looked up in the repository, and compared in
// constant time.
func APIKeyAuth(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("api_key")
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			storedBytes, err := hex.DecodeString(info.KeyHash)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
