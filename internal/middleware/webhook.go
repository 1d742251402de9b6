package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxSignedBody bounds the event body read for signature verification.
const maxSignedBody = 4 << 20

// SignedEvents returns middleware that verifies HMAC-SHA256 signatures on
// host events. The header carries the hex digest, optionally prefixed with
// "sha256=". An empty secret accepts unsigned events.
func SignedEvents(secret, header string) func(http.Handler) http.Handler {
	return SignedEventsFunc(static(secret), header)
}

// SignedEventsFunc is SignedEvents with the secret read on every request,
// so a rotated secret applies without a restart.
func SignedEventsFunc(secret func() string, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := secret()
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			sig := r.Header.Get(header)
			if sig == "" {
				http.Error(w, "missing event signature", http.StatusUnauthorized)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
			if err != nil {
				http.Error(w, "failed to read body", http.StatusBadRequest)
				return
			}
			if len(body) > maxSignedBody {
				http.Error(w, "event body too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !VerifySignature(body, sig, key) {
				http.Error(w, "invalid event signature", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// VerifySignature checks an HMAC-SHA256 signature over payload.
func VerifySignature(payload []byte, signature, secret string) bool {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(sigBytes, Sign(payload, secret))
}

// Sign returns the raw HMAC-SHA256 digest of payload.
func Sign(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// StaticToken returns middleware that requires header to equal token.
// With no token configured the guarded routes are unavailable.
func StaticToken(token, header string) func(http.Handler) http.Handler {
	return StaticTokenFunc(static(token), header)
}

// StaticTokenFunc is StaticToken with the token read on every request.
func StaticTokenFunc(token func() string, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := token()
			if want == "" {
				http.Error(w, "admin token not configured", http.StatusServiceUnavailable)
				return
			}

			got := strings.TrimPrefix(r.Header.Get(header), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				http.Error(w, fmt.Sprintf("invalid %s token", header), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func static(s string) func() string {
	return func() string { return s }
}
