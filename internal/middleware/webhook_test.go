package middleware

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testSecret = "s3cret"

func echoBody() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(b)
	})
}

func TestSignedEvents(t *testing.T) {
	body := `{"ticket_id":42}`
	good := hex.EncodeToString(Sign([]byte(body), testSecret))

	tests := []struct {
		name   string
		secret string
		sig    string
		want   int
	}{
		{"valid signature", testSecret, good, http.StatusOK},
		{"prefixed signature", testSecret, "sha256=" + good, http.StatusOK},
		{"missing signature", testSecret, "", http.StatusUnauthorized},
		{"wrong signature", testSecret, hex.EncodeToString(Sign([]byte(body), "other")), http.StatusForbidden},
		{"not hex", testSecret, "zz", http.StatusForbidden},
		{"no secret configured", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := SignedEvents(tt.secret, "X-Signature-256")(echoBody())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events/ticket.created", strings.NewReader(body))
			if tt.sig != "" {
				req.Header.Set("X-Signature-256", tt.sig)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusOK && rec.Body.String() != body {
				t.Fatalf("body not replayed to handler: %q", rec.Body.String())
			}
		})
	}
}

func TestStaticToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"valid", "tok", "tok", http.StatusOK},
		{"bearer", "tok", "Bearer tok", http.StatusOK},
		{"wrong", "tok", "nope", http.StatusForbidden},
		{"not configured", "", "tok", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := StaticToken(tt.token, "Authorization")(echoBody())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if rec.Code != http.StatusOK {
				if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
					t.Errorf("content type = %q, want text/plain", ct)
				}
				if body := rec.Body.String(); strings.HasPrefix(body, "{") {
					t.Errorf("error body should be plain text, got %q", body)
				}
			}
		})
	}
}

func TestSignedEventsFuncRotation(t *testing.T) {
	body := `{"ticket_id":42}`
	secret := "old"
	h := SignedEventsFunc(func() string { return secret }, "X-Signature-256")(echoBody())

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events/ticket.created", strings.NewReader(body))
		req.Header.Set("X-Signature-256", hex.EncodeToString(Sign([]byte(body), key)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("old"); got != http.StatusOK {
		t.Fatalf("old secret: expected 200, got %d", got)
	}
	secret = "new"
	if got := send("old"); got != http.StatusForbidden {
		t.Fatalf("rotated out secret: expected 403, got %d", got)
	}
	if got := send("new"); got != http.StatusOK {
		t.Fatalf("new secret: expected 200, got %d", got)
	}
}
