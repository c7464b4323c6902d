package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/container-tracker/internal/common"
)

// secureHeaders sets the response headers every API reply carries.
func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// bodyLimit buffers at most max bytes of the request body and rejects
// anything larger with 413.
func bodyLimit(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if max <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > max {
				common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
				return
			}
			buf, err := io.ReadAll(io.LimitReader(r.Body, max+1))
			if err != nil {
				common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
				return
			}
			if int64(len(buf)) > max {
				common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(buf))
			r.ContentLength = int64(len(buf))
			next.ServeHTTP(w, r)
		})
	}
}

// TokenParser verifies a bearer token and returns its subject.
type TokenParser interface {
	Parse(token string) (string, error)
}

// requesterAuth attaches the bearer token's subject as the requester.
// Requests without a token pass through anonymously; a token that fails
// verification is rejected with 401.
func requesterAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			subject, err := tokens.Parse(token)
			if err != nil {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithRequesterID(r.Context(), subject)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
