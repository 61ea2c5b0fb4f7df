package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// SessionHeader is the request header carrying the storefront session id.
const SessionHeader = "X-Session-ID"

// maxSessionIDLen bounds inbound session ids.
const maxSessionIDLen = 256

type credentialsKey struct{}

// Credentials is what a caller presented on the request: the session id and,
// when an Authorization header was sent, its scheme and token.
type Credentials struct {
	SessionID string
	Scheme    string
	Token     string
}

// HasToken reports whether an Authorization header was presented.
func (c Credentials) HasToken() bool {
	return c.Token != ""
}

// SessionCredentials extracts the session id (X-Session-ID header, falling
// back to the named cookie) and an optional "<scheme> <token>" Authorization
// header into the request context. A malformed Authorization header or an
// oversized session id is rejected with 401.
func SessionCredentials(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var creds Credentials

			creds.SessionID = strings.TrimSpace(r.Header.Get(SessionHeader))
			if creds.SessionID == "" && cookieName != "" {
				if c, err := r.Cookie(cookieName); err == nil {
					creds.SessionID = strings.TrimSpace(c.Value)
				}
			}
			if len(creds.SessionID) > maxSessionIDLen {
				writeUnauthorized(w, "INVALID_SESSION", "session id too long")
				return
			}

			if h := r.Header.Get("Authorization"); h != "" {
				parts := strings.SplitN(h, " ", 2)
				if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
					writeUnauthorized(w, "UNAUTHORIZED", "invalid authorization header format")
					return
				}
				creds.Scheme = parts[0]
				creds.Token = strings.TrimSpace(parts[1])
			}

			ctx := context.WithValue(r.Context(), credentialsKey{}, creds)
			if creds.SessionID != "" {
				ctx = logger.WithSessionID(ctx, creds.SessionID)
				ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("session_id", creds.SessionID)))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests without a session id with 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CredentialsFromContext(r.Context()).SessionID == "" {
			writeUnauthorized(w, "AUTHENTICATION_REQUIRED", "missing session id")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CredentialsFromContext returns the credentials extracted by SessionCredentials.
func CredentialsFromContext(ctx context.Context) Credentials {
	c, _ := ctx.Value(credentialsKey{}).(Credentials)
	return c
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: code, Message: message},
	})
}
