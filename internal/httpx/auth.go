package httpx

import (
	"crypto/hmac"
	"net/http"
	"strings"
	"time"

	"github.com/asad/bluectl/internal/core"
	"github.com/asad/bluectl/internal/logging"
	"github.com/asad/bluectl/internal/storage"
)

// emulatorAccounts maps the account names the emulator serves to their keys.
var emulatorAccounts = map[string]string{
	storage.DevelopmentAccountName: storage.DevelopmentAccountKey,
}

// SharedKeyAuth rejects requests whose Authorization header is not a valid
// Shared Key signature for the account named in the path
// (/{service}/{account}/...). The date is required but its skew is not checked.
func SharedKeyAuth(accounts map[string]string, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason := verifySharedKey(r, accounts); reason != "" {
				logger.Warn("rejected request",
					logging.String("method", r.Method),
					logging.String("path", r.URL.Path),
					logging.String("reason", reason),
				)
				core.WriteError(w, http.StatusForbidden, "AuthenticationFailed",
					"Server failed to authenticate the request: "+reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// verifySharedKey returns why r fails authentication, or "" when it passes.
func verifySharedKey(r *http.Request, accounts map[string]string) string {
	scheme, credential, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || scheme != "SharedKey" {
		return "missing SharedKey authorization"
	}
	account, got, ok := strings.Cut(credential, ":")
	if !ok || account == "" || got == "" {
		return "malformed authorization header"
	}

	date := r.Header.Get("x-ms-date")
	if _, err := time.Parse(http.TimeFormat, date); err != nil {
		return "missing or invalid x-ms-date"
	}

	path := r.URL.EscapedPath()
	segments := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(segments) < 2 || segments[1] != account {
		return "account does not match the request path"
	}

	key, ok := accounts[account]
	if !ok {
		return "unknown account"
	}
	want, err := storage.Signature(account, key, r.Method, date, path)
	if err != nil {
		return "account key is not usable"
	}
	if !hmac.Equal([]byte(got), []byte(want)) {
		return "signature mismatch"
	}
	return ""
}
