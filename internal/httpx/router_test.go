package httpx

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asad/bluectl/internal/config"
	"github.com/asad/bluectl/internal/core"
	"github.com/asad/bluectl/internal/logging"
	"github.com/asad/bluectl/internal/storage"
)

type stubService struct {
	name string
}

func (s stubService) Name() string { return s.name }

func (s stubService) RegisterRoutes(r chi.Router) {
	r.Get("/{account}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(s.name + ":" + chi.URLParam(r, "account")))
	})
}

func newTestRouter(enabled ...string) http.Handler {
	cfg := &config.Config{EnabledServices: enabled}
	registry := core.NewRegistry(stubService{"blob"}, stubService{"queue"}, stubService{"table"})
	return NewEdgeRouter(cfg, logging.NewNop(), registry)
}

const testDate = "Tue, 02 Jan 2024 03:04:05 GMT"

// signedRequest builds a request signed with the given account key.
func signedRequest(t *testing.T, method, target, account, key string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	sig, err := storage.Signature(account, key, method, testDate, req.URL.EscapedPath())
	require.NoError(t, err)
	req.Header.Set("x-ms-date", testDate)
	req.Header.Set("Authorization", "SharedKey "+account+":"+sig)
	return req
}

func devRequest(t *testing.T, method, target string) *http.Request {
	return signedRequest(t, method, target, storage.DevelopmentAccountName, storage.DevelopmentAccountKey)
}

func TestEdgeRouter_Health(t *testing.T) {
	router := newTestRouter("blob", "table")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string   `json:"status"`
		Services []string `json:"services"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, []string{"blob", "table"}, body.Services)
}

func TestEdgeRouter_MountsEnabledServices(t *testing.T) {
	router := newTestRouter("blob")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, devRequest(t, http.MethodGet, "/blob/devstoreaccount1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "blob:devstoreaccount1", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, devRequest(t, http.MethodGet, "/queue/devstoreaccount1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEdgeRouter_EchoesRequestIDs(t *testing.T) {
	router := newTestRouter("blob")

	req := devRequest(t, http.MethodGet, "/blob/devstoreaccount1")
	req.Header.Set("x-ms-client-request-id", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("x-ms-client-request-id"))
	assert.NotEmpty(t, w.Header().Get("x-ms-request-id"))
}

func TestEdgeRouter_RequiresSharedKey(t *testing.T) {
	router := newTestRouter("blob")
	otherKey := base64.StdEncoding.EncodeToString([]byte("not-the-emulator-key"))

	tampered := devRequest(t, http.MethodGet, "/blob/devstoreaccount1")
	tampered.Method = http.MethodDelete

	wrongAccount := signedRequest(t, http.MethodGet, "/blob/devstoreaccount1", "someoneelse", storage.DevelopmentAccountKey)
	wrongAccount.Header.Set("Authorization", strings.Replace(wrongAccount.Header.Get("Authorization"), "someoneelse", "devstoreaccount1", 1))

	noDate := devRequest(t, http.MethodGet, "/blob/devstoreaccount1")
	noDate.Header.Del("x-ms-date")

	cases := map[string]*http.Request{
		"unsigned":         httptest.NewRequest(http.MethodGet, "/blob/devstoreaccount1", nil),
		"wrong key":        signedRequest(t, http.MethodGet, "/blob/devstoreaccount1", storage.DevelopmentAccountName, otherKey),
		"unknown account":  signedRequest(t, http.MethodGet, "/blob/someoneelse", "someoneelse", storage.DevelopmentAccountKey),
		"path mismatch":    signedRequest(t, http.MethodGet, "/blob/other", storage.DevelopmentAccountName, storage.DevelopmentAccountKey),
		"method tampered":  tampered,
		"signature reused": wrongAccount,
		"missing date":     noDate,
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			require.Equal(t, http.StatusForbidden, w.Code)

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, "AuthenticationFailed", body.Error.Code)
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health stays open")
}
