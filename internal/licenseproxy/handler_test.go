package licenseproxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type upstreamCall struct {
	auth string
	body upstreamRequest
}

func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *upstreamCall) {
	t.Helper()
	call := &upstreamCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call.auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&call.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, call
}

func testConfig(upstreamURL string) Config {
	return Config{
		InternalAPIKey: "internal-secret",
		UpstreamAPIKey: "lemon-secret",
		UpstreamURL:    upstreamURL,
		Timeout:        2 * time.Second,
	}
}

func serve(t *testing.T, cfg Config, method, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(method, "/api/activate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func message(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out["message"]
}

const validBody = `{"licenseKey":"KEY-1","instanceId":"machine-1"}`

func TestActivate_TranslatesSuccess(t *testing.T) {
	upstream, call := newUpstream(t, http.StatusOK,
		`{"activated":true,"error":null,"license_key":{"id":1,"status":"active","key":"KEY-1"},"instance":{"id":"i-1"}}`)

	rr := serve(t, testConfig(upstream.URL), http.MethodPost, "Bearer internal-secret", validBody)

	require.Equal(t, http.StatusOK, rr.Code)
	var out ActivateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.True(t, out.Valid)
	assert.True(t, out.LicenseKey.Activated)

	assert.Equal(t, "Bearer lemon-secret", call.auth)
	assert.Equal(t, upstreamRequest{LicenseKey: "KEY-1", InstanceID: "machine-1"}, call.body)
}

func TestActivate_InactiveKey(t *testing.T) {
	upstream, _ := newUpstream(t, http.StatusOK,
		`{"activated":false,"error":"This license key has reached the activation limit.","license_key":{"status":"inactive"}}`)

	rr := serve(t, testConfig(upstream.URL), http.MethodPost, "Bearer internal-secret", validBody)

	require.Equal(t, http.StatusOK, rr.Code)
	var out ActivateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.False(t, out.Valid)
	assert.False(t, out.LicenseKey.Activated)
	assert.Contains(t, out.Error, "activation limit")
}

func TestActivate_RelaysUpstreamErrors(t *testing.T) {
	const body = `{"activated":false,"error":"license_key not found."}`
	upstream, _ := newUpstream(t, http.StatusNotFound, body)

	rr := serve(t, testConfig(upstream.URL), http.MethodPost, "Bearer internal-secret", validBody)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, body, rr.Body.String())
}

func TestActivate_RequestChecks(t *testing.T) {
	upstream, _ := newUpstream(t, http.StatusOK, `{}`)

	tests := []struct {
		name       string
		cfg        func(*Config)
		method     string
		auth       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "wrong method",
			method:     http.MethodGet,
			auth:       "Bearer internal-secret",
			wantStatus: http.StatusMethodNotAllowed,
			wantMsg:    "Method Not Allowed",
		},
		{
			name:       "missing token",
			method:     http.MethodPost,
			body:       validBody,
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Unauthorized",
		},
		{
			name:       "wrong token",
			method:     http.MethodPost,
			auth:       "Bearer nope",
			body:       validBody,
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Unauthorized",
		},
		{
			name:       "proxy without internal key rejects everyone",
			cfg:        func(c *Config) { c.InternalAPIKey = "" },
			method:     http.MethodPost,
			auth:       "Bearer ",
			body:       validBody,
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Unauthorized",
		},
		{
			name:       "missing upstream key",
			cfg:        func(c *Config) { c.UpstreamAPIKey = "" },
			method:     http.MethodPost,
			auth:       "Bearer internal-secret",
			body:       validBody,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Server configuration error: Missing Lemon Squeezy API key.",
		},
		{
			name:       "missing instance id",
			method:     http.MethodPost,
			auth:       "Bearer internal-secret",
			body:       `{"licenseKey":"KEY-1"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Bad Request: Missing licenseKey or instanceId.",
		},
		{
			name:       "body is not json",
			method:     http.MethodPost,
			auth:       "Bearer internal-secret",
			body:       `licenseKey=KEY-1`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Bad Request: Missing licenseKey or instanceId.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(upstream.URL)
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}

			rr := serve(t, cfg, tt.method, tt.auth, tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantMsg, message(t, rr))
		})
	}
}

func TestActivate_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	rr := serve(t, testConfig(url), http.MethodPost, "Bearer internal-secret", validBody)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "An internal server error occurred.", message(t, rr))
}

func TestActivate_UpstreamNotJSON(t *testing.T) {
	upstream, _ := newUpstream(t, http.StatusOK, `<html>maintenance</html>`)

	rr := serve(t, testConfig(upstream.URL), http.MethodPost, "Bearer internal-secret", validBody)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.AllowedOrigins = []string{"http://localhost:1420"}
	router := NewRouter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodOptions, "/api/activate", nil)
	req.Header.Set("Origin", "http://localhost:1420")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Less(t, rr.Code, 300)
	assert.Equal(t, "http://localhost:1420", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("abc"))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("INTERNAL_API_KEY", "i")
	t.Setenv("LEMON_SQUEEZY_API_KEY", "l")
	t.Setenv("LEMON_SQUEEZY_ACTIVATE_URL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "tauri://localhost, http://localhost:1420")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")

	cfg := ConfigFromEnv()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "i", cfg.InternalAPIKey)
	assert.Equal(t, "l", cfg.UpstreamAPIKey)
	assert.Equal(t, DefaultUpstreamURL, cfg.UpstreamURL)
	assert.Equal(t, []string{"tauri://localhost", "http://localhost:1420"}, cfg.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}
