// Package licenseproxy serves the activation endpoint desktop clients call.
// It holds the LemonSqueezy API key so the clients never see it.
package licenseproxy

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const maxUpstreamBytes = 1 << 20

type activateRequest struct {
	LicenseKey string `json:"licenseKey"`
	InstanceID string `json:"instanceId"`
}

type upstreamRequest struct {
	LicenseKey string `json:"license_key"`
	InstanceID string `json:"instance_id"`
}

type upstreamResponse struct {
	Activated  bool    `json:"activated"`
	Error      *string `json:"error"`
	LicenseKey struct {
		Status string `json:"status"`
	} `json:"license_key"`
}

// ActivateResponse is what clients receive for a successful upstream call.
type ActivateResponse struct {
	Valid      bool `json:"valid"`
	LicenseKey struct {
		Activated bool `json:"activated"`
	} `json:"licenseKey"`
	Error string `json:"error,omitempty"`
}

// Handler forwards activation requests upstream.
type Handler struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewHandler(cfg Config, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// NewRouter builds the gin engine serving /api/activate and /health.
func NewRouter(cfg Config, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{http.MethodPost, http.MethodOptions}
	corsCfg.AllowHeaders = []string{"Authorization", "Content-Type", "Accept"}
	corsCfg.CustomSchemas = []string{"tauri://"}
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	h := NewHandler(cfg, logger)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Any("/api/activate", h.Activate)
	return r
}

// Activate checks the caller's bearer token and forwards the key and
// instance id upstream. Non-2xx upstream answers are relayed as they came.
func (h *Handler) Activate(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": "Method Not Allowed"})
		return
	}

	token := bearerToken(c.GetHeader("Authorization"))
	if h.cfg.InternalAPIKey == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.InternalAPIKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	if h.cfg.UpstreamAPIKey == "" {
		h.logger.Error("LEMON_SQUEEZY_API_KEY is not set")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server configuration error: Missing Lemon Squeezy API key."})
		return
	}

	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LicenseKey == "" || req.InstanceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bad Request: Missing licenseKey or instanceId."})
		return
	}

	status, body, err := h.forward(c.Request, req)
	if err != nil {
		h.logger.Error("activating license", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An internal server error occurred."})
		return
	}

	if status < 200 || status > 299 {
		h.logger.Warn("upstream rejected activation", "status", status)
		c.Data(status, "application/json", body)
		return
	}

	var up upstreamResponse
	if err := json.Unmarshal(body, &up); err != nil {
		h.logger.Error("decoding upstream response", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An internal server error occurred."})
		return
	}

	var out ActivateResponse
	out.Valid = up.Activated
	out.LicenseKey.Activated = up.LicenseKey.Status == "active"
	if up.Error != nil {
		out.Error = *up.Error
	}
	c.JSON(status, out)
}

func (h *Handler) forward(in *http.Request, req activateRequest) (int, []byte, error) {
	payload, err := json.Marshal(upstreamRequest{LicenseKey: req.LicenseKey, InstanceID: req.InstanceID})
	if err != nil {
		return 0, nil, err
	}

	out, err := http.NewRequestWithContext(in.Context(), http.MethodPost, h.cfg.UpstreamURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	out.Header.Set("Accept", "application/json")
	out.Header.Set("Content-Type", "application/json")
	out.Header.Set("Authorization", "Bearer "+h.cfg.UpstreamAPIKey)

	resp, err := h.client.Do(out)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// bearerToken returns the credential of an "Authorization: Bearer x" header.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
