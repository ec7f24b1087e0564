// Package license activates license keys against the licensing service.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"freelanceflow/internal/config"
	"freelanceflow/internal/ff"
)

// EnvAPIKey names the environment variable holding the bearer token for
// the licensing service.
const EnvAPIKey = "FF_LICENSE_API_KEY"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// ActivateRequest is the body posted to the activation endpoint.
type ActivateRequest struct {
	LicenseKey string `json:"licenseKey"`
	InstanceID string `json:"instanceId"`
}

// ActivateResponse is the body of a successful activation call.
type ActivateResponse struct {
	Valid      bool          `json:"valid"`
	LicenseKey LicenseStatus `json:"licenseKey"`
}

type LicenseStatus struct {
	Activated bool `json:"activated"`
}

// HTTPActivator makes one activation request per call. It keeps no state
// between calls.
type HTTPActivator struct {
	endpoint   string
	apiKey     string
	instanceID string
	client     *http.Client
}

var _ ff.Activator = (*HTTPActivator)(nil)

// NewHTTPActivator creates an activator for cfg's endpoint. instanceID
// identifies this installation to the licensing service.
func NewHTTPActivator(cfg config.LicenseConfig, apiKey, instanceID string) *HTTPActivator {
	return &HTTPActivator{
		endpoint:   cfg.Endpoint,
		apiKey:     apiKey,
		instanceID: instanceID,
		client:     &http.Client{Timeout: cfg.Timeout()},
	}
}

// Activate returns true when the service reports the key valid and
// activated. A reachable service that says otherwise yields
// ff.ErrInvalidLicense; anything else is an *ff.TransportError.
func (a *HTTPActivator) Activate(ctx context.Context, licenseKey string) (bool, error) {
	payload, err := json.Marshal(ActivateRequest{LicenseKey: licenseKey, InstanceID: a.instanceID})
	if err != nil {
		return false, fmt.Errorf("encoding activation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, &ff.TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false, &ff.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, &ff.TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &ff.TransportError{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(body)),
		}
	}

	var out ActivateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, &ff.TransportError{
			StatusCode: resp.StatusCode,
			Detail:     "malformed activation response",
			Err:        err,
		}
	}

	if !out.Valid || !out.LicenseKey.Activated {
		return false, fmt.Errorf("%w: valid=%t activated=%t", ff.ErrInvalidLicense, out.Valid, out.LicenseKey.Activated)
	}
	return true, nil
}
