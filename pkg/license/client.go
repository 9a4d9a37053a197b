// Package license talks to the license manager API that gates the tool.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ike-ops/expedientes-cli/internal/resilience"
)

const defaultBaseURL = "https://ike-license-manager-9b796c40a448.herokuapp.com"

// Client performs license operations against the license manager.
type Client interface {
	// Validate activates a license token for this machine.
	Validate(ctx context.Context, token string) (*Validation, error)
	// CheckValidity asks the server whether a token is still valid.
	CheckValidity(ctx context.Context, token string) (*Validity, error)
	// Health checks that the license server is reachable.
	Health(ctx context.Context) error
}

// Validation is the result of activating a token.
type Validation struct {
	Valid       bool     `json:"valid"`
	ExpiresAt   string   `json:"expires_at"`
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

// Validity is the result of a validity check.
type Validity struct {
	Valid     bool   `json:"valid"`
	ExpiresAt string `json:"expiresAt"`
	Message   string `json:"message"`
}

// envelope is the server's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type validateRequest struct {
	Token      string `json:"token"`
	MachineID  string `json:"machineId"`
	DeviceInfo string `json:"deviceInfo"`
}

type deviceInfo struct {
	Platform string `json:"platform"`
	Hostname string `json:"hostname"`
	Arch     string `json:"arch"`
	CPUs     int    `json:"cpus"`
	Date     string `json:"date"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the default retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a license manager client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Validate(ctx context.Context, token string) (*Validation, error) {
	req := validateRequest{
		Token:      token,
		MachineID:  machineID(),
		DeviceInfo: deviceInfoJSON(),
	}

	env, err := c.post(ctx, "/api/validate", req)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, eris.Errorf("license: validation rejected: %s", env.Error)
	}

	var v Validation
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, eris.Wrap(err, "license: unmarshal validation")
	}
	return &v, nil
}

func (c *httpClient) CheckValidity(ctx context.Context, token string) (*Validity, error) {
	env, err := c.get(ctx, "/api/check-validity/"+url.PathEscape(token))
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, eris.Errorf("license: validity check rejected: %s", env.Error)
	}

	var v Validity
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, eris.Wrap(err, "license: unmarshal validity")
	}
	return &v, nil
}

func (c *httpClient) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/api/health")
	return err
}

func (c *httpClient) post(ctx context.Context, path string, body any) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "license: marshal request")
	}
	return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "license: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func (c *httpClient) get(ctx context.Context, path string) (*envelope, error) {
	return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, eris.Wrap(err, "license: create request")
		}
		return req, nil
	})
}

// do sends the request with retries on network failures and 5xx responses.
func (c *httpClient) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*envelope, error) {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("license", "request")
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*envelope, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "license: send request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "license: read response")
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("license: server returned %d", resp.StatusCode),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("license: unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var env envelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return nil, eris.Wrap(err, "license: unmarshal response")
		}
		return &env, nil
	})
}

func machineID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()[:8]
}

func deviceInfoJSON() string {
	host, _ := os.Hostname()
	info := deviceInfo{
		Platform: runtime.GOOS,
		Hostname: host,
		Arch:     runtime.GOARCH,
		CPUs:     runtime.NumCPU(),
		Date:     time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
