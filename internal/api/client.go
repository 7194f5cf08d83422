// Package api is the HTTP client of the RiskLock risk service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperr "risklock/internal/errors"
	"risklock/internal/logging"
)

// Endpoint paths relative to the base URL.
const (
	PathLogin         = "/auth/token"
	PathOverview      = "/dashboard/overview"
	PathTrades        = "/dashboard/trades"
	PathPortfolio     = "/dashboard/portfolio"
	PathToggleDemo    = "/dashboard/toggle-demo"
	PathBrokers       = "/brokers/"
	PathPresets       = "/brokers/presets"
	PathBrokerConnect = "/brokers/connect"
	PathRiskSettings  = "/brokers/%d/risk-settings"
	PathFeedback      = "/feedback/"
	PathFeedbackAll   = "/feedback/admin/all"
	PathFeedbackAdmin = "/feedback/admin/%d"
	PathReport        = "/reports/generate"
)

// DefaultTimeout bounds every request that has no tighter context deadline.
const DefaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Token   string
	Logger  zerolog.Logger
	// OnUnauthorized runs after the service answers 401, once the client has
	// dropped its token.
	OnUnauthorized func()
}

// Client calls the risk service. It is safe for concurrent use.
type Client struct {
	http           *resty.Client
	timeout        time.Duration
	logger         zerolog.Logger
	onUnauthorized func()

	mu    sync.RWMutex
	token string
}

// New creates a new Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "risklock-terminal")

	return &Client{
		http:           client,
		timeout:        timeout,
		logger:         logging.WithOperation(opts.Logger, "api"),
		onUnauthorized: opts.OnUnauthorized,
		token:          opts.Token,
	}
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do executes one request and decodes a JSON body into result when non-nil.
func (c *Client) do(ctx context.Context, method, path string, prepare func(*resty.Request), result interface{}) (*resty.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID)
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if prepare != nil {
		prepare(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		err = c.transportError(ctx, method, path, err)
		logging.LogAPICall(c.logger, method, path, requestID, 0, time.Since(start), err)
		return nil, err
	}

	if resp.IsError() {
		err = c.statusError(method, path, resp)
		logging.LogAPICall(c.logger, method, path, requestID, resp.StatusCode(), time.Since(start), err)
		return resp, err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body(), result); err != nil {
			err = apperr.NewAPIError(method, path, resp.StatusCode(), "decoding response", err)
			logging.LogAPICall(c.logger, method, path, requestID, resp.StatusCode(), time.Since(start), err)
			return resp, err
		}
	}

	logging.LogAPICall(c.logger, method, path, requestID, resp.StatusCode(), time.Since(start), nil)
	return resp, nil
}

func (c *Client) transportError(ctx context.Context, method, path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.NewAPIError(method, path, 0, "request timed out", fmt.Errorf("%w: %v", apperr.ErrTimeout, err))
	}
	if errors.Is(err, context.Canceled) {
		return apperr.NewAPIError(method, path, 0, "request cancelled", err)
	}
	return apperr.NewAPIError(method, path, 0, "service unreachable", fmt.Errorf("%w: %v", apperr.ErrConnectionFailed, err))
}

func (c *Client) statusError(method, path string, resp *resty.Response) error {
	message := errorDetail(resp.Body())
	if message == "" {
		message = http.StatusText(resp.StatusCode())
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		c.SetToken("")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apperr.NewAPIError(method, path, resp.StatusCode(), message, apperr.ErrNotAuthenticated)
	}
	return apperr.NewAPIError(method, path, resp.StatusCode(), message, nil)
}

// errorDetail extracts the "detail" field the service puts in error bodies.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}
