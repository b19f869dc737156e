// Package advisor is the HTTP client for the external risk advisor: the
// service that turns profile answers into a risk bucket and a risk bucket
// into stock picks. Both endpoints take form-encoded input and answer JSON.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/tidwall/gjson"
)

const (
	PredictPath   = "/api/predict"
	DashboardPath = "/api/dashboard"

	maxResponseBytes = 8 << 20
	maxErrorSnippet  = 256
)

// Dashboard is the advisor's recommendation for one bucket. Picks are passed
// through untouched: their columns belong to the advisor.
type Dashboard struct {
	Bucket string          `json:"bucket"`
	Picks  json.RawMessage `json:"picks"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers a callback invoked after every call with the
// endpoint name ("predict" or "dashboard").
func WithObserver(fn func(endpoint string, err error, d time.Duration)) Option {
	return func(c *Client) { c.observe = fn }
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     logging.Logger
	observe    func(endpoint string, err error, d time.Duration)
}

func NewClient(cfg Config, logger logging.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger.With("module", "advisor"),
		observe:    func(string, error, time.Duration) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Predict sends the profile answers and returns the risk bucket label.
func (c *Client) Predict(ctx context.Context, profile map[string]string) (bucket string, err error) {
	defer c.track(ctx, "predict", time.Now(), &err)

	form := make(url.Values, len(profile))
	for k, v := range profile {
		form.Set(k, v)
	}

	body, err := c.postForm(ctx, PredictPath, form)
	if err != nil {
		return "", err
	}

	res := gjson.GetBytes(body, "risk_bucket")
	if res.Type != gjson.String || res.String() == "" {
		return "", fmt.Errorf("%w: %s: response has no risk_bucket", common.ErrUpstream, PredictPath)
	}
	return res.String(), nil
}

// Dashboard fetches the picks for a bucket.
func (c *Client) Dashboard(ctx context.Context, bucket string) (d Dashboard, err error) {
	defer c.track(ctx, "dashboard", time.Now(), &err)

	body, err := c.postForm(ctx, DashboardPath, url.Values{"risk_bucket": {bucket}})
	if err != nil {
		return Dashboard{}, err
	}

	res := gjson.GetManyBytes(body, "bucket", "picks")

	d = Dashboard{Bucket: bucket, Picks: json.RawMessage("[]")}
	if res[0].Type == gjson.String {
		d.Bucket = res[0].String()
	}
	if res[1].IsArray() {
		d.Picks = json.RawMessage(res[1].Raw)
	} else if res[1].Exists() {
		return Dashboard{}, fmt.Errorf("%w: %s: picks is not an array", common.ErrUpstream, DashboardPath)
	}
	return d, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if id := logging.RequestID(ctx); id != "" {
		req.Header.Set(common.RequestIDHeaderName, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read response body: %v", common.ErrUpstream, path, err)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorSnippet {
			msg = msg[:maxErrorSnippet] + "...(truncated)"
		}
		return nil, fmt.Errorf("%w: %s: status %d: %s", common.ErrUpstream, path, resp.StatusCode, msg)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s: response is not valid JSON", common.ErrUpstream, path)
	}
	return body, nil
}

func (c *Client) track(ctx context.Context, endpoint string, start time.Time, err *error) {
	d := time.Since(start)
	c.observe(endpoint, *err, d)
	if *err != nil {
		c.logger.Warn(ctx, "advisor call failed", "endpoint", endpoint, "duration", d, "error", (*err).Error())
		return
	}
	c.logger.Debug(ctx, "advisor call", "endpoint", endpoint, "duration", d)
}
