package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/google/uuid"
)

const maxResponseBytes = 4 << 20

type LoginResult struct {
	Message    string `json:"message"`
	Username   string `json:"username"`
	RiskBucket string `json:"riskBucket"`
}

type ClassifyResult struct {
	Message    string `json:"message"`
	RiskBucket string `json:"riskBucket"`
}

type Recommendations struct {
	Bucket string          `json:"bucket"`
	Picks  json.RawMessage `json:"picks"`
}

type messageBody struct {
	Message string `json:"message"`
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client; the timeout passed to
// New is not applied to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Create submits a new questionnaire. fields may hold strings, numbers,
// booleans and one-level string maps.
func (c *Client) Create(ctx context.Context, fields map[string]any) (string, error) {
	var out messageBody
	if err := c.do(ctx, http.MethodPost, "/api/submit/create", fields, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/submit/login", body, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// Update merges profile into the stored profile of username.
func (c *Client) Update(ctx context.Context, username string, profile map[string]string) (string, error) {
	var out messageBody
	body := map[string]any{"username": username, "profile": profile}
	if err := c.do(ctx, http.MethodPost, "/api/submit/update", body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) Classify(ctx context.Context, username string) (ClassifyResult, error) {
	var out ClassifyResult
	if err := c.do(ctx, http.MethodPost, userPath(username, "classify"), nil, &out); err != nil {
		return ClassifyResult{}, err
	}
	return out, nil
}

func (c *Client) Recommendations(ctx context.Context, username string) (Recommendations, error) {
	var out Recommendations
	if err := c.do(ctx, http.MethodGet, userPath(username, "recommendations"), nil, &out); err != nil {
		return Recommendations{}, err
	}
	return out, nil
}

// Ping checks that the server answers its liveness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func userPath(username, action string) string {
	return "/api/users/" + url.PathEscape(username) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var msg messageBody
		_ = json.Unmarshal(data, &msg)
		return &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
