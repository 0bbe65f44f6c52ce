package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

const (
	defaultMaxResponseBytes = 1 << 20
	errorSnippetBytes       = 512
)

// Config configures a JSON-over-HTTP provider client.
type Config struct {
	ProviderID       string
	Endpoint         string
	Method           string
	APIKey           string
	APIKeyHeader     string
	APIKeyPrefix     string
	QueryAPIKeyParam string
	StaticHeaders    map[string]string
	HTTPClient       *http.Client
	MaxResponseBytes int64
}

// Client performs provider calls and maps failures onto contracts.ProviderError.
type Client struct {
	cfg    Config
	client *http.Client
}

// Request is one provider call. Zero values fall back to the client config.
type Request struct {
	Method      string
	Endpoint    string
	Query       url.Values
	Body        any
	RawBody     io.Reader
	ContentType string
	Headers     map[string]string
}

// New constructs a provider HTTP client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProviderID) == "" {
		return nil, fmt.Errorf("provider_id is required")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("endpoint is required for provider %q", cfg.ProviderID)
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parse endpoint for provider %q: %w", cfg.ProviderID, err)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if cfg.StaticHeaders == nil {
		cfg.StaticHeaders = map[string]string{}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{cfg: cfg, client: client}, nil
}

// ProviderID returns provider identity.
func (c *Client) ProviderID() string {
	return c.cfg.ProviderID
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// Do sends req and decodes a 2xx JSON response into out. Deadlines come from ctx.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	method := req.Method
	if method == "" {
		method = c.cfg.Method
	}
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = c.cfg.Endpoint
	}
	query := url.Values{}
	for key, values := range req.Query {
		query[key] = append([]string(nil), values...)
	}
	if c.cfg.QueryAPIKeyParam != "" && c.cfg.APIKey != "" {
		query.Set(c.cfg.QueryAPIKeyParam, c.cfg.APIKey)
	}
	if len(query) > 0 {
		var err error
		endpoint, err = withQuery(endpoint, query)
		if err != nil {
			return contracts.NewFatalError(c.cfg.ProviderID, "provider_endpoint_invalid", err)
		}
	}

	body := req.RawBody
	contentType := req.ContentType
	if body == nil && req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return contracts.NewFatalError(c.cfg.ProviderID, "provider_request_encode", err)
		}
		body = bytes.NewReader(payload)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return contracts.NewFatalError(c.cfg.ProviderID, "provider_request_invalid", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.APIKeyHeader != "" && c.cfg.APIKey != "" {
		httpReq.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKeyPrefix+c.cfg.APIKey)
	}
	for key, value := range c.cfg.StaticHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return normalizeNetworkError(c.cfg.ProviderID, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes))
	if err != nil {
		return normalizeNetworkError(c.cfg.ProviderID, err)
	}
	if statusErr := normalizeStatus(c.cfg.ProviderID, resp.StatusCode, payload); statusErr != nil {
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return contracts.NewTransientError(c.cfg.ProviderID, "provider_bad_response", err)
	}
	return nil
}

func withQuery(rawEndpoint string, values url.Values) (string, error) {
	u, err := url.Parse(rawEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, vals := range values {
		q.Del(key)
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Status  int
	Snippet string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Snippet)
}

func normalizeNetworkError(providerID string, err error) error {
	if errors.Is(err, context.Canceled) {
		return contracts.NewTransientError(providerID, "provider_cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contracts.NewTransientError(providerID, "provider_timeout", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return contracts.NewTransientError(providerID, "provider_timeout", err)
	}
	return contracts.NewTransientError(providerID, "provider_transport_error", err)
}

// normalizeStatus returns nil for 2xx. Auth and other client errors are fatal
// for the provider; throttling, request timeouts and server errors are transient.
func normalizeStatus(providerID string, status int, body []byte) error {
	if status >= 200 && status <= 299 {
		return nil
	}
	statusErr := &StatusError{Status: status, Snippet: snippet(body)}
	switch {
	case status == http.StatusTooManyRequests:
		return contracts.NewTransientError(providerID, "provider_overload", statusErr)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return contracts.NewTransientError(providerID, "provider_timeout", statusErr)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return contracts.NewFatalError(providerID, "provider_auth_or_policy_block", statusErr)
	case status >= 400 && status <= 499:
		return contracts.NewFatalError(providerID, "provider_client_error", statusErr)
	default:
		return contracts.NewTransientError(providerID, "provider_server_error", statusErr)
	}
}

func snippet(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > errorSnippetBytes {
		trimmed = trimmed[:errorSnippetBytes]
	}
	return trimmed
}

// NormalizeNetworkError maps transport-level errors to provider errors.
func NormalizeNetworkError(providerID string, err error) error {
	return normalizeNetworkError(providerID, err)
}

// NormalizeStatus maps an HTTP status to a provider error, or nil for 2xx.
func NormalizeStatus(providerID string, status int, body []byte) error {
	return normalizeStatus(providerID, status, body)
}
