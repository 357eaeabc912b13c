package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/fetch"
	"github.com/kbukum/fetchguard/logger"
	"github.com/kbukum/fetchguard/proxy"
)

// Client sends single requests, optionally through a proxy, and classifies
// failures for the retry policy. It does not retry, rate limit or cache;
// run it under a fetch.Orchestrator for that.
type Client struct {
	config Config
	log    *logger.Logger
	direct *http.Client

	mu      sync.Mutex
	proxied map[string]*http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		direct: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			Timeout:   cfg.Timeout,
		},
		proxied: make(map[string]*http.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrGet(c.log, logger.ComponentHTTP)
	return c, nil
}

// Get sends req as a GET through p. A nil p connects directly.
func (c *Client) Get(ctx context.Context, p *proxy.Identity, req Request) (*Response, error) {
	req.Method = http.MethodGet
	return c.Do(ctx, p, req)
}

// Do sends req through p. A nil p connects directly.
//
// Timeouts, connection failures, 429 and 5xx are Transient; other non-2xx
// statuses are Permanent. The response is returned alongside status errors.
func (c *Client) Do(ctx context.Context, p *proxy.Identity, req Request) (*Response, error) {
	hc, err := c.clientFor(p)
	if err != nil {
		return nil, err
	}

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, transportError(ctx, fmt.Errorf("read response body: %w", err))
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
		URL:        resp.Request.URL.String(),
	}

	if classErr := ClassifyStatusCode(resp.StatusCode, body); classErr != nil {
		c.log.Debug("request failed", map[string]interface{}{
			"status":          resp.StatusCode,
			"url":             result.URL,
			logger.FieldProxy: proxyLabel(p),
		})
		return result, classErr
	}
	return result, nil
}

// Operation adapts req to a fetch operation.
func (c *Client) Operation(req Request) fetch.Operation[*Response] {
	return func(ctx context.Context, p *proxy.Identity) (*Response, error) {
		return c.Do(ctx, p, req)
	}
}

// clientFor returns the memoised client for p's endpoint and credentials.
func (c *Client) clientFor(p *proxy.Identity) (*http.Client, error) {
	if p == nil || p.IsZero() {
		return c.direct, nil
	}

	u, err := p.URL()
	if err != nil {
		return nil, errors.Permanent(err).WithOp("httpclient")
	}
	key := u.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.proxied[key]; ok {
		return hc, nil
	}

	transport, err := proxy.Transport(p)
	if err != nil {
		return nil, errors.Permanent(err).WithOp("httpclient")
	}
	hc := &http.Client{Transport: transport, Timeout: c.config.Timeout}
	c.proxied[key] = hc
	return hc, nil
}

// CloseIdleConnections closes idle connections on every transport.
func (c *Client) CloseIdleConnections() {
	c.direct.CloseIdleConnections()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, hc := range c.proxied {
		hc.CloseIdleConnections()
	}
}

// buildRequest constructs an *http.Request from the client config and request.
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := req.Path
	if c.config.BaseURL != "" && !strings.HasPrefix(req.Path, "http://") && !strings.HasPrefix(req.Path, "https://") {
		url = strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, classify(&Error{Code: ErrCodeRequest, Message: fmt.Sprintf("encode body: %v", err), Err: err})
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, classify(&Error{Code: ErrCodeRequest, Message: fmt.Sprintf("create request: %v", err), Err: err})
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if body != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

// encodeBody converts a body value into an io.Reader and content type.
func encodeBody(body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	switch v := body.(type) {
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// flattenHeaders converts multi-value headers to single-value.
func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}

func proxyLabel(p *proxy.Identity) string {
	if p == nil {
		return "direct"
	}
	return p.String()
}
