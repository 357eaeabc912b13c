package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckURL echoes the caller's public IPv4 address as plain text.
const DefaultCheckURL = "https://ipv4.icanhazip.com"

const (
	defaultCheckTimeout     = 10 * time.Second
	defaultCheckConcurrency = 4
	maxCheckBody            = 256
)

// CheckResult is the outcome of one connectivity check. Error is empty on
// success.
type CheckResult struct {
	Proxy      string        `json:"proxy"`
	OK         bool          `json:"ok"`
	IP         string        `json:"ip,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

type checkOptions struct {
	url         string
	timeout     time.Duration
	concurrency int
}

// CheckOption configures CheckConnection and CheckPool.
type CheckOption func(*checkOptions)

// WithCheckURL sets the IP echo URL.
func WithCheckURL(url string) CheckOption {
	return func(o *checkOptions) { o.url = url }
}

// WithCheckTimeout bounds each check. Defaults to 10s.
func WithCheckTimeout(d time.Duration) CheckOption {
	return func(o *checkOptions) { o.timeout = d }
}

// WithCheckConcurrency bounds how many proxies CheckPool checks at once.
func WithCheckConcurrency(n int) CheckOption {
	return func(o *checkOptions) { o.concurrency = n }
}

func newCheckOptions(opts []CheckOption) checkOptions {
	o := checkOptions{url: DefaultCheckURL, timeout: defaultCheckTimeout, concurrency: defaultCheckConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = defaultCheckTimeout
	}
	if o.concurrency <= 0 {
		o.concurrency = defaultCheckConcurrency
	}
	return o
}

// CheckConnection fetches the IP echo URL through id and reports the egress
// address. Only a 200 response counts as connected.
func CheckConnection(ctx context.Context, id Identity, opts ...CheckOption) CheckResult {
	o := newCheckOptions(opts)
	res := CheckResult{Proxy: id.String()}

	tr, err := Transport(&id)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer tr.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	resp, err := (&http.Client{Transport: tr}).Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return res
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCheckBody))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.IP = strings.TrimSpace(string(body))
	res.OK = true
	return res
}

// CheckPool checks every identity, a few at a time. Results keep pool order.
func CheckPool(ctx context.Context, pool []Identity, opts ...CheckOption) []CheckResult {
	o := newCheckOptions(opts)
	results := make([]CheckResult, len(pool))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, id := range pool {
		g.Go(func() error {
			results[i] = CheckConnection(ctx, id, opts...)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
