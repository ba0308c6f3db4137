// Package httpclient holds the single outbound HTTP configuration shared by
// every fetch of the pipeline.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/ports"
)

// DefaultUserAgent mimics a desktop Chrome; some embed hosts reject anything else.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

const (
	defaultTimeout = 60 * time.Second
	maxPageBytes   = 10 << 20
	maxProbeBytes  = 64 << 10
)

// Config controls request headers and time budgets.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Client performs page fetches, embed probes and media streams.
type Client struct {
	http      *http.Client
	userAgent string
	timeout   time.Duration
	pageLimit int64
}

var (
	_ ports.PageFetcher = (*Client)(nil)
	_ ports.Prober      = (*Client)(nil)
	_ ports.MediaOpener = (*Client)(nil)
)

// New builds a Client. A nil httpClient gets a pooled transport whose header
// timeout matches cfg.Timeout; streams have no overall deadline.
func New(cfg Config, httpClient *http.Client) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: newTransport(timeout)}
	}
	return &Client{http: httpClient, userAgent: userAgent, timeout: timeout, pageLimit: maxPageBytes}
}

// FetchPage returns the body of a successful GET.
func (c *Client) FetchPage(ctx context.Context, req ports.FetchRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.pageLimit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrFetch, req.URL, err)
	}
	if int64(len(body)) > c.pageLimit {
		return nil, fmt.Errorf("%w: %s: page too large (over %d bytes)", domain.ErrFetch, req.URL, c.pageLimit)
	}
	return body, nil
}

// Probe succeeds when the target answers with a 2xx status.
func (c *Client) Probe(ctx context.Context, req ports.FetchRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBytes))
	return resp.Body.Close()
}

// OpenStream returns the response body for the caller to consume and close.
func (c *Client) OpenStream(ctx context.Context, req ports.FetchRequest) (io.ReadCloser, int64, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) do(ctx context.Context, req ports.FetchRequest) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request %s: %w", domain.ErrFetch, req.URL, err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %w", domain.ErrFetch, req.URL, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", domain.ErrFetch, req.URL, resp.Status)
	}
	return resp, nil
}

func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
