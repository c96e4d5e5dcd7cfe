package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"klinefetch/internal/pkg/text"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
	userAgent      = "klinefetch/1.0"
)

// NetworkError 覆盖超时、DNS、连接失败与非 2xx 状态码。
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("GET %s: http status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type Config struct {
	Timeout      time.Duration
	ProxyEnabled bool
	ProxyURL     string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout <= 0 {
		out.Timeout = defaultTimeout
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	return out
}

// Client 只负责一次 GET；重试由调用方（pager）决定。
type Client struct {
	http    *http.Client
	timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	httpClient := &http.Client{Timeout: final.Timeout}
	if final.ProxyEnabled && final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	return &Client{http: httpClient, timeout: final.Timeout}, nil
}

// NewWithHTTPClient 主要给测试注入 httptest 客户端。
func NewWithHTTPClient(c *http.Client) *Client {
	if c == nil {
		c = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{http: c, timeout: c.Timeout}
}

// HTTPClient 暴露底层 client，供 SDK 数据源复用同一套超时与代理。
func (c *Client) HTTPClient() *http.Client { return c.http }

// FetchText 发起 GET 并原样返回响应体文本，不假设其为 JSON。
func (c *Client) FetchText(ctx context.Context, rawURL string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &NetworkError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("%s", text.Truncate(string(body), 200))}
	}
	return string(body), nil
}

