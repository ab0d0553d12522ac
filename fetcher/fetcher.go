// Package fetcher downloads listing and article pages over HTTP. It sends a
// browser User-Agent, decodes compressed bodies, caps body size and can retry
// a forbidden listing request once with a full browser header set.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

var (
	// ErrUnexpectedStatus is wrapped by every StatusError.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrBodyTooLarge     = errors.New("response body too large")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// BrowserHeaders returns the header set sent on a forbidden-retry.
func BrowserHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept-Encoding":           "gzip, deflate, br",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
		"Referer":                   "https://www.google.com/",
	}
}

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	// Headers are added to every request.
	Headers map[string]string
	Logger  *zap.Logger
}

// Page is a downloaded response body.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
	Attempts    int
}

// Client fetches pages with a shared resty client.
type Client struct {
	http         *resty.Client
	maxBodyBytes int64
	logger       *zap.Logger
}

// New constructs a Client. Zero options fall back to the package defaults.
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetLogger(opts.Logger.Sugar())
	if len(opts.Headers) > 0 {
		rc.SetHeaders(opts.Headers)
	}

	return &Client{
		http:         rc,
		maxBodyBytes: opts.MaxBodyBytes,
		logger:       opts.Logger,
	}
}

// HTTPClient exposes the underlying client for robots.txt fetches.
func (c *Client) HTTPClient() *http.Client {
	return c.http.GetClient()
}

type requestConfig struct {
	retryForbidden bool
}

// RequestOption adjusts a single Get call.
type RequestOption func(*requestConfig)

// WithForbiddenRetry retries a 403 response once with BrowserHeaders added.
func WithForbiddenRetry() RequestOption {
	return func(rc *requestConfig) {
		rc.retryForbidden = true
	}
}

// Get downloads rawURL. A non-2xx response returns a *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*Page, error) {
	var rc requestConfig
	for _, opt := range opts {
		opt(&rc)
	}

	page, err := c.do(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	page.Attempts = 1

	if page.StatusCode == http.StatusForbidden && rc.retryForbidden {
		c.logger.Info("retrying forbidden request with browser headers", zap.String("url", rawURL))
		page, err = c.do(ctx, rawURL, BrowserHeaders())
		if err != nil {
			return nil, err
		}
		page.Attempts = 2
	}

	if page.StatusCode < 200 || page.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: page.StatusCode}
	}
	return page, nil
}

func (c *Client) do(ctx context.Context, rawURL string, headers map[string]string) (*Page, error) {
	req := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	raw := resp.RawResponse
	body, err := c.readBody(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	finalURL := rawURL
	if raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  raw.StatusCode,
		ContentType: raw.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(reader, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, c.maxBodyBytes)
	}
	return body, nil
}
