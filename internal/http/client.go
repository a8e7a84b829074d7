// Package http is the network layer for catalog fetches and file downloads.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	nethttp "net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/constants"
	"github.com/ncopds/ncopds/internal/logging"
	"github.com/ncopds/ncopds/internal/version"
)

// Accept header values.
const (
	AcceptFeed       = "application/atom+xml;profile=opds-catalog, application/atom+xml;q=0.9, application/xml;q=0.8, */*;q=0.1"
	AcceptOpenSearch = "application/opensearchdescription+xml, application/xml;q=0.9, */*;q=0.1"
)

// ErrTooLarge is returned by Get when a document exceeds the size limit.
var ErrTooLarge = errors.New("response body too large")

// BasicAuth is a username and secret for one request. It is never stored.
type BasicAuth struct {
	Username string
	Password string
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, nethttp.StatusText(e.StatusCode))
	}
	return "server returned " + status
}

// Stream is an open download.
type Stream struct {
	Body io.ReadCloser
	// Size is the announced length, -1 when unknown.
	Size        int64
	ContentType string
	// Filename comes from Content-Disposition; empty when absent.
	Filename string
	// URL is the final address after redirects.
	URL string
}

// Client performs catalog requests with retries and per-host rate limiting.
type Client struct {
	http      *nethttp.Client
	userAgent string
	logger    *logging.Logger

	limit    rate.Limit
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// NewClient builds the catalog client from cfg.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	base, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = base
	retryClient.RetryMax = constants.MaxRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.Backoff = backoff
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand back the last response so callers see the real status.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		http:      retryClient.StandardClient(),
		userAgent: constants.AppName + "/" + version.Version + " (+opds)",
		logger:    logger,
		limit:     limit,
		limiters:  make(map[string]*rate.Limiter),
	}, nil
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.limit, 1)
		c.limiters[host] = l
	}
	return l
}

func (c *Client) do(ctx context.Context, rawURL string, auth *BasicAuth, accept string) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if err := c.limiterFor(req.URL.Host).Wait(ctx); err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	c.logger.Debug().Str("url", rawURL).Bool("auth", auth != nil).Msg("GET")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}
	return resp, nil
}

// Get fetches a document into memory, refusing bodies over MaxFeedSize.
// It returns the body and the final URL after redirects.
func (c *Client) Get(ctx context.Context, rawURL string, auth *BasicAuth, accept string) ([]byte, string, error) {
	resp, err := c.do(ctx, rawURL, auth, accept)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxFeedSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > constants.MaxFeedSize {
		return nil, "", ErrTooLarge
	}
	return data, finalURL(resp, rawURL), nil
}

// Stream opens a download. The caller must close Stream.Body.
func (c *Client) Stream(ctx context.Context, rawURL string, auth *BasicAuth) (*Stream, error) {
	resp, err := c.do(ctx, rawURL, auth, "")
	if err != nil {
		return nil, err
	}
	return &Stream{
		Body:        resp.Body,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    DispositionFilename(resp.Header.Get("Content-Disposition")),
		URL:         finalURL(resp, rawURL),
	}, nil
}

func finalURL(resp *nethttp.Response, fallback string) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return fallback
}

// DispositionFilename extracts the base filename from a Content-Disposition
// header. RFC 2231 filename* values are decoded by mime.ParseMediaType.
func DispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := strings.TrimSpace(params["filename"])
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, `\`, "/")
	return path.Base(name)
}

// URLFilename returns the unescaped last path segment of rawURL.
func URLFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
