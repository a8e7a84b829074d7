package http

import (
	"context"
	"crypto/x509"
	"errors"
	"math/rand"
	"net"
	nethttp "net/http"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrorType classifies a request failure for messages and retry decisions.
type ErrorType int

const (
	// ErrorTypeSuccess indicates the request succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeAuth indicates the server wants (other) credentials: 401/403
	ErrorTypeAuth
	// ErrorTypeNetwork indicates connection-level trouble: refused, reset, DNS, timeouts
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server-side trouble: 429 and 5xx
	ErrorTypeRetryable
	// ErrorTypeFatal indicates a request that will not succeed as-is: other 4xx, TLS, bad URL
	ErrorTypeFatal
	// ErrorTypeCancelled indicates the caller cancelled the request
	ErrorTypeCancelled
)

// ClassifyError determines the class of a request error. Typed errors are
// checked first; message matching is the fallback for wrapped transport errors.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == nethttp.StatusUnauthorized, statusErr.StatusCode == nethttp.StatusForbidden:
			return ErrorTypeAuth
		case statusErr.StatusCode == nethttp.StatusTooManyRequests, statusErr.StatusCode >= 500:
			return ErrorTypeRetryable
		default:
			return ErrorTypeFatal
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrorTypeNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorTypeNetwork
	}
	var certErr x509.UnknownAuthorityError
	if errors.As(err, &certErr) {
		return ErrorTypeFatal
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}
	if strings.Contains(errStr, "giving up after") {
		return ErrorTypeRetryable
	}
	return ErrorTypeFatal
}

// Describe renders err as a short user-facing line.
func Describe(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "cannot resolve host " + dnsErr.Name
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return err.Error()
}

// CalculateBackoff returns exponential backoff duration with full jitter.
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// backoff is the retryablehttp.Backoff used by Client. Servers that say when
// to come back (Retry-After on 429/503) are obeyed; otherwise full jitter.
func backoff(min, max time.Duration, attemptNum int, resp *nethttp.Response) time.Duration {
	if resp != nil && resp.Header.Get("Retry-After") != "" &&
		(resp.StatusCode == nethttp.StatusTooManyRequests || resp.StatusCode == nethttp.StatusServiceUnavailable) {
		return retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
	}
	return CalculateBackoff(attemptNum+1, min, max)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	case ErrorTypeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
