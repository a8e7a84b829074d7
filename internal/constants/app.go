package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for config/log directories, the keyring service and the User-Agent.
	AppName = "ncopds"
)

// Worker pool
const (
	// DefaultWorkers - concurrent transfer units when config does not say otherwise
	DefaultWorkers = 4

	// MinWorkers / MaxWorkers - accepted range for the workers setting
	MinWorkers = 1
	MaxWorkers = 32

	// MessageBuffer - capacity of the worker to interactive loop channel
	MessageBuffer = 256
)

// Retry configuration for catalog requests
const (
	// MaxRetries - retries for transient network errors and 5xx/429 responses
	MaxRetries = 3

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (5s)
	RetryMaxDelay = 5 * time.Second
)

// Download behaviour
const (
	// ProgressInterval - minimum spacing between Progress messages for one download
	ProgressInterval = 100 * time.Millisecond

	// DownloadBufferSize - copy buffer for streaming downloads (256 KB)
	DownloadBufferSize = 256 * 1024

	// DiskSpaceBufferPercent - additional space to require beyond file size (10%)
	DiskSpaceBufferPercent = 0.10

	// PartialSuffix - suffix for files still being written
	PartialSuffix = ".part"

	// MaxFeedSize - upper bound for a catalog or OpenSearch document (16 MB)
	MaxFeedSize = 16 * 1024 * 1024
)

// Event bus
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size
	EventBusMaxBuffer = 4096
)

// HTTP Client Timeouts
const (
	// HTTPDialTimeout - TCP connect timeout (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPKeepAlive - TCP keep-alive period
	HTTPKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPResponseHeaderTimeout - time to wait for response headers (60 seconds)
	HTTPResponseHeaderTimeout = 60 * time.Second

	// HTTPMaxIdleConnsPerHost - idle connections kept per catalog host
	HTTPMaxIdleConnsPerHost = 8
)

// Interactive display
const (
	// StatusMessageTTL - how long transient status lines stay visible
	StatusMessageTTL = 4 * time.Second
)
