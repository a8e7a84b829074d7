package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"os"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/http2"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/constants"
	"github.com/ncopds/ncopds/internal/logging"
)

// ConfigureHTTPClient builds the base client for catalog traffic: pooled
// transport, proxy mode from cfg and HTTP/2 when no proxy is in the way.
// The client has no overall timeout; requests are bounded by their context.
func ConfigureHTTPClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	transport := newTransport()

	proxy := cfg.Proxy
	switch strings.ToLower(proxy.Mode) {
	case config.ProxyModeNone, "":
		transport.Proxy = nil
		enableHTTP2(transport)

	case config.ProxyModeSystem:
		transport.Proxy = nethttp.ProxyFromEnvironment
		if !systemProxyActive() {
			enableHTTP2(transport)
		}

	case config.ProxyModeNTLM:
		if proxy.Host == "" {
			logger.Warn().Msg("proxy mode is ntlm but host is missing, connecting directly")
			return &nethttp.Client{Transport: transport}, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(proxy), proxy.NoProxy, logger)
		return &nethttp.Client{
			Transport: ntlmssp.Negotiator{RoundTripper: transport},
		}, nil

	case config.ProxyModeBasic:
		if proxy.Host == "" {
			logger.Warn().Msg("proxy mode is basic but host is missing, connecting directly")
			return &nethttp.Client{Transport: transport}, nil
		}
		if proxy.User != "" && proxy.Password == "" {
			logger.Warn().Msg("proxy user configured but password missing, proxy auth disabled")
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(proxy), proxy.NoProxy, logger)

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", proxy.Mode)
	}

	return &nethttp.Client{Transport: transport}, nil
}

func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   constants.HTTPMaxIdleConnsPerHost,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ResponseHeaderTimeout: constants.HTTPResponseHeaderTimeout,
	}
}

// enableHTTP2 turns on h2 unless DISABLE_HTTP2=true.
func enableHTTP2(tr *nethttp.Transport) {
	if os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		return
	}
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)
}

func systemProxyActive() bool {
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(proxy config.ProxyConfig) *url.URL {
	port := proxy.Port
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(proxy.Host, fmt.Sprintf("%d", port)),
	}

	// Empty password in URL can cause auth failures with some proxies
	if proxy.User != "" && proxy.Password != "" {
		proxyURL.User = url.UserPassword(proxy.User, proxy.Password)
	}
	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("proxy bypass")
		}
		return result, err
	}
}
