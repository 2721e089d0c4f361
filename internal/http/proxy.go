package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/constants"
	"golang.org/x/net/http/httpproxy"
)

// ConfigureHTTPClient configures an HTTP client with proxy settings
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	client := &nethttp.Client{
		Transport: transport,
		Timeout:   constants.HTTPProbeTimeout,
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case config.ProxyModeNone, "":
		transport.Proxy = nil

	case config.ProxyModeSystem:
		transport.Proxy = nethttp.ProxyFromEnvironment

	case config.ProxyModeNTLM:
		if cfg.ProxyHost == "" {
			return nil, fmt.Errorf("proxy mode is ntlm but proxy_host is empty")
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg, true), cfg.NoProxy)

		// The negotiator answers the proxy's 407 challenge with NTLM
		// using the credentials embedded in the proxy URL.
		client.Transport = ntlmssp.Negotiator{RoundTripper: transport}

	case config.ProxyModeBasic:
		if cfg.ProxyHost == "" {
			return nil, fmt.Errorf("proxy mode is basic but proxy_host is empty")
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg, true), cfg.NoProxy)

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	return client, nil
}

// buildProxyURL constructs a proxy URL from config. Credentials are only
// embedded when both user and password are known.
func buildProxyURL(cfg *config.Config, withAuth bool) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.ProxyHost, fmt.Sprint(port)),
	}
	if withAuth && cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy
// bypass list. With an empty list it behaves like nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	proxyFunc := (&httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}).ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
}

// ProxyURLFor returns the proxy that applies to target under cfg, or "" for
// a direct connection. The result is handed to spotdl as --proxy. NTLM
// credentials cannot be passed that way, so only basic auth is embedded.
func ProxyURLFor(cfg *config.Config, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", target, err)
	}

	var pc *httpproxy.Config
	switch strings.ToLower(cfg.ProxyMode) {
	case config.ProxyModeNone, "":
		return "", nil
	case config.ProxyModeSystem:
		pc = httpproxy.FromEnvironment()
	case config.ProxyModeBasic, config.ProxyModeNTLM:
		if cfg.ProxyHost == "" {
			return "", fmt.Errorf("proxy mode is %s but proxy_host is empty", cfg.ProxyMode)
		}
		p := buildProxyURL(cfg, strings.ToLower(cfg.ProxyMode) == config.ProxyModeBasic).String()
		pc = &httpproxy.Config{HTTPProxy: p, HTTPSProxy: p, NoProxy: cfg.NoProxy}
	default:
		return "", fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	proxy, err := pc.ProxyFunc()(u)
	if err != nil || proxy == nil {
		return "", err
	}
	return proxy.String(), nil
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by CLI to determine if interactive prompt is needed.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != config.ProxyModeBasic && mode != config.ProxyModeNTLM {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
