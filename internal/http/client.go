// Package http builds the proxy-aware HTTP clients used by doctor's
// connectivity probe and the cloud publishers.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	nethttp "net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/logging"
	"golang.org/x/net/http2"
)

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

// NewRetryClient wraps ConfigureHTTPClient with retryablehttp.
func NewRetryClient(cfg *config.Config, logger *logging.Logger) (*retryablehttp.Client, error) {
	httpClient, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	// HTTP/2 only on a direct plain transport; proxies tend to break it
	if tr, ok := httpClient.Transport.(*nethttp.Transport); ok {
		if tr.Proxy == nil && os.Getenv("DISABLE_HTTP2") != "true" {
			tr.ForceAttemptHTTP2 = true
			_ = http2.ConfigureTransport(tr)
		} else {
			tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.HTTPRetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand back the last response instead of a "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retryClient, nil
}

// ProbeResult is the outcome of one connectivity probe.
type ProbeResult struct {
	URL     string
	Status  int
	Latency time.Duration
	Err     error
}

// OK reports whether the host answered at all. Any HTTP status counts:
// the probe checks reachability, not the resource.
func (r ProbeResult) OK() bool {
	return r.Err == nil && r.Status > 0
}

// Probe sends a HEAD request to each URL and reports reachability.
func Probe(ctx context.Context, client *retryablehttp.Client, urls []string) []ProbeResult {
	results := make([]ProbeResult, 0, len(urls))
	for _, u := range urls {
		res := ProbeResult{URL: u}
		start := time.Now()

		req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodHead, u, nil)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}

		resp, err := client.Do(req)
		res.Latency = time.Since(start)
		if err != nil {
			res.Err = err
		} else {
			res.Status = resp.StatusCode
			resp.Body.Close()
		}
		results = append(results, res)
	}
	return results
}
