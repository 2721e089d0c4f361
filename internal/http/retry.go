package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates authentication/authorization failure (403, expired token, bad SAS)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates network/connection issues
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors that can be retried (500, 502, 503, throttling)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates client errors that should not be retried
	ErrorTypeFatal
)

// RetryConfig holds parameters for ExecuteWithRetry.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (default: 4)
	MaxAttempts int
	// InitialDelay is the base delay for exponential backoff (default: 200ms)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 10s)
	MaxDelay time.Duration
	// OnRetry is an optional callback invoked before each retry attempt
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultRetryConfig returns the settings used for cloud uploads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

var (
	credentialMarkers = []string{
		"expired", "invalid token", "403", "unauthorized", "authentication failed",
		"authenticationfailed", "invalid sas", "signature not valid", "authorization failure",
	}
	networkMarkers = []string{
		"tls handshake timeout", "connection reset", "i/o timeout", "eof",
		"connection refused", "broken pipe", "timeout",
	}
	retryableMarkers = []string{
		"requesttimeout", "internalerror", "serviceunavailable", "slowdown", "throttl",
		"429", "500", "502", "503", "504", "server busy", "serverbusy", "operationtimeout",
	}
)

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// ClassifyError determines the error type for retry strategy.
// The markers cover both S3 and Azure Blob error text.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeFatal
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, credentialMarkers):
		return ErrorTypeCredential
	case containsAny(errStr, networkMarkers):
		return ErrorTypeNetwork
	case containsAny(errStr, retryableMarkers):
		return ErrorTypeRetryable
	default:
		// Unknown errors are fatal to avoid retrying bad requests forever
		return ErrorTypeFatal
	}
}

// CalculateBackoff returns exponential backoff duration with full jitter:
// random(0, min(maxDelay, initialDelay * 2^attempt)).
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}
	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// ExecuteWithRetry runs operation until it succeeds, fails fatally, runs out
// of attempts or ctx is done. Credential errors are not retried: uploads use
// static credentials, so a rejected signature will not fix itself.
func ExecuteWithRetry(ctx context.Context, cfg RetryConfig, operation func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyError(err)
		if errType == ErrorTypeFatal || errType == ErrorTypeCredential {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, errType)
		}
		timer := time.NewTimer(CalculateBackoff(attempt+1, cfg.InitialDelay, cfg.MaxDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
