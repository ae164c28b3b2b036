package clients

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// DefaultShouldRetry determines if an HTTP request should be retried.
// Retries on network errors, server errors (5xx), and rate limits (429).
func DefaultShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// HTTPExecutorConfig configures the HTTP executor
type HTTPExecutorConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// ShouldRetry determines if a response should trigger a retry
	ShouldRetry func(resp *http.Response, err error) bool
}

// DefaultHTTPExecutorConfig returns sensible defaults
func DefaultHTTPExecutorConfig() HTTPExecutorConfig {
	return HTTPExecutorConfig{
		MaxRetries:  3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		ShouldRetry: DefaultShouldRetry,
	}
}

func normalizeHTTPExecutorConfig(cfg HTTPExecutorConfig) HTTPExecutorConfig {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = DefaultShouldRetry
	}
	return cfg
}

// NewHTTPRetryPolicy creates a retry policy for HTTP requests
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewHTTPRetryPolicy(cfg HTTPExecutorConfig) retrypolicy.RetryPolicy[*http.Response] {
	cfg = normalizeHTTPExecutorConfig(cfg)
	builder := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1). // 10% jitter
		HandleIf(func(resp *http.Response, err error) bool {
			return cfg.ShouldRetry(resp, err)
		})

	return builder.Build()
}

// NewHTTPExecutor creates a failsafe executor for HTTP requests
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewHTTPExecutor(cfg HTTPExecutorConfig) failsafe.Executor[*http.Response] {
	return failsafe.With(NewHTTPRetryPolicy(cfg))
}

// RateLimitExecutorConfig configures a retry policy that handles only
// provider rate limiting (HTTP 429). The delay before each retry is read
// from the provider's reset-time header (unix seconds); retries are
// unlimited, with no jitter and no cap.
type RateLimitExecutorConfig struct {
	// ResetHeader names the header carrying the reset time. Defaults to
	// "x-rate-limit-reset".
	ResetHeader string

	// OnWait is invoked with the computed delay before each wait.
	OnWait func(delay time.Duration)
}

// NewRateLimitExecutor creates a failsafe executor whose only retry
// condition is HTTP 429, waiting until the upstream's advertised reset time.
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewRateLimitExecutor(cfg RateLimitExecutorConfig) failsafe.Executor[*http.Response] {
	header := cfg.ResetHeader
	if header == "" {
		header = "x-rate-limit-reset"
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithMaxRetries(-1). // unlimited
		HandleIf(func(resp *http.Response, err error) bool {
			return err == nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests
		}).
		WithDelayFunc(func(exec failsafe.ExecutionAttempt[*http.Response]) time.Duration {
			resp := exec.LastResult()
			delay := rateLimitResetDelay(resp, header, time.Now())
			if cfg.OnWait != nil {
				cfg.OnWait(delay)
			}
			return delay
		}).
		Build()

	return failsafe.With(retry)
}

func rateLimitResetDelay(resp *http.Response, header string, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	resetUnix, err := strconv.ParseInt(resp.Header.Get(header), 10, 64)
	if err != nil {
		return 0
	}
	delay := time.Unix(resetUnix, 0).Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}

// ExecuteHTTP runs an HTTP request through the executor
func ExecuteHTTP(ctx context.Context, executor failsafe.Executor[*http.Response], fn func() (*http.Response, error)) (*http.Response, error) {
	return executor.WithContext(ctx).Get(fn)
}
