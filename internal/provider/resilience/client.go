package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned when the breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrUnexpectedStatus is wrapped by StatusError.
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// maxErrorBody bounds how much of a failed response is kept for errors.
const maxErrorBody = 512

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the provider (required).
	Name string

	// Timeout per HTTP attempt. Default: 10 seconds
	Timeout time.Duration

	// MaxRetries after the first attempt. Default: 3
	MaxRetries uint64

	// InitialInterval of the exponential backoff. Default: 100ms
	InitialInterval time.Duration

	// MaxInterval of the exponential backoff. Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker configuration. Default: DefaultCircuitBreakerConfig(Name)
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, has the client registered under Name and
	// receives a success or failure record for every call.
	Registry *Registry

	// UserAgent sent with JSON requests.
	UserAgent string

	// Logger for retries and breaker transitions.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the defaults for a provider client.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
		UserAgent:       "aqiforecast/1.0",
	}
}

// Client is an HTTP client with breaker, retries and health reporting.
type Client struct {
	name           string
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	registry       *Registry
	logger         zerolog.Logger
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	logger := cfg.Logger.With().Str("provider", cfg.Name).Logger()
	userHook := cbConfig.OnStateChange
	cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		if userHook != nil {
			userHook(name, from, to)
		}
	}

	c := &Client{
		name:           cfg.Name,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		registry:       cfg.Registry,
		logger:         logger,
		config:         cfg,
	}
	if c.registry != nil {
		c.registry.Register(c.name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do executes req with breaker protection. Network errors and 5xx
// responses are retried with exponential backoff; other responses are
// returned as is. A 5xx that survives every retry is returned with a nil
// error so the caller can inspect it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext is Do bound to ctx instead of the request's context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response
	operation := func() error {
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &StatusError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if err != nil {
			if resp != nil {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				lastResp = resp
			}
			return err
		}
		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug().Err(err).Dur("wait", wait).Str("url", req.URL.Redacted()).Msg("retrying provider request")
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if err != nil && lastResp != nil {
		c.record(&StatusError{StatusCode: lastResp.StatusCode})
		return lastResp, nil
	}
	c.record(err)
	if err != nil {
		return nil, err
	}
	return lastResp, nil
}

// GetJSON fetches url and decodes a 2xx JSON body into dst. Any other
// status is returned as a *StatusError.
func (c *Client) GetJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) record(err error) {
	if c.registry == nil {
		return
	}
	if err != nil {
		c.registry.RecordFailure(c.name, err)
		return
	}
	c.registry.RecordSuccess(c.name)
}

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: %d %s", ErrUnexpectedStatus, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
