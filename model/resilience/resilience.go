// Package resilience decorates a model.Model with client-side rate limiting,
// retries with exponential backoff and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("model circuit open")

// Default settings.
const (
	defaultMaxFailures uint32        = 5
	defaultOpenTimeout time.Duration = 30 * time.Second
	defaultInterval    time.Duration = 60 * time.Second
	defaultBackoff     time.Duration = 500 * time.Millisecond
)

// Options configure the decorator.
type Options struct {
	// RequestsPerSecond limits call starts. Zero disables rate limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`

	// MaxRetries is the number of additional attempts for rate limited or
	// unavailable errors. Retries only happen before any chunk was forwarded.
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`

	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration `yaml:"open_timeout"`
	// Interval clears failure counts in the closed state.
	Interval time.Duration `yaml:"interval"`

	Logger logging.Logger `yaml:"-"`
}

// Model wraps an inner model.Model.
type Model struct {
	inner   model.Model
	opts    Options
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  logging.Logger
}

// New wraps inner.
func New(inner model.Model, optFns ...func(o *Options)) *Model {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxFailures == 0 {
		opts.MaxFailures = defaultMaxFailures
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	logger := logging.OrNoOp(opts.Logger)

	m := &Model{inner: inner, opts: opts, logger: logger}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	maxFailures := opts.MaxFailures
	m.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "model:" + inner.Info().Name,
		MaxRequests: 1,
		Interval:    opts.Interval,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return m
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		backoff := m.opts.Backoff

		for attempt := 0; ; attempt++ {
			forwarded, err := m.attempt(ctx, req, out)
			if err == nil {
				return
			}

			if forwarded || attempt >= m.opts.MaxRetries || !retryable(err) {
				errCh <- err
				return
			}

			m.logger.Warn("model call failed, retrying",
				"model", m.inner.Info().Name, "attempt", attempt+1, "backoff", backoff, "error", err)

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}()

	return out, errCh
}

func (m *Model) attempt(ctx context.Context, req model.Request, out chan<- model.Response) (bool, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	forwarded := false

	_, err := m.breaker.Execute(func() (struct{}, error) {
		respCh, innerErr := m.inner.Generate(ctx, req)
		for r := range respCh {
			select {
			case out <- r:
				forwarded = true
			case <-ctx.Done():
				return struct{}{}, ctx.Err()
			}
		}
		for e := range innerErr {
			if e != nil {
				return struct{}{}, e
			}
		}
		return struct{}{}, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, fmt.Errorf("%w: %s: %w", ErrCircuitOpen, m.inner.Info().Name, err)
	}

	return forwarded, err
}

func retryable(err error) bool {
	return errors.Is(err, model.ErrRateLimited) || errors.Is(err, model.ErrUnavailable)
}

// State returns the current breaker state.
func (m *Model) State() gobreaker.State { return m.breaker.State() }

// Info implements model.Model.
func (m *Model) Info() model.Info { return m.inner.Info() }
