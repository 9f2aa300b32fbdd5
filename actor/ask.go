package actor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// AskConfig tunes the per-attempt timeout and retry/backoff behavior of an
// Ask call.
type AskConfig struct {
	// Timeout bounds a single attempt, not the call as a whole.
	Timeout time.Duration

	// MaxRetries is the number of retries attempted after the first
	// failure; MaxRetries=2 means up to 3 total attempts.
	MaxRetries int

	// BaseDelay is the backoff duration used after the first failed
	// attempt.
	BaseDelay time.Duration

	// Multiplier scales BaseDelay on each subsequent retry.
	Multiplier float64

	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration

	// RetryableKinds lists the ErrorKinds worth retrying. Any error whose
	// Kind is not in this set is treated as final on first failure.
	// DefaultAskConfig sets it to KindTimeout only; a nil or empty set
	// retries nothing.
	RetryableKinds map[ErrorKind]bool
}

// AskOption configures an AskConfig starting from DefaultAskConfig.
type AskOption func(*AskConfig)

// DefaultAskConfig returns the runtime's out-of-the-box ask tuning: a 5s
// per-attempt timeout, 3 retries, 100ms base delay doubling up to a 5s cap,
// retrying only on timeout.
func DefaultAskConfig() AskConfig {
	return AskConfig{
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		BaseDelay:      100 * time.Millisecond,
		Multiplier:     2.0,
		MaxDelay:       5 * time.Second,
		RetryableKinds: map[ErrorKind]bool{KindTimeout: true},
	}
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) AskOption {
	return func(c *AskConfig) { c.Timeout = d }
}

// WithMaxRetries overrides the retry count.
func WithMaxRetries(n int) AskOption {
	return func(c *AskConfig) { c.MaxRetries = n }
}

// WithBackoff overrides the base delay, multiplier, and cap in one call.
func WithBackoff(base time.Duration, multiplier float64, max time.Duration) AskOption {
	return func(c *AskConfig) {
		c.BaseDelay = base
		c.Multiplier = multiplier
		c.MaxDelay = max
	}
}

// WithRetryableKinds overrides which ErrorKinds are retried.
func WithRetryableKinds(kinds ...ErrorKind) AskOption {
	return func(c *AskConfig) {
		set := make(map[ErrorKind]bool, len(kinds))
		for _, k := range kinds {
			set[k] = true
		}
		c.RetryableKinds = set
	}
}

// CalculateBackoff computes the delay before the attempt-th retry (1-indexed
// by the attempt number that just failed), as base * multiplier^(attempt-1),
// capped at max.
func CalculateBackoff(attempt int, base time.Duration, multiplier float64, max time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	scaled := float64(base) * math.Pow(multiplier, float64(attempt-1))
	if scaled > float64(max) {
		return max
	}
	return time.Duration(scaled)
}

// completionSlot is the single-use result box a reply handle funnels its
// Tell into. It is safe to complete concurrently from multiple goroutines;
// only the first call has any effect.
type completionSlot[T any] struct {
	once   sync.Once
	result chan *Envelope
}

func newCompletionSlot[T any]() *completionSlot[T] {
	return &completionSlot[T]{result: make(chan *Envelope, 1)}
}

func (s *completionSlot[T]) complete(env *Envelope) bool {
	completed := false
	s.once.Do(func() {
		s.result <- env
		completed = true
	})
	return completed
}

// Ask sends payload to target and waits for a single typed reply, retrying
// on retryable failures with exponential backoff between attempts. The
// expected response type is given by the type parameter T; a reply whose
// payload is not identity-equal to T surfaces as a ResponseTypeMismatchError
// rather than being silently coerced.
func Ask[T any](ctx context.Context, system *ActorSystem, target ActorRef, payload any, opts ...AskOption) (T, error) {
	cfg := DefaultAskConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var zero T
	if !target.IsAlive() {
		return zero, ErrInvalidState(fmt.Sprintf("ask target %q is not alive", target.ID()))
	}

	correlationID := ""
	if env, ok := payload.(*Envelope); ok {
		correlationID = env.CorrelationID()
		payload = env.Payload()
	}

	var lastErr error
	totalAttempts := cfg.MaxRetries + 1
	for attempt := 1; attempt <= totalAttempts; attempt++ {
		system.trace(TraceEvent{
			CorrelationID: correlationID,
			EventName:     traceAskAttempt,
			ActorID:       target.ID(),
			Payload:       payload,
			Timestamp:     time.Now(),
		})

		resp, err := attemptAsk[T](ctx, system, target, payload, cfg.Timeout, attempt, correlationID)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		_, retryable := classifyAskError(err, cfg)
		if !retryable || attempt == totalAttempts {
			event := traceAskFailedFinal
			if !retryable {
				event = traceAskFailedNonRetryable
			}
			system.trace(TraceEvent{
				CorrelationID: correlationID,
				EventName:     event,
				ActorID:       target.ID(),
				Payload:       err,
				Timestamp:     time.Now(),
			})
			return zero, lastErr
		}

		delay := CalculateBackoff(attempt, cfg.BaseDelay, cfg.Multiplier, cfg.MaxDelay)
		system.trace(TraceEvent{
			CorrelationID: correlationID,
			EventName:     traceAskRetry,
			ActorID:       target.ID(),
			Payload:       delay,
			Timestamp:     time.Now(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

// attemptAsk performs exactly one send/wait cycle of the ask protocol: it
// mints an ephemeral reply handle, tells target, and races the reply against
// the per-attempt timeout.
func attemptAsk[T any](
	ctx context.Context,
	system *ActorSystem,
	target ActorRef,
	payload any,
	timeout time.Duration,
	attempt int,
	correlationID string,
) (T, error) {
	var zero T

	slot := newCompletionSlot[T]()
	handle := &replyHandle{
		id:       fmt.Sprintf("ask-reply-%s-%d", target.ID(), attempt),
		complete: slot.complete,
	}

	sendOpts := []EnvelopeOption{WithReplyTo(handle), WithSender(handle)}
	if correlationID != "" {
		sendOpts = append(sendOpts, WithCorrelationID(correlationID))
	}
	if err := target.Tell(payload, sendOpts...); err != nil {
		return zero, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case env := <-slot.result:
		resp, ok := env.Payload().(T)
		if !ok {
			return zero, NewResponseTypeMismatchError(
				fmt.Sprintf("%T", zero), fmt.Sprintf("%T", env.Payload()),
			)
		}
		return resp, nil
	case <-attemptCtx.Done():
		// Stop the reply handle: complete its slot with a cancellation error
		// so that a reply arriving after this point is dropped instead of
		// racing a future attempt's handle for the same logical ask.
		slot.complete(NewEnvelope(errCancelled))
		if ctx.Err() != nil && attemptCtx.Err() == ctx.Err() {
			return zero, ctx.Err()
		}
		return zero, NewTimeoutError(target.ID(), timeout, attempt)
	}
}

func classifyAskError(err error, cfg AskConfig) (ErrorKind, bool) {
	kind := KindHandlerFailure
	switch e := err.(type) {
	case *Error:
		kind = e.Kind
	case *TimeoutError:
		kind = e.Kind()
	case *ResponseTypeMismatchError:
		kind = e.Kind()
	}
	return kind, cfg.RetryableKinds[kind]
}
