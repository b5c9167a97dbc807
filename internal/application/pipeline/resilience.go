// Package pipeline composes price sources into the lookup chain:
// mode(snapshot(cache(fallback(resilient(source)...))), mock).
// Every stage implements port.PriceProvider and reports "no price" as a
// nil quote with a nil error.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

// RetryPolicy controls how a source is retried after a miss.
type RetryPolicy struct {
	// RetryCount is the number of retries after the first attempt.
	RetryCount   int
	InitialDelay time.Duration
	Exponential  bool
	// MaxDelay caps a single wait when positive.
	MaxDelay time.Duration
	// AttemptTimeout bounds each call when positive.
	AttemptTimeout time.Duration
}

// Delay returns the wait before retry number i, counting from zero.
func (p RetryPolicy) Delay(i int) time.Duration {
	d := p.InitialDelay
	if p.Exponential {
		for n := 0; n < i; n++ {
			d *= 2
			if p.MaxDelay > 0 && d >= p.MaxDelay {
				break
			}
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Resilient retries a source on misses and gives up with a miss.
type Resilient struct {
	name    string
	inner   port.PriceProvider
	policy  RetryPolicy
	breaker *Breaker
	sleep   SleepFunc
	logger  *slog.Logger
}

var _ port.PriceProvider = (*Resilient)(nil)

func NewResilient(name string, inner port.PriceProvider, policy RetryPolicy, breaker *Breaker, logger *slog.Logger) *Resilient {
	return &Resilient{
		name:    name,
		inner:   inner,
		policy:  policy,
		breaker: breaker,
		sleep:   sleepContext,
		logger:  logger,
	}
}

// WithSleep replaces the wait between retries.
func (r *Resilient) WithSleep(fn SleepFunc) *Resilient {
	r.sleep = fn
	return r
}

// TryGetPrice retries misses and errors. The breaker only counts lookups in
// which every attempt found the source unavailable; a source that answered
// without a price for this symbol is healthy.
func (r *Resilient) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	if !r.breaker.Allow() {
		r.logger.Debug("source skipped, circuit open", "source", r.name, "symbol", symbol)
		return nil, nil
	}

	var answered, unavailable bool
	for attempt := 0; ; attempt++ {
		q, err := r.attempt(ctx, symbol)
		if ctx.Err() != nil {
			r.breaker.Release()
			return nil, ctx.Err()
		}
		switch {
		case err == nil && q != nil:
			r.breaker.RecordSuccess()
			return q, nil
		case err == nil:
			answered = true
		case isUnavailable(err):
			unavailable = true
			r.logger.Debug("source unavailable", "source", r.name, "symbol", symbol, "attempt", attempt+1, "error", err)
		default:
			r.logger.Debug("source attempt failed", "source", r.name, "symbol", symbol, "attempt", attempt+1, "error", err)
		}

		if attempt >= r.policy.RetryCount {
			break
		}
		if err := r.sleep(ctx, r.policy.Delay(attempt)); err != nil {
			r.breaker.Release()
			return nil, err
		}
	}

	switch {
	case answered:
		r.breaker.RecordSuccess()
	case unavailable:
		r.breaker.RecordFailure()
	default:
		r.breaker.Release()
	}
	r.logger.Debug("source exhausted retries", "source", r.name, "symbol", symbol, "attempts", r.policy.RetryCount+1)
	return nil, nil
}

// isUnavailable reports a transport-level failure, including an attempt that
// ran out of its own timeout.
func isUnavailable(err error) bool {
	return errors.Is(err, port.ErrSourceUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Resilient) attempt(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	if r.policy.AttemptTimeout <= 0 {
		return r.inner.TryGetPrice(ctx, symbol)
	}
	actx, cancel := context.WithTimeout(ctx, r.policy.AttemptTimeout)
	defer cancel()
	return r.inner.TryGetPrice(actx, symbol)
}
