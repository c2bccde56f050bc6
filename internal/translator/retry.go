package translator

import (
	"context"
	"errors"
	"time"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/llm"
)

// Phase is a step of the retry state machine.
type Phase int

const (
	PhaseAttempting Phase = iota
	PhaseBackoff
	PhaseSucceeded
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseAttempting:
		return "attempting"
	case PhaseBackoff:
		return "backoff"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// RetryState is the state of one translation call.
// Attempt counts attempts already made.
type RetryState struct {
	Phase   Phase
	Attempt int
	LastErr error
	Delay   time.Duration
}

// Terminal reports whether no further transition is possible.
func (s RetryState) Terminal() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseExhausted
}

// RetryPolicy bounds a call to MaxAttempts attempts in total.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	IsTransient func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		IsTransient: llm.IsTransient,
	}
}

// BackoffDelay returns base*2^retry, capped at max when max > 0.
// retry is zero for the delay after the first failed attempt.
func BackoffDelay(base, max time.Duration, retry int) time.Duration {
	if base <= 0 || retry < 0 {
		return 0
	}
	d := base
	for i := 0; i < retry; i++ {
		if max > 0 && d >= max {
			return max
		}
		d *= 2
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// Next is the pure transition function. err is the outcome of the attempt
// just made while in PhaseAttempting and is ignored in PhaseBackoff.
func (p RetryPolicy) Next(s RetryState, err error) RetryState {
	switch s.Phase {
	case PhaseAttempting:
		s.Attempt++
		if err == nil {
			return RetryState{Phase: PhaseSucceeded, Attempt: s.Attempt}
		}
		s.LastErr = err
		s.Delay = 0
		if !p.transient(err) || s.Attempt >= p.MaxAttempts {
			s.Phase = PhaseExhausted
			return s
		}
		s.Phase = PhaseBackoff
		s.Delay = BackoffDelay(p.BaseDelay, p.MaxDelay, s.Attempt-1)
		return s
	case PhaseBackoff:
		s.Phase = PhaseAttempting
		s.Delay = 0
		return s
	default:
		return s
	}
}

func (p RetryPolicy) transient(err error) bool {
	if p.IsTransient == nil {
		return llm.IsTransient(err)
	}
	return p.IsTransient(err)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run drives op through the state machine. observe, when set, sees every
// state the machine enters. Exhaustion yields a KindTranslation error;
// cancellation of ctx yields KindCanceled.
func (p RetryPolicy) Run(ctx context.Context, sleep Sleeper, op func(context.Context) error, observe func(RetryState)) error {
	if sleep == nil {
		sleep = SleepContext
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	state := RetryState{Phase: PhaseAttempting}
	for {
		if observe != nil {
			observe(state)
		}
		switch state.Phase {
		case PhaseAttempting:
			if err := ctx.Err(); err != nil {
				return apperr.Wrap(err, apperr.KindCanceled, "translation canceled")
			}
			err := op(ctx)
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return apperr.Wrap(err, apperr.KindCanceled, "translation canceled")
			}
			state = p.Next(state, err)
			if state.LastErr != nil && p.transient(state.LastErr) {
				state.LastErr = apperr.Wrap(state.LastErr, apperr.KindTransientTranslation, "transient failure")
			}
		case PhaseBackoff:
			if err := sleep(ctx, state.Delay); err != nil {
				return apperr.Wrap(err, apperr.KindCanceled, "translation canceled during backoff")
			}
			state = p.Next(state, nil)
		case PhaseSucceeded:
			return nil
		case PhaseExhausted:
			return apperr.Wrap(state.LastErr, apperr.KindTranslation, "translation failed").
				WithContext("attempts", state.Attempt)
		}
	}
}
