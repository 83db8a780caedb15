// Package backoff implements the delay policies shared by retry and circuit
// breaker re-open timers: a pure
// function from an attempt number (and the error that triggered it) to a
// wait duration.
//
// The four variants below generalize sync/retry's inline
// ExponentialBackoff/ConstantBackOff/LinearBackOff helpers from the teacher
// repository into a single Policy shape that also covers polynomial growth
// and per-error overrides.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy computes the delay before the given attempt (1-indexed) given the
// error that caused the previous attempt to fail.
type Policy func(attempt int, err error) time.Duration

// applyJitter scales a delay by (1 - ratio*u) for a uniform sample u in [0, 1).
// A nil or out-of-range ratio disables jitter.
func applyJitter(d time.Duration, ratio *float64) time.Duration {
	if ratio == nil {
		return d
	}
	r := *ratio
	if r <= 0 || r > 1 {
		return d
	}
	scale := 1 - r*rand.Float64()
	return time.Duration(float64(d) * scale)
}

// Jitter returns a pointer to a jitter ratio, for use in the *Settings
// struct literals below.
func Jitter(ratio float64) *float64 {
	return &ratio
}

// ConstantSettings configures Constant.
type ConstantSettings struct {
	Delay  time.Duration
	Jitter *float64
}

// Constant always returns the same delay.
func Constant(settings ConstantSettings) Policy {
	return ConstantFunc(nil, settings)
}

// ConstantFunc evaluates fn(err) for per-error overrides; when fn is nil, or
// returns nil, defaults applies.
func ConstantFunc(fn func(error) *ConstantSettings, defaults ConstantSettings) Policy {
	return func(attempt int, err error) time.Duration {
		s := resolve(fn, defaults, err)
		return applyJitter(s.Delay, s.Jitter)
	}
}

// LinearSettings configures Linear.
type LinearSettings struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Jitter   *float64
}

// Linear returns min(maxDelay, minDelay*attempt).
func Linear(settings LinearSettings) Policy {
	return LinearFunc(nil, settings)
}

func LinearFunc(fn func(error) *LinearSettings, defaults LinearSettings) Policy {
	return func(attempt int, err error) time.Duration {
		s := resolve(fn, defaults, err)
		d := s.MinDelay * time.Duration(attempt)
		if s.MaxDelay > 0 && d > s.MaxDelay {
			d = s.MaxDelay
		}
		return applyJitter(d, s.Jitter)
	}
}

// ExponentialSettings configures Exponential.
type ExponentialSettings struct {
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Multiplier float64 // defaults to 2 when zero
	Jitter     *float64
}

// Exponential returns min(maxDelay, minDelay*multiplier^(attempt-1)).
func Exponential(settings ExponentialSettings) Policy {
	return ExponentialFunc(nil, settings)
}

func ExponentialFunc(fn func(error) *ExponentialSettings, defaults ExponentialSettings) Policy {
	return func(attempt int, err error) time.Duration {
		s := resolve(fn, defaults, err)
		mult := s.Multiplier
		if mult <= 0 {
			mult = 2
		}
		f := float64(s.MinDelay) * math.Pow(mult, float64(attempt-1))
		if s.MaxDelay > 0 && f > float64(s.MaxDelay) {
			f = float64(s.MaxDelay)
		}
		return applyJitter(time.Duration(f), s.Jitter)
	}
}

// PolynomialSettings configures Polynomial.
type PolynomialSettings struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Degree   float64 // defaults to 2 when zero
	Jitter   *float64
}

// Polynomial returns min(maxDelay, minDelay*attempt^degree).
func Polynomial(settings PolynomialSettings) Policy {
	return PolynomialFunc(nil, settings)
}

func PolynomialFunc(fn func(error) *PolynomialSettings, defaults PolynomialSettings) Policy {
	return func(attempt int, err error) time.Duration {
		s := resolve(fn, defaults, err)
		degree := s.Degree
		if degree <= 0 {
			degree = 2
		}
		f := float64(s.MinDelay) * math.Pow(float64(attempt), degree)
		if s.MaxDelay > 0 && f > float64(s.MaxDelay) {
			f = float64(s.MaxDelay)
		}
		return applyJitter(time.Duration(f), s.Jitter)
	}
}

func resolve[S any](fn func(error) *S, defaults S, err error) S {
	if fn == nil {
		return defaults
	}
	if s := fn(err); s != nil {
		return *s
	}
	return defaults
}
