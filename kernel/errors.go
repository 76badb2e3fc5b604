package kernel

import "errors"

var (
	// ErrMaxIterations marks a forced stop at the iteration cap. It is
	// recorded on the Outcome; the exchange itself still completes.
	ErrMaxIterations = errors.New("max iterations reached")
	// ErrLoopTimeout marks a forced stop at the loop budget.
	ErrLoopTimeout = errors.New("loop time limit reached")
	// ErrExchangeTimeout is recorded when the outer budget ends the
	// exchange.
	ErrExchangeTimeout = errors.New("exchange timed out")
	// ErrExchangePanic is recorded when the loop panics.
	ErrExchangePanic = errors.New("exchange panicked")
)
