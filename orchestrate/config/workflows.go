package config

// ParallelConfig configures the bounded worker pool.
//
// It can be embedded in a larger configuration file:
//
//	{
//	  "max_workers": 5,
//	  "fail_fast": false,
//	  "observer": "slog"
//	}
type ParallelConfig struct {
	// MaxWorkers is the worker pool size (0 = auto-detect).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`

	// WorkerCap limits auto-detected workers.
	WorkerCap int `json:"worker_cap,omitempty" yaml:"worker_cap,omitempty"`

	// FailFastNil controls error handling. Use FailFast() to read it; nil
	// means false, since sibling items are independent by default.
	FailFastNil *bool `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty"`

	// Observer names the observer implementation ("noop", "slog", ...).
	Observer string `json:"observer,omitempty" yaml:"observer,omitempty"`
}

func (c *ParallelConfig) FailFast() bool {
	if c.FailFastNil == nil {
		return false
	}
	return *c.FailFastNil
}

// DefaultParallelConfig returns the pool used for tool batches:
// five workers so one decision never opens more than five upstream
// connections, every item runs even when a sibling fails, and events go to
// the "slog" observer at verbose level.
func DefaultParallelConfig() ParallelConfig {
	failFast := false
	return ParallelConfig{
		MaxWorkers:  5,
		WorkerCap:   16,
		FailFastNil: &failFast,
		Observer:    "slog",
	}
}

func (c *ParallelConfig) Merge(source *ParallelConfig) {
	if source.MaxWorkers > 0 {
		c.MaxWorkers = source.MaxWorkers
	}

	if source.WorkerCap > 0 {
		c.WorkerCap = source.WorkerCap
	}

	if source.FailFastNil != nil {
		c.FailFastNil = source.FailFastNil
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}
}
