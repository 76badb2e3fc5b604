// Package config provides configuration for the orchestration primitives.
//
// ParallelConfig sizes the worker pool behind tool batches and
// multi-record lookups. Like every config type in the module it follows the
// DefaultX / Merge pattern:
//
//	cfg := config.DefaultParallelConfig()
//	cfg.Merge(&loaded)
//
// Merge semantics by field type:
//   - Strings: merged if source is non-empty
//   - Integers: merged if source is greater than zero
//   - Pointers: merged if source is non-nil
package config
