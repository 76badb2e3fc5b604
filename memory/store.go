// Package memory persists session transcripts across restarts.
//
// A Store is a flat key/value namespace over durable storage. Transcripts
// layers session snapshots on top: each session is one zstd-compressed JSON
// document under "sessions/<id>.json.zst", and Transcripts satisfies
// session.Persister.
package memory

import "context"

// Store reads and writes opaque values by key. Keys are /-separated
// relative paths. Implementations perform I/O on every call.
type Store interface {
	// List returns every key in the store, sorted.
	List(ctx context.Context) ([]string, error)
	// Load returns the value stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save writes value under key, replacing any previous value atomically.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
}
