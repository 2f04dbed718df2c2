// Package logging provides a minimal logging interface and adapters for the
// chatstore persistence core.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the store environment and repositories use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - StoreLogger with contextual helpers for partitions and transactions
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	cs, err := chatstore.New(func(o *chatstore.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
