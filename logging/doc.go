// Package logging provides a minimal logging interface and adapters for botmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the adapter and middleware use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - BotMeshLogger with contextual turn helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a := adapter.New(adapter.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
