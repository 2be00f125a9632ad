// Package logging provides a minimal logging interface and adapters for agentcrew.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that agents, flows, the engine and the orchestrator use for observability.
// Arguments after the message are slog-style key/value pairs. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - CrewLogger with component/session context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	orch := agentcrew.New(cls, func(o *agentcrew.Options) { o.Logger = logger })
package logging
