package stm

import "go.uber.org/zap"

// L is the package-level logger used for commit-engine diagnostics.
// Defaults to a no-op logger so importing this package never produces
// unwanted output; call SetLogger to wire it to the host application's
// logger, the same "inject, default to silent" shape used throughout the
// pack's transactional-engine code.
var L = zap.NewNop()

// SetLogger replaces the package-level logger. Not safe to call
// concurrently with in-flight commits; call it once during process
// startup, before any Atomically call.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	L = logger
}
