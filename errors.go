package stm

import "github.com/pkg/errors"

// UserError wraps a panic or error raised by user code running inside a
// before- or after-commit hook. Before-hook errors abort the commit and
// propagate to the driver; after-hook errors propagate but leave the
// transaction committed.
type UserError struct {
	cause error
}

func (e *UserError) Error() string { return "stm: hook error: " + e.cause.Error() }
func (e *UserError) Unwrap() error { return e.cause }

func newUserError(cause any) *UserError {
	if err, ok := cause.(error); ok {
		return &UserError{cause: errors.WithStack(err)}
	}
	return &UserError{cause: errors.Errorf("%v", cause)}
}

// ContractViolation reports a programming error in how the commit
// protocol was used: issuing Retry from an after-commit hook, calling
// Commit or CommitNested on the wrong kind of log or on a log that was
// already consumed, or calling Retry with an empty read set. A write made
// from an after-commit hook is not detected: it lands in the log's write
// set after write-back and is never published. Behavior of the
// transaction after a violation is undefined.
type ContractViolation struct {
	cause error
}

func (e *ContractViolation) Error() string { return "stm: contract violation: " + e.cause.Error() }
func (e *ContractViolation) Unwrap() error { return e.cause }

func newContractViolation(msg string) *ContractViolation {
	return &ContractViolation{cause: errors.New(msg)}
}
