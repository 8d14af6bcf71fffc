package stm

import "go.uber.org/atomic"

// Version is the monotonically non-decreasing stamp written by a
// committing transaction and observed by readers validating against it.
type Version uint64

// InvalidVersion is reserved and never produced by Counter.Incf.
const InvalidVersion Version = 0

// Counter is a process-wide monotonic version clock. Component A of the
// commit protocol: a single counter tick per writing commit is the main
// scalability lever (read-only transactions never touch it).
type Counter struct {
	v atomic.Uint64
}

// Incf atomically increments the counter and returns the new value,
// skipping InvalidVersion if a wraparound would otherwise produce it.
func (c *Counter) Incf() Version {
	v := c.v.Add(1)
	if Version(v) == InvalidVersion {
		v = c.v.Add(1)
	}
	return Version(v)
}

// Get returns the current value with acquire ordering, without
// incrementing. Any Incf that happened-before this call is reflected.
func (c *Counter) Get() Version {
	return Version(c.v.Load())
}

// global is the process-wide clock Commit stamps writes with. The commit
// engine always uses it; tests of the Counter alone construct their own.
var global Counter
