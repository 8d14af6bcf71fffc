package stm

import "go.uber.org/zap"

// Atomically runs fn as a top-level transaction, retrying until it
// commits. It is the minimal driver needed to exercise and test the
// commit core; it has no backoff policy and no fairness guarantees.
func Atomically(fn func(*TLog)) {
	for {
		log := NewTLog()
		if runBody(log, fn) {
			if Commit(log) {
				return
			}
			continue
		}
		waitForRetry(log)
	}
}

// AtomicallyNested runs fn as a transaction nested inside parent,
// folding its effects into parent via CommitNested on success. Nested
// transactions never independently retry-wait: a Retry from within one
// propagates out to the enclosing top-level Atomically's retry loop,
// since the nested log shares the parent's eventual fate.
func AtomicallyNested(parent *TLog, fn func(*TLog)) *TLog {
	log := NewNestedTLog(parent)
	if !runBody(log, fn) {
		// Retry inside a nested block is not this block's to resolve: it
		// folds nothing into the parent and re-raises so the enclosing
		// top-level Atomically's retry loop handles it.
		panic(retrySentinel)
	}
	return CommitNested(log)
}

// runBody executes fn against log, converting a Retry panic into a false
// return and re-raising anything else (a genuine UserError) to the
// caller.
func runBody(log *TLog, fn func(*TLog)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if isRetry(r) {
				ok = false
				return
			}
			panic(newUserError(r))
		}
	}()
	fn(log)
	return true
}

// waitForRetry subscribes to every TVar in log's read set and blocks
// until one of them is notified, then returns so Atomically can rerun
// the body. A log with an empty read set (Retry called before any read)
// would block forever; that is a contract violation in the caller's
// transaction body, not something this driver can recover from.
func waitForRetry(log *TLog) {
	if len(log.reads) == 0 {
		panic(newContractViolation("Retry called with an empty read set"))
	}
	woken := make(chan struct{}, len(log.reads))
	cancels := make([]func(), 0, len(log.reads))
	for tv := range log.reads {
		ch, cancel := tv.waiters.subscribe()
		cancels = append(cancels, cancel)
		go func(ch <-chan struct{}) {
			<-ch
			select {
			case woken <- struct{}{}:
			default:
			}
		}(ch)
	}

	// A write that invalidates the read set may have landed between the
	// read that triggered Retry and the subscriptions just registered
	// above; re-check before blocking to avoid a lost wakeup.
	if !valid(log) {
		for _, cancel := range cancels {
			cancel()
		}
		return
	}

	L.Debug("transaction retry-waiting", zap.Int("read_set_size", len(log.reads)))
	<-woken
	for _, cancel := range cancels {
		cancel()
	}
}
