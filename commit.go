package stm

import (
	"sort"

	"go.uber.org/zap"
)

// Commit runs the two-phase commit protocol against a top-level log:
// before-hooks, lock the write set, stamp a version, re-validate the
// read set under those locks, write back, unlock, notify, after-hooks.
// It returns true if the transaction's writes (if any) were published,
// false if the caller must construct a fresh log and re-execute the
// transaction.
//
// Commit must only be called once per log, with log.parent == nil;
// nested logs go through CommitNested instead.
func Commit(log *TLog) (success bool) {
	if log.parent != nil {
		panic(newContractViolation("Commit called on a nested log; use CommitNested"))
	}
	if log.state != stateOpen {
		panic(newContractViolation("Commit called on a log that was already committed or aborted"))
	}
	log.state = stateCommitting

	// Step 1: before-commit hooks, index-driven so hooks that enlist
	// further hooks during the walk are still executed.
	if !runBeforeCommitHooks(log) {
		log.state = stateAborted
		recordOutcome("rerun")
		return false
	}

	// Step 2: read-only fast path.
	if len(log.writes) == 0 {
		log.state = stateCommitted
		runAfterCommitHooks(log)
		recordOutcome("committed")
		return true
	}
	writeSetSize.Observe(float64(len(log.writes)))

	// Step 3: lock the write set in the total order defined by `order`.
	locked := lockWriteSet(log)
	if locked == nil {
		log.state = stateAborted
		recordOutcome("aborted_lock")
		return false
	}

	// Step 4: stamp a new version.
	vNew := global.Incf()

	// Step 5: re-validate under locks.
	success = validAndUnlocked(log)
	if !success {
		recordOutcome("aborted_validate")
	}

	// Step 6: write back, skipping identity-equal updates.
	if success {
		for tv, x := range log.writes {
			if x != tv.rawValue() {
				tv.setVersionAndValue(vNew, x)
				log.changed = append(log.changed, tv)
			}
		}
	}

	// Step 7: release locks, always, in the reverse order they were taken.
	for i := len(locked) - 1; i >= 0; i-- {
		locked[i].unlock()
	}

	if !success {
		log.state = stateAborted
		return false
	}

	// Step 8: notify waiters, then after-commit hooks.
	for _, tv := range log.changed {
		tv.notifyWaitersHighLoad()
	}
	log.state = stateCommitted
	runAfterCommitHooks(log)
	recordOutcome("committed")
	return true
}

// lockWriteSet acquires tryLock on every TVar in log.writes, in the total
// order order() defines, to avoid livelock between transactions with
// overlapping write sets. On first failure it releases everything it had
// acquired and returns nil.
func lockWriteSet(log *TLog) []*TVar {
	keys := make([]*TVar, 0, len(log.writes))
	for tv := range log.writes {
		keys = append(keys, tv)
	}
	sort.Slice(keys, func(i, j int) bool { return order(keys[i], keys[j]) })

	locked := make([]*TVar, 0, len(keys))
	for _, tv := range keys {
		if !tv.tryLock() {
			for i := len(locked) - 1; i >= 0; i-- {
				locked[i].unlock()
			}
			return nil
		}
		locked = append(locked, tv)
	}
	return locked
}

// runBeforeCommitHooks executes log.beforeCommit in registration order.
// The loop re-reads len(log.beforeCommit) on every step so a hook that
// calls CallBeforeCommit during the walk has its addition observed and
// run, never skipped. Returns false if a hook issues Retry (the rerun
// condition); any other panic propagates to the caller after logging.
func runBeforeCommitHooks(log *TLog) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if isRetry(r) {
				ok = false
				return
			}
			log.state = stateAborted
			L.Warn("before-commit hook failed", zap.Any("panic", r))
			panic(newUserError(r))
		}
	}()
	for i := 0; i < len(log.beforeCommit); i++ {
		log.beforeCommit[i](log)
	}
	return true
}

// runAfterCommitHooks executes log.afterCommit in registration order,
// same append-during-iteration handling as runBeforeCommitHooks. Errors
// here propagate but never undo the commit: the transaction is already
// COMMITTED by the time these run.
func runAfterCommitHooks(log *TLog) {
	defer func() {
		if r := recover(); r != nil {
			if isRetry(r) {
				L.Error("retry issued from an after-commit hook", zap.Any("panic", r))
				panic(newContractViolation("after-commit hook issued Retry"))
			}
			L.Warn("after-commit hook failed", zap.Any("panic", r))
			panic(newUserError(r))
		}
	}()
	for i := 0; i < len(log.afterCommit); i++ {
		log.afterCommit[i](log)
	}
}

// Valid exposes the deep read-set validation predicate for callers that
// want to poll a log's validity outside the commit path.
func Valid(log *TLog) bool { return valid(log) }

// ValidAndUnlocked exposes the lock-aware validation predicate for
// callers that want to poll a log's validity outside the commit path.
func ValidAndUnlocked(log *TLog) bool { return validAndUnlocked(log) }
