package stm

import "go.uber.org/zap"

// CommitNested folds a nested log into its parent. It always succeeds:
// nested blocks are flat, not independent transactions, so folding is
// bookkeeping, never validation. Returns log itself, now inert — its
// effects live on in log.parent.
func CommitNested(log *TLog) *TLog {
	if log.parent == nil {
		panic(newContractViolation("CommitNested called on a top-level log; use Commit"))
	}
	if log.state != stateOpen {
		panic(newContractViolation("CommitNested called on a log that was already committed"))
	}
	parent := log.parent

	// The child inherited the parent's reads/writes at creation time, so
	// whatever it holds now supersedes whatever the parent held before.
	parent.reads = log.reads
	parent.writes = log.writes

	parent.beforeCommit = spliceHooks(parent.beforeCommit, log.beforeCommit)
	parent.afterCommit = spliceHooks(parent.afterCommit, log.afterCommit)

	log.state = stateCommitted
	return log
}

// spliceHooks appends child's hooks after parent's, in order. If parent
// has none yet, the child's slice becomes the parent's directly — kept
// as a distinct branch because it avoids an allocation for the common
// case of a parent with no hooks registered before its first nested
// block commits.
func spliceHooks(parent, child []Hook) []Hook {
	if len(parent) == 0 {
		return child
	}
	return append(parent, child...)
}

// MergeReads combines two sibling logs' read sets — used when composing
// alternative transactions (an orElse-style composition) where only one
// alternative's writes ultimately apply, but both alternatives' reads
// must be consistent with each other. Returns the surviving log, or nil
// if the two logs disagree (read a different value) for some TVar both
// read.
func MergeReads(l1, l2 *TLog) *TLog {
	if len(l2.reads) > len(l1.reads) {
		l1, l2 = l2, l1
	}
	if len(l2.reads) == 0 {
		return l1
	}
	for tv, val2 := range l2.reads {
		if val1, ok := l1.reads[tv]; ok {
			if val1 != val2 {
				L.Debug("read-set merge conflict", zap.Uint64("tvar_id", uint64(tv.id)))
				return nil
			}
			continue
		}
		l1.reads[tv] = val2
	}
	return l1
}
