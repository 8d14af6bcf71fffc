package stm

import "go.uber.org/atomic"

// versionedValue is the (version, value) pair a TVar publishes atomically.
// Keeping the two fields behind one pointer is what makes raw_value able
// to observe a consistent snapshot without taking the lock: a reader never
// sees a version that doesn't match its value.
type versionedValue struct {
	version Version
	value   any
}

// TVar is a transactional cell: a versioned slot plus a single-owner lock
// bit. Values are held behind `any` (type-erased) because commit
// correctness depends only on identity equality of values, never on
// their structure.
type TVar struct {
	id      Version
	slot    atomic.Pointer[versionedValue]
	locked  atomic.Bool
	waiters *waiterSet
}

var idSeq Counter

// NewTVar creates a TVar holding val, assigning it a fresh id strictly
// larger than any previously created TVar's id — the total order `order`
// relies on.
func NewTVar(val any) *TVar {
	tv := &TVar{
		id:      idSeq.Incf(),
		waiters: newWaiterSet(),
	}
	tv.slot.Store(&versionedValue{version: InvalidVersion, value: val})
	return tv
}

// rawValue returns the current committed value without synchronization.
// It is only safe to trust once re-validated under the write-set locks;
// a concurrently-committing writer's old or new value may be observed.
func (tv *TVar) rawValue() any {
	return tv.slot.Load().value
}

// rawVersion returns the current committed version, same caveats as
// rawValue.
func (tv *TVar) rawVersion() Version {
	return tv.slot.Load().version
}

// tryLock is non-blocking: it returns true on success and establishes
// acquire ordering, false if another thread already holds the lock.
func (tv *TVar) tryLock() bool {
	return tv.locked.CompareAndSwap(false, true)
}

// unlock releases with release ordering. Calling it while not holding the
// lock is undefined behavior: the caller must hold the lock first.
func (tv *TVar) unlock() {
	tv.locked.Store(false)
}

// isUnlockedByOther reports whether tv is free, or locked by the log's own
// in-flight commit (a TVar may legitimately be in both the read set and
// the write set of the same log).
func (tv *TVar) isUnlockedByOther(log *TLog) bool {
	if !tv.locked.Load() {
		return true
	}
	_, ownedByLog := log.writes[tv]
	return ownedByLog
}

// setVersionAndValue publishes a new (version, value) pair. The caller
// must hold tv's lock; this is the only path that mutates a TVar's
// committed state.
func (tv *TVar) setVersionAndValue(v Version, val any) {
	tv.slot.Store(&versionedValue{version: v, value: val})
}

// notifyWaitersHighLoad wakes every retry-waiter currently registered on
// tv. Idempotent, safe to call without holding tv's lock.
func (tv *TVar) notifyWaitersHighLoad() {
	tv.waiters.notifyAll()
	recordWaiterNotification()
}

// order is the total order used to acquire write-set locks: all
// committing threads must agree on it, or lock acquisition can livelock.
// Defined as id(a) > id(b); which TVar sorts "first" is arbitrary, only
// agreement across threads matters.
func order(a, b *TVar) bool {
	return a.id > b.id
}
