package stm

import (
	"sync"

	"github.com/pkg/errors"
)

// retrySentinel is the distinguished panic value Retry raises. It is
// compared by identity (errors.Is), never wrapped, so the commit/driver
// boundary can tell a deliberate retry request apart from a UserError.
var retrySentinel = errors.New("stm: retry")

// Retry aborts the running transaction body and requests that the driver
// re-run it once one of the TVars it has already read changes. The core
// commit machinery only ever calls notifyWaitersHighLoad to wake
// waiters; the blocking wait in waitForRetry (driver.go) is the minimal
// driver needed to make that notification observable, not a general
// scheduler.
func Retry(log *TLog) {
	panic(retrySentinel)
}

// isRetry reports whether a recovered panic value is the Retry sentinel.
func isRetry(r any) bool {
	err, ok := r.(error)
	return ok && errors.Is(err, retrySentinel)
}

// waiterSet is a TVar's set of waker handles. Entries are plain channels,
// closed (never sent on) to wake every subscriber at once; notifyAll
// removes every handle it wakes and cancel removes one that was never
// woken, so the set never accumulates stale handles across a
// transaction's retries.
type waiterSet struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

func newWaiterSet() *waiterSet {
	return &waiterSet{subs: make(map[int]chan struct{})}
}

// subscribe registers a new waker handle and returns it along with a
// cancel function that deregisters it. Safe to call concurrently with
// notifyAll.
func (ws *waiterSet) subscribe() (<-chan struct{}, func()) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	id := ws.next
	ws.next++
	ch := make(chan struct{})
	ws.subs[id] = ch
	return ch, func() {
		ws.mu.Lock()
		defer ws.mu.Unlock()
		if _, stillPending := ws.subs[id]; stillPending {
			delete(ws.subs, id)
			close(ch)
		}
	}
}

// notifyAll wakes every current subscriber. Idempotent: subscribers that
// have already deregistered are simply absent from the map.
func (ws *waiterSet) notifyAll() {
	ws.mu.Lock()
	subs := ws.subs
	ws.subs = make(map[int]chan struct{})
	ws.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}
