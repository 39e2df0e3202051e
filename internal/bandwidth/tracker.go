package bandwidth

import (
	"sync"
	"time"
)

type counterState struct {
	rxBytes uint64
	txBytes uint64
	seenAt  time.Time
}

// DeltaTracker turns cumulative interface byte counters into per-interval
// deltas. It keeps one slot per router, overwritten every cycle. State is
// in-memory only; after a restart the first cycle yields a zero delta.
type DeltaTracker struct {
	mu   sync.Mutex
	last map[int64]counterState
}

func NewDeltaTracker() *DeltaTracker {
	return &DeltaTracker{last: make(map[int64]counterState)}
}

// Delta returns the non-negative traffic delta since the previous reading for
// this router. A current value below the previous one means the router's
// counters reset (reboot); the raw negative difference is clamped to zero and
// the new baseline is stored, so a reset costs exactly one empty interval.
func (t *DeltaTracker) Delta(routerID int64, rxBytes, txBytes uint64, at time.Time) (deltaRx, deltaTx uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.last[routerID]
	t.last[routerID] = counterState{rxBytes: rxBytes, txBytes: txBytes, seenAt: at}
	if !ok {
		return 0, 0
	}

	if rxBytes > prev.rxBytes {
		deltaRx = rxBytes - prev.rxBytes
	}
	if txBytes > prev.txBytes {
		deltaTx = txBytes - prev.txBytes
	}
	return deltaRx, deltaTx
}

// Forget drops the stored baseline for a router, e.g. after it is deleted.
func (t *DeltaTracker) Forget(routerID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, routerID)
}
