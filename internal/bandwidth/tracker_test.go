package bandwidth

import (
	"testing"
	"time"
)

func TestDeltaFirstReadingIsZero(t *testing.T) {
	tracker := NewDeltaTracker()

	rx, tx := tracker.Delta(1, 5000, 3000, time.Now())
	if rx != 0 || tx != 0 {
		t.Errorf("Expected zero delta on first reading, got rx=%d tx=%d", rx, tx)
	}
}

func TestDeltaAccumulatesAcrossCycles(t *testing.T) {
	tracker := NewDeltaTracker()
	now := time.Now()

	readings := []struct{ rx, tx uint64 }{
		{1000, 500},
		{1400, 700},
		{1400, 700},
		{2600, 1900},
	}

	var sumRx, sumTx uint64
	for i, r := range readings {
		rx, tx := tracker.Delta(7, r.rx, r.tx, now.Add(time.Duration(i)*time.Minute))
		sumRx += rx
		sumTx += tx
	}

	// With no resets, the deltas must sum to last - first.
	if want := readings[3].rx - readings[0].rx; sumRx != want {
		t.Errorf("Expected rx deltas to sum to %d, got %d", want, sumRx)
	}
	if want := readings[3].tx - readings[0].tx; sumTx != want {
		t.Errorf("Expected tx deltas to sum to %d, got %d", want, sumTx)
	}
}

func TestDeltaCounterReset(t *testing.T) {
	tracker := NewDeltaTracker()
	now := time.Now()

	tracker.Delta(1, 100000, 50000, now)

	// Router rebooted: counters restart near zero.
	rx, tx := tracker.Delta(1, 200, 100, now.Add(time.Minute))
	if rx != 0 || tx != 0 {
		t.Errorf("Expected zero delta on counter reset, got rx=%d tx=%d", rx, tx)
	}

	// Next cycle is measured against the reset baseline, not the pre-reset one.
	rx, tx = tracker.Delta(1, 1200, 400, now.Add(2*time.Minute))
	if rx != 1000 {
		t.Errorf("Expected rx delta 1000 relative to reset value, got %d", rx)
	}
	if tx != 300 {
		t.Errorf("Expected tx delta 300 relative to reset value, got %d", tx)
	}
}

func TestDeltaRoutersAreIndependent(t *testing.T) {
	tracker := NewDeltaTracker()
	now := time.Now()

	tracker.Delta(1, 1000, 1000, now)
	tracker.Delta(2, 9000, 9000, now)

	rx, _ := tracker.Delta(1, 1500, 1000, now.Add(time.Minute))
	if rx != 500 {
		t.Errorf("Expected router 1 delta 500, got %d", rx)
	}

	rx, _ = tracker.Delta(2, 9100, 9000, now.Add(time.Minute))
	if rx != 100 {
		t.Errorf("Expected router 2 delta 100, got %d", rx)
	}
}

func TestForgetDropsBaseline(t *testing.T) {
	tracker := NewDeltaTracker()
	now := time.Now()

	tracker.Delta(1, 1000, 1000, now)
	tracker.Forget(1)

	rx, tx := tracker.Delta(1, 2000, 2000, now.Add(time.Minute))
	if rx != 0 || tx != 0 {
		t.Errorf("Expected zero delta after Forget, got rx=%d tx=%d", rx, tx)
	}
}
