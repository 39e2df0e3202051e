package bandwidth

import (
	"testing"
	"time"
)

func TestApportionEmptyActiveSet(t *testing.T) {
	samples := Apportion(100000, 50000, nil, time.Now(), 1)
	if samples != nil {
		t.Errorf("Expected no samples for empty active set, got %d", len(samples))
	}
}

func TestApportionEvenSplit(t *testing.T) {
	active := []ActiveHost{
		{IPAddress: "10.0.0.5", MACAddress: "AA:BB:CC:00:00:05", Hostname: "laptop"},
		{IPAddress: "10.0.0.6"},
		{IPAddress: "10.0.0.7"},
	}
	now := time.Now()

	samples := Apportion(1000, 100, active, now, 42)
	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(samples))
	}

	var sumRx, sumTx uint64
	for _, s := range samples {
		if s.RouterID != 42 {
			t.Errorf("Expected router id 42, got %d", s.RouterID)
		}
		if s.RxBytes != 333 {
			t.Errorf("Expected per-host rx 333, got %d", s.RxBytes)
		}
		if !s.Timestamp.Equal(now) {
			t.Errorf("Expected sample timestamp %v, got %v", now, s.Timestamp)
		}
		sumRx += s.RxBytes
		sumTx += s.TxBytes
	}

	// Floor division drops the remainder: sum <= delta, shortfall < count.
	if sumRx > 1000 || 1000-sumRx >= 3 {
		t.Errorf("Expected rx sum within [998, 1000], got %d", sumRx)
	}
	if sumTx != 99 {
		t.Errorf("Expected tx sum 99, got %d", sumTx)
	}

	if samples[0].MACAddress != "AA:BB:CC:00:00:05" || samples[0].Hostname != "laptop" {
		t.Errorf("Expected ARP enrichment carried through, got %+v", samples[0])
	}
}

func TestApportionZeroDeltaWritesSeenMarker(t *testing.T) {
	active := []ActiveHost{{IPAddress: "10.0.0.5"}, {IPAddress: "10.0.0.6"}}

	samples := Apportion(0, 0, active, time.Now(), 1)
	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	for _, s := range samples {
		if s.RxBytes != seenMarkerBytes || s.TxBytes != seenMarkerBytes {
			t.Errorf("Expected seen marker %d/%d, got %d/%d",
				seenMarkerBytes, seenMarkerBytes, s.RxBytes, s.TxBytes)
		}
	}
}

func TestApportionDeltaSmallerThanActiveSet(t *testing.T) {
	active := []ActiveHost{
		{IPAddress: "10.0.0.5"},
		{IPAddress: "10.0.0.6"},
		{IPAddress: "10.0.0.7"},
	}

	samples := Apportion(2, 0, active, time.Now(), 1)
	for _, s := range samples {
		if s.RxBytes != 0 {
			t.Errorf("Expected floor(2/3)=0 rx per host, got %d", s.RxBytes)
		}
	}
}
