package bandwidth

import (
	"time"

	"github.com/tikwatch/tikwatch/internal/models"
)

// seenMarkerBytes is written for each active host on cycles where the router
// reported no measurable traffic. It marks the host as seen without inventing
// traffic; the exact value is not load-bearing.
const seenMarkerBytes = 1

// ActiveHost is an internal address observed during the poll interval,
// enriched with whatever the ARP table knew about it.
type ActiveHost struct {
	IPAddress  string
	MACAddress string
	Hostname   string
}

// Apportion splits an interval's traffic delta evenly across the active
// hosts. The split uses integer floor division and drops the remainder; this
// is a deliberate approximation, since the router only reports aggregate
// interface counters and there is no per-IP ground truth to distribute by.
func Apportion(deltaRx, deltaTx uint64, active []ActiveHost, at time.Time, routerID int64) []models.BandwidthSample {
	if len(active) == 0 {
		return nil
	}

	perHostRx := deltaRx / uint64(len(active))
	perHostTx := deltaTx / uint64(len(active))
	if deltaRx == 0 && deltaTx == 0 {
		perHostRx = seenMarkerBytes
		perHostTx = seenMarkerBytes
	}

	samples := make([]models.BandwidthSample, 0, len(active))
	for _, host := range active {
		samples = append(samples, models.BandwidthSample{
			RouterID:   routerID,
			IPAddress:  host.IPAddress,
			MACAddress: host.MACAddress,
			Hostname:   host.Hostname,
			Timestamp:  at,
			RxBytes:    perHostRx,
			TxBytes:    perHostTx,
		})
	}
	return samples
}
