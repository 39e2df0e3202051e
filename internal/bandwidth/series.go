package bandwidth

import (
	"sort"

	"github.com/tikwatch/tikwatch/internal/models"
)

// BuildRateSeries converts stored (timestamp, byte-count) samples into an
// instantaneous Mbps series for charting. The input is sorted by timestamp
// first; callers are not required to guarantee ordering.
//
// The first point has no predecessor to diff against and gets zero rates.
// A non-positive time delta (duplicate or out-of-order timestamps) also
// yields zero rates rather than a division by zero. The output always has
// one point per input sample.
func BuildRateSeries(samples []models.BandwidthSample) []models.RateSeriesPoint {
	if len(samples) == 0 {
		return nil
	}

	sorted := make([]models.BandwidthSample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	points := make([]models.RateSeriesPoint, 0, len(sorted))
	for i, s := range sorted {
		point := models.RateSeriesPoint{Timestamp: s.Timestamp}
		if i > 0 {
			dt := s.Timestamp.Sub(sorted[i-1].Timestamp).Seconds()
			if dt > 0 {
				point.DownloadMbps = float64(s.RxBytes) * 8 / dt / 1e6
				point.UploadMbps = float64(s.TxBytes) * 8 / dt / 1e6
				point.TotalMbps = point.DownloadMbps + point.UploadMbps
			}
		}
		points = append(points, point)
	}
	return points
}
