package models

import "time"

// BandwidthSample is one per-IP traffic row for a single poll interval.
// Rows are append-only: written by the poll cycle, deleted only by the
// retention sweeper.
type BandwidthSample struct {
	ID         int64     `json:"id"`
	RouterID   int64     `json:"router_id"`
	IPAddress  string    `json:"ip_address"`
	MACAddress string    `json:"mac_address,omitempty"`
	Hostname   string    `json:"hostname,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RxBytes    uint64    `json:"rx_bytes"`
	TxBytes    uint64    `json:"tx_bytes"`
}

// IPStat is the aggregated top-talkers view over a time window.
type IPStat struct {
	IPAddress  string  `json:"ip_address"`
	MACAddress string  `json:"mac_address,omitempty"`
	Hostname   string  `json:"hostname,omitempty"`
	RxBytes    uint64  `json:"rx_bytes"`
	TxBytes    uint64  `json:"tx_bytes"`
	RxMB       float64 `json:"rx_mb"`
	TxMB       float64 `json:"tx_mb"`
}

// RateSeriesPoint is a derived chart point, computed on read and never stored.
type RateSeriesPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	DownloadMbps float64   `json:"download_mbps"`
	UploadMbps   float64   `json:"upload_mbps"`
	TotalMbps    float64   `json:"total_mbps"`
}

type RetentionSetting struct {
	RouterID  int64     `json:"router_id"`
	Days      int       `json:"days"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LogEntry struct {
	ID       int64     `json:"id"`
	RouterID int64     `json:"router_id"`
	LoggedAt time.Time `json:"logged_at"`
	Topics   string    `json:"topics"`
	Message  string    `json:"message"`
}
