package store

import (
	"database/sql"
	"time"

	"github.com/tikwatch/tikwatch/internal/models"
)

const bytesPerMB = 1024 * 1024

// InsertSamples appends a poll cycle's samples in a single transaction.
// Rows are never deduplicated; the sweeper is the only deleter.
func (s *Store) InsertSamples(samples []models.BandwidthSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO bandwidth_samples
		(router_id, ip_address, mac_address, hostname, timestamp, rx_bytes, tx_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sample := range samples {
		_, err := stmt.Exec(sample.RouterID, sample.IPAddress,
			nullable(sample.MACAddress), nullable(sample.Hostname),
			sample.Timestamp.UTC(), sample.RxBytes, sample.TxBytes)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SamplesSince returns samples for a router with timestamp >= since, ordered
// ascending. An empty ipAddress matches all IPs.
func (s *Store) SamplesSince(routerID int64, ipAddress string, since time.Time) ([]models.BandwidthSample, error) {
	query := `SELECT id, router_id, ip_address, mac_address, hostname, timestamp, rx_bytes, tx_bytes
	          FROM bandwidth_samples
	          WHERE router_id = ? AND timestamp >= ?`
	args := []interface{}{routerID, since.UTC()}

	if ipAddress != "" {
		query += ` AND ip_address = ?`
		args = append(args, ipAddress)
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.BandwidthSample
	for rows.Next() {
		var sample models.BandwidthSample
		var mac, hostname sql.NullString
		err := rows.Scan(&sample.ID, &sample.RouterID, &sample.IPAddress,
			&mac, &hostname, &sample.Timestamp, &sample.RxBytes, &sample.TxBytes)
		if err != nil {
			return nil, err
		}
		sample.MACAddress = mac.String
		sample.Hostname = hostname.String
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// AggregateSince sums traffic per IP over the window, heaviest talkers first.
func (s *Store) AggregateSince(routerID int64, since time.Time) ([]models.IPStat, error) {
	query := `SELECT ip_address, mac_address, hostname,
	                 SUM(rx_bytes) AS total_rx, SUM(tx_bytes) AS total_tx
	          FROM bandwidth_samples
	          WHERE router_id = ? AND timestamp >= ?
	          GROUP BY ip_address
	          ORDER BY total_rx + total_tx DESC`

	rows, err := s.conn.Query(query, routerID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.IPStat
	for rows.Next() {
		var stat models.IPStat
		var mac, hostname sql.NullString
		if err := rows.Scan(&stat.IPAddress, &mac, &hostname, &stat.RxBytes, &stat.TxBytes); err != nil {
			return nil, err
		}
		stat.MACAddress = mac.String
		stat.Hostname = hostname.String
		stat.RxMB = float64(stat.RxBytes) / bytesPerMB
		stat.TxMB = float64(stat.TxBytes) / bytesPerMB
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

func nullable(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
