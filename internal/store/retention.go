package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tikwatch/tikwatch/internal/models"
)

func (s *Store) SetRetention(routerID int64, days int) error {
	if days < 1 {
		return fmt.Errorf("retention days must be >= 1, got %d", days)
	}

	query := `INSERT INTO retention_settings (router_id, retention_days, updated_at)
	          VALUES (?, ?, ?)
	          ON CONFLICT(router_id) DO UPDATE SET
	              retention_days = excluded.retention_days,
	              updated_at = excluded.updated_at`

	_, err := s.conn.Exec(query, routerID, days, time.Now().UTC())
	return err
}

// RetentionDays returns the configured retention for a router, falling back
// to DefaultRetentionDays when no row exists.
func (s *Store) RetentionDays(routerID int64) (int, error) {
	var days int
	err := s.conn.QueryRow(`SELECT retention_days FROM retention_settings WHERE router_id = ?`, routerID).Scan(&days)
	if err == sql.ErrNoRows {
		return DefaultRetentionDays, nil
	}
	if err != nil {
		return 0, err
	}
	return days, nil
}

func (s *Store) GetRetention(routerID int64) (*models.RetentionSetting, error) {
	var setting models.RetentionSetting
	err := s.conn.QueryRow(`SELECT router_id, retention_days, updated_at
	                        FROM retention_settings WHERE router_id = ?`, routerID).
		Scan(&setting.RouterID, &setting.Days, &setting.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.RetentionSetting{RouterID: routerID, Days: DefaultRetentionDays}, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Sweep deletes bandwidth samples and log rows older than the router's
// retention window and returns how many rows went away. Safe to call
// repeatedly; a second sweep with no new data deletes nothing.
func (s *Store) Sweep(routerID int64, now time.Time) (int64, error) {
	days, err := s.RetentionDays(routerID)
	if err != nil {
		return 0, fmt.Errorf("read retention setting: %w", err)
	}
	cutoff := now.UTC().Add(-time.Duration(days) * 24 * time.Hour)

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var deleted int64
	for _, query := range []string{
		`DELETE FROM bandwidth_samples WHERE router_id = ? AND timestamp < ?`,
		`DELETE FROM router_logs WHERE router_id = ? AND logged_at < ?`,
	} {
		res, err := tx.Exec(query, routerID, cutoff)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}
