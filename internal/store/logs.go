package store

import "github.com/tikwatch/tikwatch/internal/models"

func (s *Store) InsertLogs(entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO router_logs (router_id, logged_at, topics, message)
	                         VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.Exec(entry.RouterID, entry.LoggedAt.UTC(), entry.Topics, entry.Message); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Logs returns a router's log entries newest first, paginated.
func (s *Store) Logs(routerID int64, limit, offset int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, router_id, logged_at, topics, message
	          FROM router_logs
	          WHERE router_id = ?
	          ORDER BY logged_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	rows, err := s.conn.Query(query, routerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		err := rows.Scan(&entry.ID, &entry.RouterID, &entry.LoggedAt, &entry.Topics, &entry.Message)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) CountLogs(routerID int64) (int64, error) {
	var count int64
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM router_logs WHERE router_id = ?`, routerID).Scan(&count)
	return count, err
}
