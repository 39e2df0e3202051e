package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tikwatch/tikwatch/internal/models"
)

// DefaultRetentionDays applies to routers with no retention row.
const DefaultRetentionDays = 7

type Store struct {
	conn *sql.DB
}

func New(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// The collector and the API share one file; serialized writes avoid
	// SQLITE_BUSY under the concurrent poll fan-out.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS routers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL DEFAULT 8728,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_routers_enabled ON routers(enabled);

	CREATE TABLE IF NOT EXISTS bandwidth_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		router_id INTEGER NOT NULL,
		ip_address TEXT NOT NULL,
		mac_address TEXT,
		hostname TEXT,
		timestamp TIMESTAMP NOT NULL,
		rx_bytes INTEGER NOT NULL DEFAULT 0,
		tx_bytes INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (router_id) REFERENCES routers(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_bandwidth_router_time ON bandwidth_samples(router_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_bandwidth_ip ON bandwidth_samples(ip_address);
	CREATE INDEX IF NOT EXISTS idx_bandwidth_mac ON bandwidth_samples(mac_address);

	CREATE TABLE IF NOT EXISTS retention_settings (
		router_id INTEGER PRIMARY KEY,
		retention_days INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (router_id) REFERENCES routers(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS router_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		router_id INTEGER NOT NULL,
		logged_at TIMESTAMP NOT NULL,
		topics TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		FOREIGN KEY (router_id) REFERENCES routers(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_router_logs_router_time ON router_logs(router_id, logged_at);
	`

	_, err := s.conn.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Ping() error {
	return s.conn.Ping()
}

func (s *Store) CreateRouter(router *models.Router) (int64, error) {
	if router.Port == 0 {
		router.Port = 8728
	}
	query := `INSERT INTO routers (name, host, port, username, password, enabled, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

	now := time.Now().UTC()
	var id int64
	err := s.conn.QueryRow(query, router.Name, router.Host, router.Port,
		router.Username, router.Password, router.Enabled, now, now).Scan(&id)
	return id, err
}

func (s *Store) GetRouter(id int64) (*models.Router, error) {
	query := `SELECT id, name, host, port, username, password, enabled, created_at, updated_at
	          FROM routers WHERE id = ?`

	var r models.Router
	err := s.conn.QueryRow(query, id).Scan(&r.ID, &r.Name, &r.Host, &r.Port,
		&r.Username, &r.Password, &r.Enabled, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRouters() ([]models.Router, error) {
	return s.listRouters(`SELECT id, name, host, port, username, password, enabled, created_at, updated_at
	                      FROM routers ORDER BY created_at DESC`)
}

func (s *Store) ListEnabledRouters() ([]models.Router, error) {
	return s.listRouters(`SELECT id, name, host, port, username, password, enabled, created_at, updated_at
	                      FROM routers WHERE enabled = 1 ORDER BY id`)
}

func (s *Store) listRouters(query string) ([]models.Router, error) {
	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routers []models.Router
	for rows.Next() {
		var r models.Router
		err := rows.Scan(&r.ID, &r.Name, &r.Host, &r.Port,
			&r.Username, &r.Password, &r.Enabled, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, err
		}
		routers = append(routers, r)
	}
	return routers, rows.Err()
}

func (s *Store) UpdateRouter(router *models.Router) error {
	query := `UPDATE routers SET name = ?, host = ?, port = ?, username = ?, password = ?,
	          enabled = ?, updated_at = ? WHERE id = ?`

	res, err := s.conn.Exec(query, router.Name, router.Host, router.Port,
		router.Username, router.Password, router.Enabled, time.Now().UTC(), router.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) DeleteRouter(id int64) error {
	// Cascade by hand: the driver does not enforce foreign keys by default.
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM bandwidth_samples WHERE router_id = ?`,
		`DELETE FROM router_logs WHERE router_id = ?`,
		`DELETE FROM retention_settings WHERE router_id = ?`,
	} {
		if _, err := tx.Exec(query, id); err != nil {
			return err
		}
	}

	res, err := tx.Exec(`DELETE FROM routers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}
