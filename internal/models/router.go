package models

import "time"

type Router struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RouterStatus is the per-cycle liveness snapshot kept in the status cache.
// It is never persisted; a router with no cache entry has status "unknown".
type RouterStatus struct {
	RouterID    int64     `json:"router_id"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Error       string    `json:"error,omitempty"`
	Identity    string    `json:"identity,omitempty"`
	Version     string    `json:"version,omitempty"`
	Uptime      string    `json:"uptime,omitempty"`
	CPULoad     string    `json:"cpu_load,omitempty"`
	FreeMemory  uint64    `json:"free_memory,omitempty"`
	TotalMemory uint64    `json:"total_memory,omitempty"`
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusUnknown = "unknown"
)
