package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/tikwatch/tikwatch/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRouter(t *testing.T, s *Store) int64 {
	t.Helper()

	id, err := s.CreateRouter(&models.Router{
		Name:     "office-gw",
		Host:     "192.168.88.1",
		Username: "monitor",
		Password: "secret",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("Failed to create router: %v", err)
	}
	return id
}

func TestCreateAndGetRouter(t *testing.T) {
	s := setupTestStore(t)

	id := createTestRouter(t, s)
	if id == 0 {
		t.Fatal("Expected non-zero router id")
	}

	router, err := s.GetRouter(id)
	if err != nil {
		t.Fatalf("Failed to get router: %v", err)
	}

	if router.Name != "office-gw" {
		t.Errorf("Expected name office-gw, got %s", router.Name)
	}
	if router.Port != 8728 {
		t.Errorf("Expected default port 8728, got %d", router.Port)
	}
	if !router.Enabled {
		t.Error("Expected router to be enabled")
	}
}

func TestUpdateRouter(t *testing.T) {
	s := setupTestStore(t)
	id := createTestRouter(t, s)

	router, err := s.GetRouter(id)
	if err != nil {
		t.Fatalf("Failed to get router: %v", err)
	}

	router.Host = "10.1.0.1"
	router.Enabled = false
	if err := s.UpdateRouter(router); err != nil {
		t.Fatalf("Failed to update router: %v", err)
	}

	updated, err := s.GetRouter(id)
	if err != nil {
		t.Fatalf("Failed to get router: %v", err)
	}
	if updated.Host != "10.1.0.1" || updated.Enabled {
		t.Errorf("Update not applied: %+v", updated)
	}

	enabled, err := s.ListEnabledRouters()
	if err != nil {
		t.Fatalf("Failed to list enabled routers: %v", err)
	}
	if len(enabled) != 0 {
		t.Errorf("Expected no enabled routers, got %d", len(enabled))
	}
}

func TestUpdateMissingRouter(t *testing.T) {
	s := setupTestStore(t)

	err := s.UpdateRouter(&models.Router{ID: 999, Name: "ghost"})
	if err != sql.ErrNoRows {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteRouterCascades(t *testing.T) {
	s := setupTestStore(t)
	id := createTestRouter(t, s)
	now := time.Now()

	err := s.InsertSamples([]models.BandwidthSample{
		{RouterID: id, IPAddress: "10.0.0.5", Timestamp: now, RxBytes: 100, TxBytes: 50},
	})
	if err != nil {
		t.Fatalf("Failed to insert samples: %v", err)
	}
	if err := s.InsertLogs([]models.LogEntry{{RouterID: id, LoggedAt: now, Message: "link up"}}); err != nil {
		t.Fatalf("Failed to insert logs: %v", err)
	}
	if err := s.SetRetention(id, 3); err != nil {
		t.Fatalf("Failed to set retention: %v", err)
	}

	if err := s.DeleteRouter(id); err != nil {
		t.Fatalf("Failed to delete router: %v", err)
	}

	samples, err := s.SamplesSince(id, "", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("Expected samples to be cascaded away, got %d", len(samples))
	}

	count, err := s.CountLogs(id)
	if err != nil {
		t.Fatalf("Failed to count logs: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected logs to be cascaded away, got %d", count)
	}
}

func TestInsertAndQuerySamples(t *testing.T) {
	s := setupTestStore(t)
	id := createTestRouter(t, s)
	now := time.Now().UTC().Truncate(time.Second)

	err := s.InsertSamples([]models.BandwidthSample{
		{RouterID: id, IPAddress: "10.0.0.5", MACAddress: "AA:BB:CC:00:00:05", Hostname: "laptop",
			Timestamp: now.Add(-2 * time.Minute), RxBytes: 100, TxBytes: 50},
		{RouterID: id, IPAddress: "10.0.0.5", Timestamp: now.Add(-time.Minute), RxBytes: 200, TxBytes: 25},
		{RouterID: id, IPAddress: "10.0.0.6", Timestamp: now.Add(-time.Minute), RxBytes: 999, TxBytes: 999},
	})
	if err != nil {
		t.Fatalf("Failed to insert samples: %v", err)
	}

	samples, err := s.SamplesSince(id, "10.0.0.5", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples for 10.0.0.5, got %d", len(samples))
	}
	if samples[0].Timestamp.After(samples[1].Timestamp) {
		t.Error("Expected samples ordered ascending by timestamp")
	}
	if samples[0].MACAddress != "AA:BB:CC:00:00:05" || samples[0].Hostname != "laptop" {
		t.Errorf("Expected mac/hostname round-trip, got %+v", samples[0])
	}
	if samples[1].MACAddress != "" {
		t.Errorf("Expected empty mac for NULL column, got %q", samples[1].MACAddress)
	}

	all, err := s.SamplesSince(id, "", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to query all samples: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 samples without IP filter, got %d", len(all))
	}

	// Window boundary: since is inclusive.
	windowed, err := s.SamplesSince(id, "", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Failed to query windowed samples: %v", err)
	}
	if len(windowed) != 2 {
		t.Errorf("Expected 2 samples in the 1m window, got %d", len(windowed))
	}
}

func TestAggregateSince(t *testing.T) {
	s := setupTestStore(t)
	id := createTestRouter(t, s)
	now := time.Now().UTC().Truncate(time.Second)

	err := s.InsertSamples([]models.BandwidthSample{
		{RouterID: id, IPAddress: "10.0.0.5", Timestamp: now.Add(-2 * time.Minute), RxBytes: 100, TxBytes: 50},
		{RouterID: id, IPAddress: "10.0.0.5", Timestamp: now.Add(-time.Minute), RxBytes: 200, TxBytes: 25},
		{RouterID: id, IPAddress: "10.0.0.6", Timestamp: now.Add(-time.Minute), RxBytes: 10, TxBytes: 10},
		{RouterID: id, IPAddress: "10.0.0.7", Timestamp: now.Add(-48 * time.Hour), RxBytes: 9999, TxBytes: 9999},
	})
	if err != nil {
		t.Fatalf("Failed to insert samples: %v", err)
	}

	stats, err := s.AggregateSince(id, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to aggregate: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 IPs inside the window, got %d", len(stats))
	}

	// Ordered by total traffic descending.
	if stats[0].IPAddress != "10.0.0.5" {
		t.Errorf("Expected 10.0.0.5 as top talker, got %s", stats[0].IPAddress)
	}
	if stats[0].RxBytes != 300 || stats[0].TxBytes != 75 {
		t.Errorf("Expected rx=300 tx=75, got rx=%d tx=%d", stats[0].RxBytes, stats[0].TxBytes)
	}

	wantRxMB := 300.0 / (1024 * 1024)
	if stats[0].RxMB != wantRxMB {
		t.Errorf("Expected rx_mb %v, got %v", wantRxMB, stats[0].RxMB)
	}
}

func TestRetentionDefaults(t *testing.T) {
	s := setupTestStore(t)
	id := createTestRouter(t, s)

	days, err := s.RetentionDays(id)
	if err != nil {
		t.Fatalf("Failed to read retention: %v", err)
	}
	if days != DefaultRetentionDays {
		t.Errorf("Expected default retention %d, got %d", DefaultRetentionDays, days)
	}

	if err := s.SetRetention(id, 3); err != nil {
		t.Fatalf("Failed to set retention: %v", err)
	}
	if err := s.SetRetention(id, 14); err != nil {
		t.Fatalf("Failed to upsert retention: %v", err)
	}

	days, err = s.RetentionDays(id)
	if err != nil {
		t.Fatalf("Failed to read retention: %v", err)
	}
	if days != 14 {
		t.Errorf("Expected retention 14 after upsert, got %d", days)
	}

	if err := s.SetRetention(id, 0); err == nil {
		t.Error("Expected error for retention of 0 days")
	}
}

func TestSweepDeletesOldRowsAndIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	id := createTestRouter(t, s)
	now := time.Now().UTC()

	if err := s.SetRetention(id, 1); err != nil {
		t.Fatalf("Failed to set retention: %v", err)
	}

	err := s.InsertSamples([]models.BandwidthSample{
		{RouterID: id, IPAddress: "10.0.0.5", Timestamp: now.Add(-2 * time.Hour), RxBytes: 1, TxBytes: 1},
		{RouterID: id, IPAddress: "10.0.0.5", Timestamp: now.Add(-25 * time.Hour), RxBytes: 2, TxBytes: 2},
		{RouterID: id, IPAddress: "10.0.0.6", Timestamp: now.Add(-48 * time.Hour), RxBytes: 3, TxBytes: 3},
	})
	if err != nil {
		t.Fatalf("Failed to insert samples: %v", err)
	}
	err = s.InsertLogs([]models.LogEntry{
		{RouterID: id, LoggedAt: now.Add(-30 * time.Hour), Message: "old entry"},
		{RouterID: id, LoggedAt: now.Add(-time.Hour), Message: "fresh entry"},
	})
	if err != nil {
		t.Fatalf("Failed to insert logs: %v", err)
	}

	deleted, err := s.Sweep(id, now)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 rows deleted (2 samples + 1 log), got %d", deleted)
	}

	remaining, err := s.SamplesSince(id, "", now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("Expected 1 sample to survive, got %d", len(remaining))
	}

	deleted, err = s.Sweep(id, now)
	if err != nil {
		t.Fatalf("Failed to sweep again: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected idempotent second sweep to delete 0 rows, got %d", deleted)
	}
}

func TestLogsPagination(t *testing.T) {
	s := setupTestStore(t)
	id := createTestRouter(t, s)
	now := time.Now().UTC().Truncate(time.Second)

	var entries []models.LogEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, models.LogEntry{
			RouterID: id,
			LoggedAt: now.Add(time.Duration(i) * time.Minute),
			Topics:   "system,info",
			Message:  "entry",
		})
	}
	if err := s.InsertLogs(entries); err != nil {
		t.Fatalf("Failed to insert logs: %v", err)
	}

	page, err := s.Logs(id, 2, 0)
	if err != nil {
		t.Fatalf("Failed to query logs: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(page))
	}
	// Newest first.
	if !page[0].LoggedAt.Equal(now.Add(4 * time.Minute)) {
		t.Errorf("Expected newest entry first, got %v", page[0].LoggedAt)
	}

	page, err = s.Logs(id, 2, 4)
	if err != nil {
		t.Fatalf("Failed to query logs: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("Expected 1 entry on the last page, got %d", len(page))
	}

	count, err := s.CountLogs(id)
	if err != nil {
		t.Fatalf("Failed to count logs: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 log entries, got %d", count)
	}
}
