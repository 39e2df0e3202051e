// Package routeros wraps the MikroTik binary API behind a snapshot-oriented
// interface: each method runs one query path and returns plain values. The
// poll loop owns session lifecycle and failure policy; this package only
// dials, queries, and parses.
package routeros

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	ros "github.com/go-routeros/routeros/v3"

	"github.com/tikwatch/tikwatch/internal/models"
)

// conntrackLimit caps how many connection-tracking entries are considered
// when building the active address set. Busy routers can report thousands.
const conntrackLimit = 100

type ARPEntry struct {
	MACAddress string
	Hostname   string
}

type LogRecord struct {
	ID      string
	Time    time.Time
	Topics  string
	Message string
}

// Session is one live API connection to a router.
type Session interface {
	InterfaceTotals(ctx context.Context) (rxBytes, txBytes uint64, err error)
	ActiveAddresses(ctx context.Context) ([]string, error)
	LeaseAddresses(ctx context.Context) ([]string, error)
	ARPTable(ctx context.Context) (map[string]ARPEntry, error)
	SystemStatus(ctx context.Context) (models.RouterStatus, error)
	Logs(ctx context.Context) ([]LogRecord, error)
	Close() error
}

// DialFunc opens a Session for a router. The poller depends on this rather
// than on a concrete client so tests can substitute fakes.
type DialFunc func(ctx context.Context, router models.Router) (Session, error)

type Dialer struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Dial connects to the router's API port, retrying transient failures with
// exponential backoff until the context deadline.
func (d *Dialer) Dial(ctx context.Context, router models.Router) (Session, error) {
	address := fmt.Sprintf("%s:%d", router.Host, router.Port)

	var client *ros.Client
	operation := func() error {
		dialCtx, cancel := context.WithTimeout(ctx, d.Timeout)
		defer cancel()

		c, err := ros.DialContext(dialCtx, address, router.Username, router.Password)
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = d.Timeout

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	return &session{client: client, log: d.Logger.With("router", router.Name, "address", address)}, nil
}

type session struct {
	client *ros.Client
	log    *slog.Logger
}

func (s *session) Close() error {
	return s.client.Close()
}

// InterfaceTotals sums the cumulative rx/tx byte counters across interfaces.
func (s *session) InterfaceTotals(ctx context.Context) (uint64, uint64, error) {
	reply, err := s.client.RunContext(ctx, "/interface/print")
	if err != nil {
		return 0, 0, fmt.Errorf("query interfaces: %w", err)
	}

	var totalRx, totalTx uint64
	for _, re := range reply.Re {
		rx, rxErr := strconv.ParseUint(re.Map["rx-byte"], 10, 64)
		tx, txErr := strconv.ParseUint(re.Map["tx-byte"], 10, 64)
		if rxErr != nil || txErr != nil {
			continue
		}
		totalRx += rx
		totalTx += tx
	}
	return totalRx, totalTx, nil
}

// ActiveAddresses returns the source and destination addresses seen in the
// connection-tracking table, with ports stripped.
func (s *session) ActiveAddresses(ctx context.Context) ([]string, error) {
	reply, err := s.client.RunContext(ctx, "/ip/firewall/connection/print")
	if err != nil {
		return nil, fmt.Errorf("query connection tracking: %w", err)
	}

	seen := make(map[string]struct{})
	entries := reply.Re
	if len(entries) > conntrackLimit {
		entries = entries[:conntrackLimit]
	}
	for _, re := range entries {
		for _, key := range []string{"src-address", "dst-address"} {
			if addr := stripPort(re.Map[key]); addr != "" {
				seen[addr] = struct{}{}
			}
		}
	}

	addrs := make([]string, 0, len(seen))
	for addr := range seen {
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// LeaseAddresses returns the addresses of current DHCP leases; these define
// which addresses count as internal.
func (s *session) LeaseAddresses(ctx context.Context) ([]string, error) {
	reply, err := s.client.RunContext(ctx, "/ip/dhcp-server/lease/print")
	if err != nil {
		return nil, fmt.Errorf("query dhcp leases: %w", err)
	}

	var addrs []string
	for _, re := range reply.Re {
		if addr := re.Map["address"]; addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}

func (s *session) ARPTable(ctx context.Context) (map[string]ARPEntry, error) {
	reply, err := s.client.RunContext(ctx, "/ip/arp/print")
	if err != nil {
		return nil, fmt.Errorf("query arp table: %w", err)
	}

	table := make(map[string]ARPEntry, len(reply.Re))
	for _, re := range reply.Re {
		addr := re.Map["address"]
		if addr == "" {
			continue
		}
		table[addr] = ARPEntry{
			MACAddress: re.Map["mac-address"],
			Hostname:   re.Map["host-name"],
		}
	}
	return table, nil
}

func (s *session) SystemStatus(ctx context.Context) (models.RouterStatus, error) {
	status := models.RouterStatus{Status: models.StatusOnline}

	reply, err := s.client.RunContext(ctx, "/system/resource/print")
	if err != nil {
		return status, fmt.Errorf("query system resource: %w", err)
	}
	if len(reply.Re) > 0 {
		m := reply.Re[0].Map
		status.Uptime = m["uptime"]
		status.Version = m["version"]
		status.CPULoad = m["cpu-load"]
		status.FreeMemory, _ = strconv.ParseUint(m["free-memory"], 10, 64)
		status.TotalMemory, _ = strconv.ParseUint(m["total-memory"], 10, 64)
	}

	// Identity is cosmetic; a failure here does not fail the status query.
	if reply, err := s.client.RunContext(ctx, "/system/identity/print"); err == nil && len(reply.Re) > 0 {
		status.Identity = reply.Re[0].Map["name"]
	} else if err != nil {
		s.log.Debug("identity query failed", "error", err)
	}

	return status, nil
}

func (s *session) Logs(ctx context.Context) ([]LogRecord, error) {
	reply, err := s.client.RunContext(ctx, "/log/print")
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}

	now := time.Now()
	records := make([]LogRecord, 0, len(reply.Re))
	for _, re := range reply.Re {
		records = append(records, LogRecord{
			ID:      re.Map[".id"],
			Time:    parseLogTime(re.Map["time"], now),
			Topics:  re.Map["topics"],
			Message: re.Map["message"],
		})
	}
	return records, nil
}

// stripPort reduces a conntrack address like "192.168.88.10:51234" to its
// address part. Addresses without a port pass through unchanged.
func stripPort(addr string) string {
	if addr == "" {
		return ""
	}
	if i := strings.IndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}

// parseLogTime handles the three timestamp shapes RouterOS emits in
// /log/print: "15:04:05" for today, "jan/02 15:04:05" for this year, and
// "jan/02/2006 15:04:05" for older entries. Unparseable values fall back to
// the poll time.
func parseLogTime(value string, now time.Time) time.Time {
	// RouterOS lowercases month names; Go's layout token wants "Jan".
	capitalized := value
	if len(capitalized) > 0 {
		capitalized = strings.ToUpper(capitalized[:1]) + capitalized[1:]
	}

	if t, err := time.ParseInLocation("Jan/02/2006 15:04:05", capitalized, now.Location()); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("Jan/02 15:04:05", capitalized, now.Location()); err == nil {
		return t.AddDate(now.Year(), 0, 0)
	}
	if t, err := time.ParseInLocation("15:04:05", value, now.Location()); err == nil {
		return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	}
	return now
}
