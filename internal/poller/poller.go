// Package poller drives the collection cycle: every interval it fans out
// over the enabled routers with bounded concurrency, reads counter and
// address snapshots from each, and turns them into stored bandwidth samples.
// A failing router is logged and marked offline for the cycle; it never
// blocks or fails the others.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"

	"github.com/tikwatch/tikwatch/internal/bandwidth"
	"github.com/tikwatch/tikwatch/internal/metrics"
	"github.com/tikwatch/tikwatch/internal/models"
	"github.com/tikwatch/tikwatch/internal/routeros"
	"github.com/tikwatch/tikwatch/internal/store"
)

const (
	defaultInterval    = time.Minute
	defaultPollTimeout = 20 * time.Second
	defaultConcurrency = 8
)

// CounterSnapshot is one reading of a router's summed cumulative interface
// counters.
type CounterSnapshot struct {
	RxBytes uint64
	TxBytes uint64
	At      time.Time
}

type Config struct {
	Store       *store.Store
	Dial        routeros.DialFunc
	Logger      *slog.Logger
	Clock       clockwork.Clock
	Interval    time.Duration
	PollTimeout time.Duration
	Concurrency int
}

type Poller struct {
	store       *store.Store
	dial        routeros.DialFunc
	log         *slog.Logger
	clock       clockwork.Clock
	interval    time.Duration
	pollTimeout time.Duration

	tracker *bandwidth.DeltaTracker
	pool    pond.Pool
	status  *ttlcache.Cache[int64, models.RouterStatus]

	cursorMu   sync.Mutex
	logCursors map[int64]string
}

func New(cfg Config) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	// Status entries outlive one cycle so the dashboard keeps showing the
	// last known state, but expire before stale data can mislead.
	statusTTL := 3 * cfg.Interval

	return &Poller{
		store:       cfg.Store,
		dial:        cfg.Dial,
		log:         cfg.Logger,
		clock:       cfg.Clock,
		interval:    cfg.Interval,
		pollTimeout: cfg.PollTimeout,
		tracker:     bandwidth.NewDeltaTracker(),
		pool:        pond.NewPool(cfg.Concurrency),
		status:      ttlcache.New(ttlcache.WithTTL[int64, models.RouterStatus](statusTTL)),
		logCursors:  make(map[int64]string),
	}
}

// Run executes poll cycles until the context is cancelled. The first cycle
// starts immediately.
func (p *Poller) Run(ctx context.Context) error {
	go p.status.Start()
	defer p.status.Stop()
	defer p.pool.StopAndWait()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.RunCycle(ctx)
		}
	}
}

// RunCycle polls every enabled router once, fanning out on the worker pool.
func (p *Poller) RunCycle(ctx context.Context) {
	metrics.PollCycles.Inc()
	cycleID := uuid.NewString()
	log := p.log.With("cycle", cycleID)

	routers, err := p.store.ListEnabledRouters()
	if err != nil {
		log.Error("list routers failed", "error", err)
		return
	}

	group := p.pool.NewGroup()
	for _, router := range routers {
		router := router

		if cached := p.status.Get(router.ID); cached != nil && cached.Value().Status == models.StatusOffline {
			// Recently failed; skip until its cache entry expires instead of
			// burning the cycle budget on a dead dial.
			metrics.PollSkippedOffline.Inc()
			log.Debug("skipping offline router", "router", router.Name)
			continue
		}

		group.Submit(func() {
			start := p.clock.Now()
			if err := p.pollRouter(ctx, router); err != nil {
				log.Warn("poll failed", "router", router.Name, "host", router.Host, "error", err)
			} else {
				metrics.PollSuccesses.Inc()
			}
			metrics.PollDuration.Observe(p.clock.Since(start).Seconds())
		})
	}
	group.Wait()
}

func (p *Poller) pollRouter(ctx context.Context, router models.Router) error {
	ctx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	sess, err := p.dial(ctx, router)
	if err != nil {
		p.markOffline(router.ID, err)
		metrics.PollFailures.WithLabelValues("dial").Inc()
		return err
	}
	defer sess.Close()

	rxBytes, txBytes, err := sess.InterfaceTotals(ctx)
	if err != nil {
		p.markOffline(router.ID, err)
		metrics.PollFailures.WithLabelValues("counters").Inc()
		return err
	}
	snapshot := CounterSnapshot{RxBytes: rxBytes, TxBytes: txBytes, At: p.clock.Now()}

	active := p.activeHosts(ctx, router, sess)

	if err := p.RecordPollCycle(router.ID, snapshot, active); err != nil {
		metrics.PollFailures.WithLabelValues("store").Inc()
		return err
	}

	p.collectLogs(ctx, router, sess)
	p.markOnline(ctx, router.ID, sess)
	return nil
}

// activeHosts builds the apportionment set: conntrack addresses intersected
// with DHCP lease addresses, enriched from the ARP table. All three queries
// are non-essential; a failure degrades to absent data for this cycle.
func (p *Poller) activeHosts(ctx context.Context, router models.Router, sess routeros.Session) []bandwidth.ActiveHost {
	log := p.log.With("router", router.Name)

	activeAddrs, err := sess.ActiveAddresses(ctx)
	if err != nil {
		log.Debug("connection tracking unavailable", "error", err)
		return nil
	}
	leaseAddrs, err := sess.LeaseAddresses(ctx)
	if err != nil {
		log.Debug("dhcp leases unavailable", "error", err)
		return nil
	}
	arp, err := sess.ARPTable(ctx)
	if err != nil {
		log.Debug("arp table unavailable", "error", err)
		arp = nil
	}

	internal := make(map[string]struct{}, len(leaseAddrs))
	for _, addr := range leaseAddrs {
		internal[addr] = struct{}{}
	}

	var hosts []bandwidth.ActiveHost
	for _, addr := range activeAddrs {
		if _, ok := internal[addr]; !ok {
			continue
		}
		entry := arp[addr]
		hosts = append(hosts, bandwidth.ActiveHost{
			IPAddress:  addr,
			MACAddress: entry.MACAddress,
			Hostname:   entry.Hostname,
		})
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].IPAddress < hosts[j].IPAddress })
	return hosts
}

// RecordPollCycle runs one counter snapshot through the delta tracker and
// apportioner and persists the resulting samples. An empty active set is a
// no-op, not an error.
func (p *Poller) RecordPollCycle(routerID int64, snapshot CounterSnapshot, active []bandwidth.ActiveHost) error {
	deltaRx, deltaTx := p.tracker.Delta(routerID, snapshot.RxBytes, snapshot.TxBytes, snapshot.At)

	samples := bandwidth.Apportion(deltaRx, deltaTx, active, snapshot.At, routerID)
	if len(samples) == 0 {
		return nil
	}

	if err := p.store.InsertSamples(samples); err != nil {
		return fmt.Errorf("store samples: %w", err)
	}
	metrics.SamplesStored.Add(float64(len(samples)))
	return nil
}

// collectLogs appends router log entries that arrived since the previous
// cycle, keyed on the last seen RouterOS log id.
func (p *Poller) collectLogs(ctx context.Context, router models.Router, sess routeros.Session) {
	records, err := sess.Logs(ctx)
	if err != nil {
		p.log.Debug("router log unavailable", "router", router.Name, "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	p.cursorMu.Lock()
	cursor := p.logCursors[router.ID]
	p.cursorMu.Unlock()

	fresh := records
	if cursor != "" {
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].ID == cursor {
				fresh = records[i+1:]
				break
			}
		}
	}

	if len(fresh) > 0 {
		entries := make([]models.LogEntry, 0, len(fresh))
		for _, rec := range fresh {
			entries = append(entries, models.LogEntry{
				RouterID: router.ID,
				LoggedAt: rec.Time,
				Topics:   rec.Topics,
				Message:  rec.Message,
			})
		}
		if err := p.store.InsertLogs(entries); err != nil {
			p.log.Warn("store router logs failed", "router", router.Name, "error", err)
			return
		}
	}

	p.cursorMu.Lock()
	p.logCursors[router.ID] = records[len(records)-1].ID
	p.cursorMu.Unlock()
}

func (p *Poller) markOffline(routerID int64, cause error) {
	p.status.Set(routerID, models.RouterStatus{
		RouterID:    routerID,
		Status:      models.StatusOffline,
		LastChecked: p.clock.Now(),
		Error:       cause.Error(),
	}, ttlcache.DefaultTTL)
}

func (p *Poller) markOnline(ctx context.Context, routerID int64, sess routeros.Session) {
	status, err := sess.SystemStatus(ctx)
	if err != nil {
		// Samples were stored, so the router is up; just no detail.
		status = models.RouterStatus{Status: models.StatusOnline}
	}
	status.RouterID = routerID
	status.LastChecked = p.clock.Now()
	p.status.Set(routerID, status, ttlcache.DefaultTTL)
}

// Status returns the cached liveness for a router. Routers never polled (or
// whose cache entry expired) report StatusUnknown; the read path does not
// dial routers.
func (p *Poller) Status(routerID int64) models.RouterStatus {
	if item := p.status.Get(routerID); item != nil {
		return item.Value()
	}
	return models.RouterStatus{RouterID: routerID, Status: models.StatusUnknown}
}

// Forget drops per-router poller state after a router is deleted.
func (p *Poller) Forget(routerID int64) {
	p.tracker.Forget(routerID)
	p.status.Delete(routerID)
	p.cursorMu.Lock()
	delete(p.logCursors, routerID)
	p.cursorMu.Unlock()
}
