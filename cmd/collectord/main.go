package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	consul "github.com/hashicorp/consul/api"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/tikwatch/tikwatch/internal/api"
	"github.com/tikwatch/tikwatch/internal/metrics"
	"github.com/tikwatch/tikwatch/internal/poller"
	"github.com/tikwatch/tikwatch/internal/routeros"
	"github.com/tikwatch/tikwatch/internal/store"
)

const (
	defaultHTTPPort     = "8080"
	defaultDBPath       = "/data/tikwatch.db"
	defaultPollInterval = time.Minute
	defaultSweepPeriod  = 24 * time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	httpPort := pflag.String("http-port", getEnv("HTTP_PORT", defaultHTTPPort), "HTTP API listen port")
	dbPath := pflag.String("db", getEnv("DB_PATH", defaultDBPath), "SQLite database path")
	pollInterval := pflag.Duration("poll-interval", defaultPollInterval, "router poll cadence")
	pollTimeout := pflag.Duration("poll-timeout", 20*time.Second, "per-router poll deadline")
	concurrency := pflag.Int("concurrency", 8, "routers polled in parallel")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
	slog.SetDefault(log)

	db, err := store.New(*dbPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	dialer := &routeros.Dialer{Timeout: *pollTimeout, Logger: log}
	p := poller.New(poller.Config{
		Store:       db,
		Dial:        dialer.Dial,
		Logger:      log,
		Interval:    *pollInterval,
		PollTimeout: *pollTimeout,
		Concurrency: *concurrency,
	})

	mux := http.NewServeMux()
	api.New(db, p, log).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    ":" + *httpPort,
		Handler: mux,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("poller stopped", "error", err)
		}
	}()
	go runRetentionSweeps(ctx, db, log)

	if err := registerConsul(*httpPort); err != nil {
		log.Warn("failed to register with Consul", "error", err)
	}
	defer deregisterConsul(log)

	errChan := make(chan error, 1)
	go func() {
		log.Info("HTTP API server listening", "port", *httpPort)
		errChan <- httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// runRetentionSweeps deletes expired samples and logs for every router once a
// day. Retention updates through the API also sweep immediately, so this only
// has to catch rows that age out on their own.
func runRetentionSweeps(ctx context.Context, db *store.Store, log *slog.Logger) {
	ticker := time.NewTicker(defaultSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			routers, err := db.ListRouters()
			if err != nil {
				log.Error("list routers for sweep", "error", err)
				continue
			}
			for _, router := range routers {
				deleted, err := db.Sweep(router.ID, time.Now())
				if err != nil {
					log.Error("retention sweep", "router", router.Name, "error", err)
					continue
				}
				metrics.RowsSwept.Add(float64(deleted))
				if deleted > 0 {
					log.Info("swept expired rows", "router", router.Name, "deleted", deleted)
				}
			}
		}
	}
}

func registerConsul(httpPort string) error {
	consulAddr := getEnv("CONSUL_HTTP_ADDR", "")
	if consulAddr == "" {
		return nil
	}

	config := consul.DefaultConfig()
	config.Address = consulAddr
	client, err := consul.NewClient(config)
	if err != nil {
		return err
	}

	nodeIP := getEnv("NOMAD_IP_http", "")
	if nodeIP == "" {
		nodeIP = getLocalIP()
	}

	registration := &consul.AgentServiceRegistration{
		ID:      "tikwatch-collector",
		Name:    "tikwatch-collector",
		Port:    mustAtoi(httpPort),
		Address: nodeIP,
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%s/api/v1/health", nodeIP, httpPort),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
		Tags: []string{"bandwidth", "collector", "http", "api"},
	}

	return client.Agent().ServiceRegister(registration)
}

func deregisterConsul(log *slog.Logger) {
	consulAddr := getEnv("CONSUL_HTTP_ADDR", "")
	if consulAddr == "" {
		return
	}

	config := consul.DefaultConfig()
	config.Address = consulAddr
	client, err := consul.NewClient(config)
	if err != nil {
		log.Error("consul client for deregistration", "error", err)
		return
	}

	if err := client.Agent().ServiceDeregister("tikwatch-collector"); err != nil {
		log.Error("consul deregistration", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func mustAtoi(s string) int {
	var i int
	fmt.Sscanf(s, "%d", &i)
	return i
}

func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "127.0.0.1"
}
