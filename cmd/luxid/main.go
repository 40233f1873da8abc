package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/config"
	"github.com/sanyaade-teachings/ganeti/pkg/daemon"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/luxi"
	"github.com/sanyaade-teachings/ganeti/pkg/master"
	"github.com/sanyaade-teachings/ganeti/pkg/metrics"
	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/rpc"
	"github.com/sanyaade-teachings/ganeti/pkg/security"
	"github.com/sanyaade-teachings/ganeti/pkg/storage"
	"github.com/sanyaade-teachings/ganeti/pkg/worker"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "luxid",
	Short: "Cluster master daemon answering LUXI queries and job requests",
	Long: `luxid serves the LUXI protocol on a Unix socket.

It answers queries over the cluster configuration, enriched with live data
from the node agents, and keeps the job queue. A second socket accepts
read-only requests only.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"luxid version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().String("config", "", "Path to the daemon configuration file")
	rootCmd.Flags().BoolP("foreground", "f", false, "Log to the console in human readable form")
	rootCmd.Flags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.Flags().StringP("bind", "b", "", "Address for the status and metrics endpoint")
	rootCmd.Flags().IntP("port", "p", 0, "Port of the node agents")
	rootCmd.Flags().String("socket", "", "Path of the LUXI master socket")
	rootCmd.Flags().String("data-dir", "", "Directory holding the configuration database")
	rootCmd.Flags().Bool("no-live-data", false, "Never contact node agents")
	rootCmd.Flags().String("cluster-cert", "", "Cluster certificate securing node agent connections")
}

// loadConfig merges the command line flags over the loaded configuration
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if fg, _ := cmd.Flags().GetBool("foreground"); fg {
		cfg.Log.JSONOutput = false
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = log.DebugLevel
	}
	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		cfg.MetricsAddr = bind
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.NodeAgentPort = port
	}
	if socket, _ := cmd.Flags().GetString("socket"); socket != "" {
		cfg.SocketPath = socket
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if noLive, _ := cmd.Flags().GetBool("no-live-data"); noLive {
		cfg.LiveData = false
	}
	if cert, _ := cmd.Flags().GetString("cluster-cert"); cert != "" {
		cfg.ClusterCertFile = cert
	}
	return cfg, cfg.Validate()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.Init(cfg.Log)
	logger := log.WithComponent("luxid")

	if err := daemon.WritePidFile(cfg.PidFile); err != nil {
		return err
	}
	defer func() {
		if err := daemon.RemovePidFile(cfg.PidFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove pid file")
		}
	}()

	metrics.SetVersion(Version)

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		metrics.RegisterComponent(metrics.ComponentStore, false, err.Error())
		return fmt.Errorf("failed to open configuration store: %w", err)
	}
	defer store.Close()
	metrics.RegisterComponent(metrics.ComponentStore, true, "open")

	var collector query.Collector
	if cfg.LiveData {
		ccfg := rpc.CollectorConfig{Port: cfg.NodeAgentPort}
		if cfg.ClusterCertFile != "" {
			cert, err := security.LoadClusterCert(cfg.ClusterCertFile)
			if err != nil {
				return err
			}
			if security.CertNeedsRotation(cert.Leaf) {
				logger.Warn().
					Time("not_after", cert.Leaf.NotAfter).
					Msg("Cluster certificate expires soon")
			}
			ccfg.DialOptions = []grpc.DialOption{rpc.ClientCredentials(cert)}
		}
		rc := rpc.NewCollector(ccfg)
		defer rc.Close()
		collector = rc
	}

	m, err := master.New(store, collector, master.Config{
		LiveData:    cfg.LiveData,
		MaxJobs:     cfg.MaxJobs,
		WaitTimeout: cfg.WaitTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create master: %w", err)
	}
	defer m.Shutdown()
	metrics.RegisterComponent(metrics.ComponentQueue, true, "running")

	jobRunner := worker.NewWorker(m.Queue(), m.Broker(), worker.Config{})
	jobRunner.Start()
	defer jobRunner.Stop()

	reload := func() error {
		if err := m.Reload(cfg.NodesFile, cfg.InstancesFile); err != nil {
			metrics.RegisterComponent(metrics.ComponentDataFiles, false, err.Error())
			return err
		}
		metrics.RegisterComponent(metrics.ComponentDataFiles, true, "loaded")
		return nil
	}
	if _, err := os.Stat(cfg.NodesFile); err == nil {
		if err := reload(); err != nil {
			return fmt.Errorf("failed to load data files: %w", err)
		}
	} else {
		logger.Warn().Str("file", cfg.NodesFile).Msg("No nodes file, serving the stored configuration")
	}

	servers, err := startLuxi(cmd.Context(), cfg, m)
	defer func() {
		for _, s := range servers {
			s.Close()
		}
	}()
	if err != nil {
		metrics.RegisterComponent(metrics.ComponentLuxi, false, err.Error())
		return err
	}
	metrics.RegisterComponent(metrics.ComponentLuxi, true, "listening")

	var status *metrics.StatusServer
	if cfg.MetricsAddr != "" {
		status = metrics.NewStatusServer(cfg.MetricsAddr)
		if err := status.Start(); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
	}

	mc := metrics.NewCollector(m, 0)
	mc.Start()
	defer mc.Stop()

	loop := daemon.NewMainloop()
	loop.Every(cfg.ArchiveInterval, func() {
		archived, left, err := m.Queue().AutoArchive(cfg.ArchiveAge, 30*time.Second)
		if err != nil {
			logger.Warn().Err(err).Msg("Job auto-archiving failed")
			return
		}
		logger.Debug().Int("archived", archived).Int("left", left).Msg("Auto-archived jobs")
	})
	loop.RegisterSignalWaiter(daemon.SignalFunc(func(sig os.Signal) {
		if sig != syscall.SIGHUP {
			return
		}
		if err := reload(); err != nil {
			logger.Error().Err(err).Msg("Reload on SIGHUP failed")
		}
	}))

	changed := daemon.NewThrottle(loop, time.Second, func() {
		if err := reload(); err != nil {
			logger.Error().Err(err).Msg("Reload after data file change failed")
		}
	})
	for _, path := range []string{cfg.NodesFile, cfg.InstancesFile} {
		w, err := watchDataFile(path, changed.Trigger)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("Not watching data file")
			continue
		}
		defer w.Close()
	}

	logger.Info().
		Str("socket", cfg.SocketPath).
		Str("readonly_socket", cfg.ReadOnlySocketPath).
		Bool("live_data", cfg.LiveData).
		Str("version", Version).
		Msg("luxid started")

	if err := loop.Run(cmd.Context()); err != nil {
		return err
	}

	if status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := status.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("Status server shutdown failed")
		}
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

// startLuxi serves the master on the read-write socket and, when
// configured, on the read-only one
func startLuxi(ctx context.Context, cfg config.Config, h luxi.Handler) ([]*luxi.Server, error) {
	sockets := []struct {
		path     string
		readOnly bool
	}{
		{cfg.SocketPath, false},
		{cfg.ReadOnlySocketPath, true},
	}

	var servers []*luxi.Server
	for _, s := range sockets {
		s := s
		if s.path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return servers, fmt.Errorf("failed to create socket directory: %w", err)
		}
		l, err := luxi.Listen(s.path)
		if err != nil {
			return servers, err
		}
		srv := luxi.NewServer(h, s.readOnly, cfg.Timeouts)
		servers = append(servers, srv)
		go func() {
			if err := srv.Serve(ctx, l); err != nil {
				logger := log.WithComponent("luxid")
				logger.Error().Err(err).Str("socket", s.path).Msg("LUXI server failed")
			}
		}()
	}
	return servers, nil
}
