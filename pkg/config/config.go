package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/luxi"
	"github.com/sanyaade-teachings/ganeti/pkg/rpc"
	"github.com/sanyaade-teachings/ganeti/pkg/storage"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultSocketPath         = "/var/run/ganeti/socket/ganeti-master"
	DefaultReadOnlySocketPath = "/var/run/ganeti/socket/ganeti-query"
	DefaultDataDir            = "/var/lib/ganeti"
	DefaultPidFile            = "/var/run/ganeti/luxid.pid"
	DefaultMetricsAddr        = "127.0.0.1:1815"
	DefaultArchiveInterval    = time.Hour
	DefaultArchiveAge         = 6 * time.Hour
)

// Environment variables read by Load
const (
	EnvSocket         = "LUXID_SOCKET"
	EnvReadOnlySocket = "LUXID_RO_SOCKET"
	EnvDataDir        = "LUXID_DATA_DIR"
	EnvPidFile        = "LUXID_PID_FILE"
	EnvMetricsAddr    = "LUXID_METRICS_ADDR"
	EnvLiveData       = "LUXID_LIVE_DATA"
	EnvNodeAgentPort  = "LUXID_NODE_AGENT_PORT"
	EnvClusterCert    = "LUXID_CLUSTER_CERT"
	EnvMaxJobs        = "LUXID_MAX_JOBS"
	EnvWaitTimeout    = "LUXID_WAIT_TIMEOUT"
	EnvLogLevel       = "LUXID_LOG_LEVEL"
	EnvLogJSON        = "LUXID_LOG_JSON"
	EnvNodesFile      = "HTOOLS_NODES"
	EnvInstancesFile  = "HTOOLS_INSTANCES"
)

// Config is the luxid daemon configuration
type Config struct {
	SocketPath         string        `yaml:"socket"`
	ReadOnlySocketPath string        `yaml:"readonly_socket"`
	DataDir            string        `yaml:"data_dir"`
	PidFile            string        `yaml:"pid_file"`
	NodesFile          string        `yaml:"nodes_file"`
	InstancesFile      string        `yaml:"instances_file"`
	MetricsAddr        string        `yaml:"metrics_addr"`
	Timeouts           luxi.Timeouts `yaml:"timeouts"`
	LiveData           bool          `yaml:"live_data"`
	NodeAgentPort      int           `yaml:"node_agent_port"`
	ClusterCertFile    string        `yaml:"cluster_cert"` // Empty means plaintext agent connections
	MaxJobs            int           `yaml:"max_jobs"`
	WaitTimeout        time.Duration `yaml:"wait_timeout"`
	ArchiveInterval    time.Duration `yaml:"archive_interval"`
	ArchiveAge         time.Duration `yaml:"archive_age"`
	Log                log.Config    `yaml:"log"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		SocketPath:         DefaultSocketPath,
		ReadOnlySocketPath: DefaultReadOnlySocketPath,
		DataDir:            DefaultDataDir,
		PidFile:            DefaultPidFile,
		MetricsAddr:        DefaultMetricsAddr,
		Timeouts:           luxi.DefaultTimeouts(),
		LiveData:           true,
		NodeAgentPort:      rpc.DefaultAgentPort,
		WaitTimeout:        30 * time.Second,
		ArchiveInterval:    DefaultArchiveInterval,
		ArchiveAge:         DefaultArchiveAge,
		Log:                log.Config{Level: log.InfoLevel},
	}
}

// Load builds a Config from the defaults, an optional YAML file and the
// environment, in that order
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.NodesFile == "" {
		cfg.NodesFile = filepath.Join(cfg.DataDir, storage.DefaultNodesFile)
	}
	if cfg.InstancesFile == "" {
		cfg.InstancesFile = filepath.Join(cfg.DataDir, storage.DefaultInstancesFile)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the daemon cannot use
func (c Config) Validate() error {
	var errs []error
	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket path is empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data directory is empty"))
	}
	if c.NodeAgentPort <= 0 || c.NodeAgentPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid node agent port %d", c.NodeAgentPort))
	}
	if c.MaxJobs < 0 {
		errs = append(errs, fmt.Errorf("invalid max jobs %d", c.MaxJobs))
	}
	if c.Timeouts.Connect <= 0 || c.Timeouts.Send <= 0 || c.Timeouts.Receive <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	return errors.Join(errs...)
}

func applyEnvOverrides(cfg *Config) {
	cfg.SocketPath = getenv(EnvSocket, cfg.SocketPath)
	cfg.ReadOnlySocketPath = getenv(EnvReadOnlySocket, cfg.ReadOnlySocketPath)
	cfg.DataDir = getenv(EnvDataDir, cfg.DataDir)
	cfg.PidFile = getenv(EnvPidFile, cfg.PidFile)
	cfg.MetricsAddr = getenv(EnvMetricsAddr, cfg.MetricsAddr)
	cfg.NodesFile = getenv(EnvNodesFile, cfg.NodesFile)
	cfg.InstancesFile = getenv(EnvInstancesFile, cfg.InstancesFile)
	cfg.LiveData = getenvBool(EnvLiveData, cfg.LiveData)
	cfg.NodeAgentPort = getenvInt(EnvNodeAgentPort, cfg.NodeAgentPort)
	cfg.ClusterCertFile = getenv(EnvClusterCert, cfg.ClusterCertFile)
	cfg.MaxJobs = getenvInt(EnvMaxJobs, cfg.MaxJobs)
	cfg.WaitTimeout = getenvDuration(EnvWaitTimeout, cfg.WaitTimeout)
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = log.ParseLevel(v)
	}
	cfg.Log.JSONOutput = getenvBool(EnvLogJSON, cfg.Log.JSONOutput)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		invalidEnv(key, v, err)
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		invalidEnv(key, v, err)
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		invalidEnv(key, v, err)
		return fallback
	}
	return d
}

func invalidEnv(key, value string, err error) {
	logger := log.WithComponent("config")
	logger.Warn().Err(err).Str("env", key).Str("value", value).Msg("Ignoring invalid environment value")
}
