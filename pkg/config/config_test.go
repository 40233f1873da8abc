package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultSocketPath, cfg.SocketPath)
	assert.Equal(t, DefaultReadOnlySocketPath, cfg.ReadOnlySocketPath)
	assert.Equal(t, filepath.Join(DefaultDataDir, "nodes.yaml"), cfg.NodesFile)
	assert.Equal(t, filepath.Join(DefaultDataDir, "instances.yaml"), cfg.InstancesFile)
	assert.True(t, cfg.LiveData)
	assert.Equal(t, 1811, cfg.NodeAgentPort)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connect)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luxid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
socket: /tmp/master.sock
data_dir: /srv/ganeti
live_data: false
max_jobs: 100
wait_timeout: 5s
timeouts:
  receive: 2m
log:
  level: debug
  json: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/master.sock", cfg.SocketPath)
	assert.Equal(t, DefaultReadOnlySocketPath, cfg.ReadOnlySocketPath)
	assert.Equal(t, "/srv/ganeti/nodes.yaml", cfg.NodesFile)
	assert.False(t, cfg.LiveData)
	assert.Equal(t, 100, cfg.MaxJobs)
	assert.Equal(t, 5*time.Second, cfg.WaitTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.Receive)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Send)
	assert.Equal(t, log.DebugLevel, cfg.Log.Level)
	assert.True(t, cfg.Log.JSONOutput)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("socket: [unterminated\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("node_agent_port: 70000\n"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "node agent port")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvSocket, "/run/luxi.sock")
	t.Setenv(EnvNodesFile, "/etc/cluster/nodes.yaml")
	t.Setenv(EnvInstancesFile, "/etc/cluster/instances.yaml")
	t.Setenv(EnvLiveData, "false")
	t.Setenv(EnvMaxJobs, "42")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvClusterCert, "/var/lib/ganeti/server.pem")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/run/luxi.sock", cfg.SocketPath)
	assert.Equal(t, "/etc/cluster/nodes.yaml", cfg.NodesFile)
	assert.Equal(t, "/etc/cluster/instances.yaml", cfg.InstancesFile)
	assert.False(t, cfg.LiveData)
	assert.Equal(t, 42, cfg.MaxJobs)
	assert.Equal(t, log.WarnLevel, cfg.Log.Level)
	assert.Equal(t, "/var/lib/ganeti/server.pem", cfg.ClusterCertFile)
}

func TestInvalidEnvIgnored(t *testing.T) {
	t.Setenv(EnvNodeAgentPort, "not-a-port")
	t.Setenv(EnvLiveData, "maybe")
	t.Setenv(EnvWaitTimeout, "-3s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1811, cfg.NodeAgentPort)
	assert.True(t, cfg.LiveData)
	assert.Equal(t, 30*time.Second, cfg.WaitTimeout)
}
