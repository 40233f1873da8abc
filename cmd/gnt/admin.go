package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/config"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/rpc"
	"github.com/sanyaade-teachings/ganeti/pkg/security"
	"github.com/sanyaade-teachings/ganeti/pkg/storage"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the YAML data files into a configuration database",
	Long: `Replace the contents of the configuration database with the nodes and
instances data files. luxid must not be running on the same data directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		nodes, _ := cmd.Flags().GetString("nodes")
		instances, _ := cmd.Flags().GetString("instances")
		if nodes == "" {
			nodes = envOr(config.EnvNodesFile, filepath.Join(dataDir, storage.DefaultNodesFile))
		}
		if instances == "" {
			instances = envOr(config.EnvInstancesFile, filepath.Join(dataDir, storage.DefaultInstancesFile))
		}

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open configuration store: %w", err)
		}
		defer store.Close()

		cfg, err := storage.Import(store, nodes, instances)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d groups, %d nodes and %d instances into %s\n",
			len(cfg.Groups), len(cfg.Nodes), len(cfg.Instances), filepath.Join(dataDir, storage.DBFile))
		return nil
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Serve node runtime data to the master",
	Long: `Run a node agent answering the master's live data requests. The runtime
data is read from a YAML file on every request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		runtimeFile, _ := cmd.Flags().GetString("runtime-file")
		listen, _ := cmd.Flags().GetString("listen")
		certFile, _ := cmd.Flags().GetString("cluster-cert")
		if name == "" {
			host, err := os.Hostname()
			if err != nil {
				return err
			}
			name = host
		}

		var opts []grpc.ServerOption
		if certFile != "" {
			cert, err := security.LoadClusterCert(certFile)
			if err != nil {
				return err
			}
			opts = append(opts, rpc.ServerCredentials(cert))
		}

		l, err := net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", listen, err)
		}

		s := rpc.NewAgentServer(rpc.NewAgent(name, rpc.FileInfo(runtimeFile)), opts...)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			s.GracefulStop()
		}()

		logger := log.WithComponent("agent")
		logger.Info().
			Str("node", name).
			Str("addr", l.Addr().String()).
			Str("runtime_file", runtimeFile).
			Bool("tls", certFile != "").
			Msg("Node agent serving")
		return s.Serve(l)
	},
}

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage the cluster certificate",
}

var certCreateCmd = &cobra.Command{
	Use:   "create FILE",
	Short: "Generate a new cluster certificate",
	Long: `Generate the certificate shared by luxid and the node agents. Copy the
file to every node and point luxid and the agents at it with --cluster-cert.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		validity, _ := cmd.Flags().GetDuration("validity")
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(args[0]); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to replace it", args[0])
		}
		cert, err := security.GenerateClusterCert(name, validity)
		if err != nil {
			return err
		}
		if err := security.SaveClusterCert(cert, args[0]); err != nil {
			return err
		}
		fmt.Printf("Cluster certificate written to %s, valid until %s\n",
			args[0], cert.Leaf.NotAfter.Format(time.RFC3339))
		return nil
	},
}

var certInfoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "Show the cluster certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cert, err := security.LoadClusterCert(args[0])
		if err != nil {
			return err
		}
		info := security.CertInfo(cert.Leaf)
		for _, key := range []string{"subject", "serial_number", "not_before", "not_after", "needs_rotation"} {
			fmt.Printf("%-15s %v\n", key+":", info[key])
		}
		return nil
	},
}

func init() {
	importCmd.Flags().String("data-dir", config.DefaultDataDir, "Directory holding the configuration database")
	importCmd.Flags().String("nodes", "", "Nodes data file")
	importCmd.Flags().String("instances", "", "Instances data file")

	agentCmd.Flags().String("name", "", "Node name served by this agent (default hostname)")
	agentCmd.Flags().String("runtime-file", "runtime.yaml", "YAML file with the node's runtime data")
	agentCmd.Flags().String("listen", fmt.Sprintf(":%d", rpc.DefaultAgentPort), "Address to listen on")
	agentCmd.Flags().String("cluster-cert", "", "Cluster certificate; only the master holding it may connect")

	certCreateCmd.Flags().String("name", "ganeti.cluster", "Common name of the certificate")
	certCreateCmd.Flags().Duration("validity", security.ClusterCertValidity, "Certificate lifetime")
	certCreateCmd.Flags().Bool("force", false, "Replace an existing file")
	certCmd.AddCommand(certCreateCmd, certInfoCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
