package main

import (
	"fmt"
	"os"

	"github.com/sanyaade-teachings/ganeti/pkg/config"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/luxi"
	"github.com/spf13/cobra"
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
	Use:   "gnt",
	Short: "Command line client for the cluster master daemon",
	Long: `gnt talks LUXI to luxid. It runs queries, submits and follows jobs,
and changes the cluster-wide drain and watcher flags.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := log.WarnLevel
		if cmd.Name() == "agent" {
			level = log.InfoLevel
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			level = log.DebugLevel
		}
		log.Init(log.Config{Level: level})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"gnt version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("socket", "", "LUXI socket (default from LUXID_SOCKET or "+config.DefaultSocketPath+")")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(listFieldsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(certCmd)
}

// dial connects to the socket named by --socket, the environment or the
// default path
func dial(cmd *cobra.Command) (*luxi.Client, error) {
	path, _ := cmd.Flags().GetString("socket")
	if path == "" {
		path = os.Getenv(config.EnvSocket)
	}
	if path == "" {
		path = config.DefaultSocketPath
	}
	c, err := luxi.Dial(path, luxi.DefaultTimeouts())
	if err != nil {
		return nil, fmt.Errorf("cannot reach luxid: %w", err)
	}
	return c, nil
}
