package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect and flag the cluster",
}

var clusterInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cluster information",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		info, err := c.QueryClusterInfo()
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, k := range keys {
			v := formatValue(info[k])
			if k == "ctime" || k == "mtime" {
				if ts, ok := info[k].(float64); ok {
					v = formatTimestamp(ts)
				}
			}
			fmt.Fprintf(w, "%s:\t%s\n", k, v)
		}
		return w.Flush()
	},
}

var clusterConfigCmd = &cobra.Command{
	Use:   "config NAME...",
	Short: "Show configuration values",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		values, err := c.QueryConfigValues(args)
		if err != nil {
			return err
		}
		for i, name := range args {
			fmt.Printf("%s: %s\n", name, formatValue(values[i]))
		}
		return nil
	},
}

var clusterTagsCmd = &cobra.Command{
	Use:   "tags KIND [NAME]",
	Short: "List the tags of the cluster, a node, a node group or an instance",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 2 {
			name = args[1]
		}
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		tags, err := c.QueryTags(args[0], name)
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Println(t)
		}
		return nil
	},
}

var clusterExportsCmd = &cobra.Command{
	Use:   "exports [NODE...]",
	Short: "List the instance exports found on each node",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		exports, err := c.QueryExports(args, false)
		if err != nil {
			return err
		}

		nodes := make([]string, 0, len(exports))
		for n := range exports {
			nodes = append(nodes, n)
		}
		sort.Strings(nodes)
		for _, n := range nodes {
			list, ok := exports[n].([]interface{})
			if !ok {
				fmt.Printf("%s: (unreachable)\n", n)
				continue
			}
			items := make([]string, len(list))
			for i, e := range list {
				items[i] = formatValue(e)
			}
			fmt.Printf("%s: %s\n", n, strings.Join(items, " "))
		}
		return nil
	},
}

var drainCmd = &cobra.Command{
	Use:       "drain on|off",
	Short:     "Set or clear the queue drain flag",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var flag bool
		switch args[0] {
		case "on":
			flag = true
		case "off":
		default:
			return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
		}

		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		return c.SetDrainFlag(flag)
	},
}

var watcherPauseCmd = &cobra.Command{
	Use:   "watcher-pause DURATION",
	Short: "Pause the cluster watcher for a while",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		until := float64(time.Now().Add(d).Unix())
		got, err := c.SetWatcherPause(&until)
		if err != nil {
			return err
		}
		if got == nil {
			fmt.Println("Watcher not paused")
			return nil
		}
		fmt.Printf("Watcher paused until %s\n", formatTimestamp(*got))
		return nil
	},
}

var watcherContinueCmd = &cobra.Command{
	Use:   "watcher-continue",
	Short: "Resume the cluster watcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		_, err = c.SetWatcherPause(nil)
		return err
	},
}

func init() {
	clusterCmd.AddCommand(clusterInfoCmd)
	clusterCmd.AddCommand(clusterConfigCmd)
	clusterCmd.AddCommand(clusterTagsCmd)
	clusterCmd.AddCommand(clusterExportsCmd)
	clusterCmd.AddCommand(drainCmd)
	clusterCmd.AddCommand(watcherPauseCmd)
	clusterCmd.AddCommand(watcherContinueCmd)
}

func formatTimestamp(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Format(time.RFC3339)
}
