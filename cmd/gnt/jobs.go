package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sanyaade-teachings/ganeti/pkg/luxi"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Submit and manage jobs",
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit FILE",
	Short: "Submit the opcodes in a YAML file as a job",
	Long: `Submit a job. The file holds a list of opcodes, each a mapping with at
least an OP_ID key. With --many the file holds a list of such lists and
every list becomes its own job.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if many, _ := cmd.Flags().GetBool("many"); many {
			var jobs [][]types.OpCode
			if err := yaml.Unmarshal(data, &jobs); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}
			results, err := c.SubmitManyJobs(jobs)
			if err != nil {
				return err
			}
			for i, r := range results {
				if r.Err != nil {
					fmt.Printf("job %d: failed: %v\n", i, r.Err)
					continue
				}
				fmt.Println(r.JobID)
			}
			return nil
		}

		var ops []types.OpCode
		if err := yaml.Unmarshal(data, &ops); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		id, err := c.SubmitJob(ops)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list [ID...]",
	Short: "List jobs and their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseJobIDs(args)
		if err != nil {
			return err
		}
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		rows, err := c.QueryJobs(ids, []string{"id", "status", "summary"})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSUMMARY")
		for i, row := range rows {
			if row == nil {
				fmt.Fprintf(w, "%s\tunknown\t-\n", ids[i])
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", formatValue(row[0]), formatValue(row[1]), formatValue(row[2]))
		}
		return w.Flush()
	},
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch ID",
	Short: "Follow a job's log until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseJobID(args[0])
		if err != nil {
			return err
		}
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		status, err := followJob(c, id, func(e types.LogEntry) {
			fmt.Printf("%s %s\n", formatTimestamp(e.Timestamp), formatValue(e.Message))
		})
		if err != nil {
			return err
		}
		fmt.Printf("Job %s %s\n", id, status)
		if status != types.JobStatusSuccess {
			return fmt.Errorf("job %s ended with status %s", id, status)
		}
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a job that has not started yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseJobID(args[0])
		if err != nil {
			return err
		}
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ok, msg, err := c.CancelJob(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s", msg)
		}
		fmt.Println(msg)
		return nil
	},
}

var jobsArchiveCmd = &cobra.Command{
	Use:   "archive ID...",
	Short: "Move finished jobs to the archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseJobIDs(args)
		if err != nil {
			return err
		}
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		for _, id := range ids {
			archived, err := c.ArchiveJob(id)
			if err != nil {
				return err
			}
			if !archived {
				fmt.Printf("Job %s not archived\n", id)
			}
		}
		return nil
	},
}

var jobsAutoArchiveCmd = &cobra.Command{
	Use:   "autoarchive",
	Short: "Archive finished jobs older than a given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		age, _ := cmd.Flags().GetDuration("age")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		all, _ := cmd.Flags().GetBool("all")

		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ageSecs := int64(age.Seconds())
		if all {
			ageSecs = -1
		}
		archived, left, err := c.AutoArchiveJobs(ageSecs, int64(timeout.Seconds()))
		if err != nil {
			return err
		}
		fmt.Printf("Archived %d jobs, %d left unexamined\n", archived, left)
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsArchiveCmd)
	jobsCmd.AddCommand(jobsAutoArchiveCmd)

	jobsSubmitCmd.Flags().Bool("many", false, "The file holds a list of jobs")
	jobsAutoArchiveCmd.Flags().Duration("age", 0, "Minimum age of archived jobs")
	jobsAutoArchiveCmd.Flags().Duration("timeout", 0, "Time to spend archiving")
	jobsAutoArchiveCmd.Flags().Bool("all", false, "Archive every finished job regardless of age")
}

// followJob waits for changes of job id and hands every new log entry to
// onLog. It returns the final job status.
func followJob(c *luxi.Client, id types.JobID, onLog func(types.LogEntry)) (types.JobStatus, error) {
	var (
		prevInfo   []interface{}
		prevSerial *int64
	)
	for {
		change, err := c.WaitForJobChange(luxi.WaitForJobChange{
			JobID:         id,
			Fields:        []string{"status"},
			PrevJobInfo:   prevInfo,
			PrevLogSerial: prevSerial,
			Timeout:       30,
		})
		if err != nil {
			return "", err
		}
		if change.Unchanged {
			continue
		}

		for _, e := range change.LogEntries {
			onLog(e)
			serial := e.Serial
			prevSerial = &serial
		}
		if prevSerial == nil {
			zero := int64(0)
			prevSerial = &zero
		}
		prevInfo = change.JobInfo
		if len(change.JobInfo) == 0 {
			return "", fmt.Errorf("job %s: empty job info", id)
		}

		status := types.JobStatus(fmt.Sprint(change.JobInfo[0]))
		if status.IsFinalized() {
			return status, nil
		}
	}
}

func parseJobIDs(args []string) ([]types.JobID, error) {
	ids := make([]types.JobID, 0, len(args))
	for _, a := range args {
		id, err := types.ParseJobID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
