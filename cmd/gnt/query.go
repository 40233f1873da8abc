package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query KIND [FIELD...]",
	Short: "Query nodes, groups or instances",
	Long: `Query a resource kind (node, group, instance) and print one row per item.

Without fields only the name is shown. A filter is given in its JSON list
form, e.g. --filter '["=", "name", "node1"]'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := types.ItemType(args[0])
		fields := args[1:]
		if len(fields) == 0 {
			fields = []string{"name"}
		}

		var filter query.Filter
		if raw, _ := cmd.Flags().GetString("filter"); raw != "" {
			f, err := query.ParseFilter([]byte(raw))
			if err != nil {
				return err
			}
			filter = f
		}

		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.Query(kind, fields, filter)
		if err != nil {
			return err
		}

		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		return printResult(os.Stdout, res, !noHeaders)
	},
}

var listFieldsCmd = &cobra.Command{
	Use:   "list-fields KIND [FIELD...]",
	Short: "List the fields known for a resource kind",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.QueryFields(types.ItemType(args[0]), args[1:])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tTITLE\tDESCRIPTION")
		for _, f := range res.Fields {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, f.Kind, f.Title, f.Doc)
		}
		return w.Flush()
	},
}

func init() {
	queryCmd.Flags().String("filter", "", "Filter in JSON list form")
	queryCmd.Flags().Bool("no-headers", false, "Do not print column titles")
}

// printResult writes res as an aligned table
func printResult(out io.Writer, res *types.QueryResult, headers bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if headers {
		titles := make([]string, len(res.Fields))
		for i, f := range res.Fields {
			titles[i] = f.Title
			if titles[i] == "" {
				titles[i] = f.Name
			}
		}
		fmt.Fprintln(w, strings.Join(titles, "\t"))
	}
	for _, row := range res.Data {
		cells := make([]string, len(row))
		for i, e := range row {
			cells[i] = formatEntry(e)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

// formatEntry renders a result cell; missing values show their status
func formatEntry(e types.ResultEntry) string {
	if e.Status != types.RSNormal {
		return "(" + e.Status.String() + ")"
	}
	return formatValue(e.Value)
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case bool:
		if v {
			return "Y"
		}
		return "N"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
