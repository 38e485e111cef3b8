package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/tasklog"
)

// countTasksReport is the --json output of count-tasks.
type countTasksReport struct {
	Operator    string           `json:"operator"`
	Status      tasklog.Status   `json:"status"`
	Messages    []string         `json:"messages"`
	Records     int              `json:"records"`
	Matched     int              `json:"matched"`
	SkippedRows int              `json:"skipped_rows"`
	ValidTasks  int              `json:"valid_tasks_count"`
	PerType     []typeCountEntry `json:"per_type"`
}

type typeCountEntry struct {
	Type          string  `json:"tipo"`
	Count         int     `json:"quantidade"`
	TargetSeconds float64 `json:"meta_segundos"`
}

func newCountTasksCmd(v *viper.Viper) *cobra.Command {
	var (
		file     string
		operator string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "count-tasks",
		Short: "Count an operator's valid tasks in a WMS export",
		RunE: func(cmd *cobra.Command, args []string) error {
			if operator == "" {
				return fmt.Errorf("--operator is required")
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			// Targets come from the configured catalog, same as the server.
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			catalog, err := factory.LoadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}

			res := tasklog.Parse(string(raw))
			sum := tasklog.NewFilter(catalog.Targets).CountValidTasks(res.Records, operator)
			report := newCountTasksReport(operator, res, sum)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderCountTasks(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path of the WMS export")
	cmd.Flags().StringVar(&operator, "operator", "", "operator name as it appears in the export")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCountTasksReport(operator string, res tasklog.ParseResult, sum tasklog.Summary) countTasksReport {
	r := countTasksReport{
		Operator:    operator,
		Status:      res.Status,
		Messages:    res.Messages,
		Records:     len(res.Records),
		Matched:     sum.Matched,
		SkippedRows: res.SkippedRows,
		ValidTasks:  sum.Total,
		PerType:     make([]typeCountEntry, 0, len(sum.PerType)),
	}
	if r.Messages == nil {
		r.Messages = []string{}
	}
	for _, tc := range sum.PerType {
		r.PerType = append(r.PerType, typeCountEntry{
			Type:          tc.Type,
			Count:         tc.Count,
			TargetSeconds: tc.Target.Seconds(),
		})
	}
	return r
}

func renderCountTasks(w io.Writer, r countTasksReport) {
	fmt.Fprintf(w, "status: %s  records: %d  matched: %d  skipped rows: %d\n",
		r.Status, r.Records, r.Matched, r.SkippedRows)
	for _, m := range r.Messages {
		fmt.Fprintf(w, "  %s\n", m)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Type", "Target", "Valid"})
	for _, tc := range r.PerType {
		tw.AppendRow(table.Row{tc.Type, fmt.Sprintf("%.0fs", tc.TargetSeconds), tc.Count})
	}
	tw.AppendFooter(table.Row{"", "Total", r.ValidTasks})
	tw.Render()
}
