package handlers

import (
	"fmt"
	"time"
	"wisgen/internal/config"
	"wisgen/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statusStyle = map[string]lipgloss.Style{
		store.StatusOK:      cellStyle.Foreground(lipgloss.Color("42")),
		store.StatusSkipped: cellStyle.Foreground(lipgloss.Color("244")),
		store.StatusFailed:  cellStyle.Foreground(lipgloss.Color("196")),
	}
)

// statusColumn is the index of the status column in the runs table
const statusColumn = 2

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := store.NewLayout(config.Get().App.DataDir)
			if err := layout.Ensure(); err != nil {
				return err
			}
			ledger, err := store.OpenLedger(layout)
			if err != nil {
				return err
			}
			defer ledger.Close()

			runs, err := ledger.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			stats, err := ledger.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("wisgen runs (%d total, %d failed)", stats.TotalRuns, stats.FailedRuns)))
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet")
				return nil
			}
			fmt.Println(renderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

// renderRuns renders runs as a table, newest first.
func renderRuns(runs []store.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		detail := run.Output
		if run.Error != "" {
			detail = run.Error
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(run.Kind),
			run.Status,
			run.Duration().Round(time.Millisecond).String(),
			fmt.Sprintf("%d/%d", run.Summarized, run.Candidates),
			detail,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "KIND", "STATUS", "DURATION", "SUMMARIZED", "OUTPUT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusColumn && row >= 0 && row < len(rows) {
				if style, ok := statusStyle[rows[row][col]]; ok {
					return style
				}
			}
			return cellStyle
		}).
		String()
}
