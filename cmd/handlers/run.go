package handlers

import (
	"fmt"
	"strings"
	"time"
	"wisgen/internal/core"
	"wisgen/internal/logger"
	"wisgen/internal/weekly"

	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command, the entry point for an external scheduler
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one full daily cycle",
		Long: `Run the daily stage, the trend stage when pipeline.trends_on_cycle is set,
and the weekly stage when today is the configured end of week.

A failing stage does not stop the following ones; the command exits non-zero
when any stage failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result := s.runner.RunCycle(cmd.Context())
			logger.Info("Cycle finished", "summary", result.Summary())
			fmt.Println(result.Summary())
			return result.Err
		},
	}
}

// NewDailyCmd creates the daily command
func NewDailyCmd() *cobra.Command {
	var ids []string

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Pull newsletters and write today's insight batch",
		Long: `Query the mail source for today's newsletters, save each accepted one and
write its insights to insights/daily/<date>.json.

With --ids the query is skipped and exactly those messages are processed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.runner.RunDaily(cmd.Context(), ids)
			if err != nil {
				return err
			}
			printStats(result.Stats)
			if result.Path == "" {
				fmt.Println("No insights written")
				return nil
			}
			fmt.Printf("Wrote %d insights to %s\n", len(result.Insights), result.Path)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&ids, "ids", nil, "process these message ids instead of querying the source")
	return cmd
}

// NewTrendsCmd creates the trends command
func NewTrendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Short: "Analyze trends across all daily insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.runner.RunTrends(cmd.Context())
			if err != nil {
				return err
			}
			if report == nil {
				fmt.Println("No insights available to analyze")
				return nil
			}
			fmt.Printf("Analyzed %d insights (%d failed entries omitted)\n", report.Entries, report.Omitted)
			fmt.Printf("Report: %s\n", report.Path)
			return nil
		},
	}
}

// NewWeeklyCmd creates the weekly command
func NewWeeklyCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Synthesize the weekly digest",
		Long: `Synthesize the digest of the 7 days ending today. Without --date the digest
is only produced on the configured end of week (weekly.end_of_week).

--date YYYY-MM-DD synthesizes the window ending on that date regardless of
the weekday.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var end *time.Time
			if date != "" {
				t, err := time.ParseInLocation(core.DateLayout, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", date, err)
				}
				end = &t
			}

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			digest, err := s.runner.RunWeekly(cmd.Context(), end)
			if err != nil {
				return err
			}
			if digest == nil {
				fmt.Println(weeklySkipMessage(end, time.Now(), s.cfg.Weekly.Weekday()))
				return nil
			}
			fmt.Printf("Weekly digest %s to %s from %d insights: %s\n", digest.Start, digest.End, digest.Entries, digest.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "last day of the week to synthesize (YYYY-MM-DD)")
	return cmd
}

// weeklySkipMessage explains why no digest was written. An explicit end date
// bypasses the weekday gate, so only an empty window is left.
func weeklySkipMessage(end *time.Time, today time.Time, endOfWeek time.Weekday) string {
	if end == nil && today.Weekday() != endOfWeek {
		return fmt.Sprintf("Not the end of the week (%s); nothing to do", endOfWeek)
	}
	last := today
	if end != nil {
		last = *end
	}
	window := weekly.Window(last)
	return fmt.Sprintf("No insights between %s and %s; nothing to do", window[0], window[len(window)-1])
}

// NewProcessCmd creates the process command
func NewProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Rewrite saved HTML newsletters into clean, annotated pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.runner.RunProcess(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Processed %d, skipped %d, failed %d\n", len(result.Processed), result.Skipped, result.Failed)
			for _, path := range result.Processed {
				fmt.Println("  " + path)
			}
			return nil
		},
	}
}

func printStats(stats core.RunStats) {
	parts := []string{
		fmt.Sprintf("candidates=%d", stats.Candidates),
		fmt.Sprintf("saved=%d", stats.Saved),
		fmt.Sprintf("summarized=%d", stats.Summarized),
		fmt.Sprintf("rejected=%d", stats.Rejected),
		fmt.Sprintf("dropped=%d", stats.Dropped),
		fmt.Sprintf("fetch_failures=%d", stats.FetchFailures),
		fmt.Sprintf("decode_failures=%d", stats.DecodeFailures),
		fmt.Sprintf("synthesis_failures=%d", stats.SynthesisFailure),
	}
	fmt.Println(strings.Join(parts, " "))
}
