/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/journal"
)

var (
	runsLimit int
	runsMode  string
	runsState string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run journal",
	Long:  `List, inspect, summarise and clear the SQLite journal of finished runs.`,
}

func withJournal(fn func(ctx context.Context, j *journal.Journal) error) error {
	j, err := openJournalAt(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()
	return fn(context.Background(), j)
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := journal.ListOptions{Limit: runsLimit, State: runsState}
		if runsMode != "" {
			m, err := internal.ParseMode(runsMode)
			if err != nil {
				return err
			}
			opts.Mode = m
		}

		return withJournal(func(ctx context.Context, j *journal.Journal) error {
			runs, err := j.ListRuns(ctx, opts)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tMODE\tINTENT\tSTATE\tHALTED AT\tELAPSED\tINPUT")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					shortID(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04"), r.Mode, r.Intent,
					r.State, dash(string(r.HaltedAt)), r.Elapsed().Round(time.Millisecond), snippet(r.Input, 40))
			}
			return w.Flush()
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with every stage result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(func(ctx context.Context, j *journal.Journal) error {
			r, err := j.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Run:      %s\n", r.ID)
			fmt.Printf("Mode:     %s\n", r.Mode)
			fmt.Printf("Intent:   %s\n", r.Intent)
			fmt.Printf("State:    %s\n", r.State)
			if r.Error != "" {
				fmt.Printf("Error:    %s\n", r.Error)
			}
			fmt.Printf("Started:  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("Elapsed:  %s\n", r.Elapsed().Round(time.Millisecond))
			fmt.Printf("\nInput:\n%s\n", r.Input)

			for _, s := range r.Stages {
				status := "ok"
				if !s.Succeeded {
					status = "failed: " + s.Error
				}
				fmt.Printf("\n--- stage %d: %s (%s, %d attempt(s), %s, ~%d prompt tokens)\n",
					s.Index+1, s.RoleID, status, s.Attempts, s.Latency, s.PromptTokens)
				if s.Output != "" {
					fmt.Println(s.Output)
				}
			}
			return nil
		})
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Per-role call counts, failures and latency",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(func(ctx context.Context, j *journal.Journal) error {
			stats, err := j.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}
			if len(stats) == 0 {
				fmt.Println("No stage results recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tCALLS\tFAILURES\tAVG LATENCY\tAVG ATTEMPTS\tPROMPT TOKENS")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%.2f\t%d\n",
					s.RoleID, s.Calls, s.Failures, s.AvgLatency.Round(time.Millisecond), s.AvgAttempts, s.PromptTokens)
			}
			return w.Flush()
		})
	},
}

var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every recorded run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(func(ctx context.Context, j *journal.Journal) error {
			n, err := j.Clear(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear journal: %w", err)
			}
			fmt.Printf("Cleared %d runs from the journal.\n", n)
			return nil
		})
	},
}

// shortID keeps enough of a uuid to pass to "runs show".
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// snippet shortens s to at most n runes on one line.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs (0 = all)")
	runsListCmd.Flags().StringVar(&runsMode, "mode", "", "only runs in this mode: llm or agent")
	runsListCmd.Flags().StringVar(&runsState, "state", "", "only runs in this state: succeeded, failed or cancelled")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsClearCmd)
}
