package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	outcomesHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	outcomesCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes [profile-id]",
	Short: "Show journaled mutation outcomes of a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutcomes,
}

func runOutcomes(cmd *cobra.Command, args []string) error {
	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if journal == nil {
		return errors.New("no journal configured (set telemetry.journal_path)")
	}
	defer journal.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := journal.ListByProfile(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No outcomes recorded for %s\n", args[0])
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		reason := e.Reason
		if e.Error != "" && reason != "" {
			reason += ": " + e.Error
		} else if e.Error != "" {
			reason = e.Error
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime), e.PageID, e.Mutator, string(e.Status), reason,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TIME", "PAGE", "MUTATOR", "STATUS", "REASON").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return outcomesHeaderStyle
			}
			return outcomesCellStyle
		})
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}
