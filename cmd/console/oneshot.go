package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dispatch-console/internal/calls"
	"dispatch-console/internal/config"
	"dispatch-console/internal/kanban"
	"dispatch-console/internal/normalize"
	"dispatch-console/internal/query"
	"dispatch-console/pkg/logger"
)

var (
	outputJSON bool

	boardFilter kanban.BoardFilter

	callsFilter query.Filter
	callsMissed string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Fetch the board once and print its columns",
	Long: `Board fetches categories and team leads once and prints the Kanban columns.

Example:
  console board
  console board --status "En intervention"
  console board --search 0612 --json`,
	RunE: runBoard,
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Query the call history once",
	Long: `Calls runs one filtered call-history query and prints the page.

Example:
  console calls --direction INBOUND --missed true
  console calls --start-date 2026-10-01 --end-date 2026-10-07 --page 2 --page-size 50`,
	RunE: runCalls,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print JSON instead of a table")

	boardCmd.Flags().StringVar(&boardFilter.Search, "search", "", "match team, leader name or phone")
	boardCmd.Flags().StringVar(&boardFilter.Status, "status", "", "exact status")
	boardCmd.Flags().StringVar(&boardFilter.Team, "team", "", "team name")

	callsCmd.Flags().StringVar(&callsFilter.Number, "number", "", "calling or called number contains")
	callsCmd.Flags().StringVar(&callsFilter.Direction, "direction", "", "INBOUND or OUTBOUND")
	callsCmd.Flags().StringVar(&callsMissed, "missed", "", "true or false")
	callsCmd.Flags().StringVar(&callsFilter.StartDate, "start-date", "", "YYYY-MM-DD")
	callsCmd.Flags().StringVar(&callsFilter.EndDate, "end-date", "", "YYYY-MM-DD")
	callsCmd.Flags().IntVar(&callsFilter.Page, "page", 1, "page number")
	callsCmd.Flags().IntVar(&callsFilter.PageSize, "page-size", 20, "page size")
}

func oneShotEngine(cmd *cobra.Command) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.NewTo(cmd.ErrOrStderr(), cfg.App.Env)
	slog.SetDefault(log)
	return dial(cmd.Context(), cfg, log)
}

func runBoard(cmd *cobra.Command, _ []string) error {
	eng, err := oneShotEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := cmd.Context()
	if eng.replica != nil {
		cats, leads, err := eng.replica.Board(ctx)
		if err != nil {
			return fmt.Errorf("read board: %w", err)
		}
		eng.store.Categories.ReplaceAll(cats)
		eng.store.TeamLeads.ReplaceAll(leads)
	} else {
		cats, err := eng.client.ListCategories(ctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		leads, err := eng.client.ListTeamLeads(ctx)
		if err != nil {
			return fmt.Errorf("list team leads: %w", err)
		}
		eng.store.Categories.ReplaceAll(cats)
		eng.store.TeamLeads.ReplaceAll(leads)
	}

	cols := kanban.NewBoard(eng.store, eng.client).Columns(boardFilter)
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), cols)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, col := range cols {
		fmt.Fprintf(w, "%s (%d)\n", strings.ToUpper(col.Name), len(col.Cards))
		for _, card := range col.Cards {
			fmt.Fprintf(w, "  %d\t%s\t%s %s\t%s\t%s\n",
				card.ID, card.TeamName, card.LeaderFirstName, card.LeaderLastName, card.Status, card.PhoneDisplay)
		}
	}
	return w.Flush()
}

func runCalls(cmd *cobra.Command, _ []string) error {
	f := callsFilter
	switch callsMissed {
	case "":
	case "true":
		f.Missed = query.Yes
	case "false":
		f.Missed = query.No
	default:
		return fmt.Errorf("%w: --missed must be true or false", query.ErrInvalidFilter)
	}
	f.Direction = strings.ToUpper(f.Direction)
	if err := f.Validate(); err != nil {
		return err
	}

	eng, err := oneShotEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	page, err := eng.searchCalls(cmd.Context(), f)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), page)
	}
	return printCalls(cmd.OutOrStdout(), page)
}

func printCalls(out io.Writer, page calls.Page) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDIR\tFROM\tTO\tDURATION\tMISSED")
	for _, c := range page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%ds\t%t\n",
			c.ID, c.StartedAt.Format("2006-01-02 15:04"), c.Direction,
			normalize.ToDisplayFormat(c.CallingNumber), normalize.ToDisplayFormat(c.CalledNumber),
			c.DurationSeconds, c.IsMissed)
	}
	fmt.Fprintf(w, "page %d, %d of %d\n", page.Page, len(page.Items), page.Total)
	return w.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
