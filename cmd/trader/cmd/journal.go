package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/internal/display"
	"github.com/rustyeddy/papertrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the risk event journal",
	Long: `Query and display risk events from the SQLite journal.

Subcommands:
  event  - Get details of a specific event by ID
  today  - List events recorded today
  day    - List events recorded on a specific day

Examples:
  trader journal event <event-id>
  trader journal today
  trader journal day 2024-01-15 --table`,
}

var journalEventCmd = &cobra.Command{
	Use:   "event <event-id>",
	Short: "Get details of a specific event",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEvent,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List events recorded today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJournalDay(cmd, time.Now().In(time.Local).Format("2006-01-02"))
	},
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List events recorded on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJournalDay(cmd, args[0])
	},
}

var (
	journalDBPath string
	journalTable  bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalEventCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (defaults to journal.db_path)")
	journalCmd.PersistentFlags().BoolVar(&journalTable, "table", false, "print a table instead of org-mode text")
}

func openJournalDB() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal database: pass --db or set journal.db_path")
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalEvent(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetEvent(args[0])
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatEventOrg(rec))
	return nil
}

func listJournalDay(cmd *cobra.Command, day string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListEventsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}

	if journalTable {
		display.Events(cmd.OutOrStdout(), recs)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatEventsOrg(recs))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
