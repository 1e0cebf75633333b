package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/reqx/packages/history"
	"github.com/abdul-hamid-achik/reqx/packages/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded exchanges",
	Long: `Show exchanges recorded with --history (or "history" in the config file).

Without --sql the most recent exchanges are listed, newest first. With --sql
a read-only query runs against the exchanges table and the rows are printed
as JSON.

Examples:
  reqx history --history reqx.db
  reqx history --limit 50
  reqx history --sql "SELECT status, COUNT(*) AS n FROM exchanges GROUP BY status"`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyLimitFlag int
	historySQLFlag   string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of exchanges to show")
	historyCmd.Flags().StringVar(&historySQLFlag, "sql", "", "Run a read-only SQL query against the exchanges table")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := historyFlag
	if path == "" {
		path = cfg.History
	}
	if path == "" {
		return &exitError{code: ExitUsageError, err: fmt.Errorf("no history database: pass --history or set history in the config file")}
	}

	log := newLogger()
	rec, err := history.Open(path, log)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Warn("closing history", "error", err)
		}
	}()

	noColor := noColorFlag || cfg.GetNoColor()
	out := cmd.OutOrStdout()

	if historySQLFlag != "" {
		res, err := rec.Query(cmd.Context(), historySQLFlag)
		if err != nil {
			return &exitError{code: ExitUsageError, err: err}
		}
		data, err := json.Marshal(res.Rows)
		if err != nil {
			return fmt.Errorf("encoding rows: %w", err)
		}
		data = pretty.Pretty(data)
		if !noColor {
			data = pretty.Color(data, nil)
		}
		_, err = out.Write(data)
		return err
	}

	entries, err := rec.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No exchanges recorded")
		return nil
	}
	output.NewConsoleFormatter(output.WithWriter(out), output.WithNoColor(noColor)).FormatHistory(entries)
	return nil
}
