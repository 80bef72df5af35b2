package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/linkrank/internal/config"
	"github.com/papapumpkin/linkrank/internal/report"
	"github.com/papapumpkin/linkrank/internal/store"
	"github.com/papapumpkin/linkrank/internal/ui"
)

var errExportNeedsRun = errors.New("history: --export needs --run")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show, export or import saved runs",
	Long: `Without flags, lists the runs saved by "linkrank rank --save", newest first.
With --run, prints the saved report of one run in the configured format, or
writes it as TOML to the --export file.
With --import, saves a TOML report written by "rank --out" or --export.
With --delete, removes a run.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("run", "", "show the report of this run")
	historyCmd.Flags().String("delete", "", "delete this run")
	historyCmd.Flags().String("export", "", "with --run, write the report to this file as TOML")
	historyCmd.Flags().String("import", "", "save the TOML report in this file as a run")
	historyCmd.Flags().Int("limit", 20, "maximum runs to list; 0 lists all")
	historyCmd.Flags().String("format", config.FormatText, "report format for --run: text, json or toml")
	historyCmd.Flags().String("db", ".linkrank/history.db", "history database path")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runID, _ := cmd.Flags().GetString("run")
	deleteID, _ := cmd.Flags().GetString("delete")
	limit, _ := cmd.Flags().GetInt("limit")
	exportPath, _ := cmd.Flags().GetString("export")
	importPath, _ := cmd.Flags().GetString("import")
	if exportPath != "" && runID == "" {
		return errExportNeedsRun
	}

	ctx := context.Background()
	s, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	switch {
	case importPath != "":
		rep, err := report.Load(importPath)
		if err != nil {
			return err
		}
		if err := s.Save(ctx, rep); err != nil {
			return err
		}
		ui.NewWriter(out).Info(fmt.Sprintf("imported %s as %s", importPath, rep.RunID))
		return nil
	case deleteID != "":
		if err := s.Delete(ctx, deleteID); err != nil {
			return err
		}
		ui.NewWriter(out).Info(fmt.Sprintf("deleted %s", deleteID))
		return nil
	case runID != "" && exportPath != "":
		rep, err := s.Get(ctx, runID)
		if err != nil {
			return err
		}
		if err := report.Save(exportPath, rep); err != nil {
			return err
		}
		ui.NewWriter(out).Info(fmt.Sprintf("exported %s to %s", runID, exportPath))
		return nil
	case runID != "":
		return showRun(ctx, out, s, runID, cfg.Format)
	default:
		runs, err := s.List(ctx, limit)
		if err != nil {
			return err
		}
		ui.NewWriter(out).RunList(runs)
		return nil
	}
}

func showRun(ctx context.Context, w io.Writer, s *store.Store, id, formatName string) error {
	rep, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	format, err := report.FormatByName(formatName)
	if err != nil {
		return err
	}
	text, err := format.Render(rep)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}
