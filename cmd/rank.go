package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/linkrank/internal/config"
	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/linkgraph"
	"github.com/papapumpkin/linkrank/internal/report"
	"github.com/papapumpkin/linkrank/internal/store"
	"github.com/papapumpkin/linkrank/internal/telemetry"
	"github.com/papapumpkin/linkrank/internal/tui"
	"github.com/papapumpkin/linkrank/internal/ui"
	"github.com/papapumpkin/linkrank/internal/watch"
)

var rankCmd = &cobra.Command{
	Use:   "rank <corpus>",
	Short: "Rank the pages of a corpus",
	Long: `Builds the link graph of a corpus and ranks it by random-surfer sampling,
by iteration, or both at once.

The corpus is a directory of .html files or an edge-list file. With --edges,
the argument is always read as an edge list, and "-" reads one from standard
input.

With --watch, the corpus is re-ranked whenever one of its files changes.
With --out, every report is also written to that file as TOML; it can be
read back with "linkrank history --import".`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func init() {
	addRankFlags(rankCmd.Flags(), config.MethodBoth)
	rankCmd.Flags().String("format", config.FormatText, "report format: text, json or toml")
	rankCmd.Flags().Bool("save", false, "save the run to the history database")
	rankCmd.Flags().String("db", ".linkrank/history.db", "history database path")
	rankCmd.Flags().String("telemetry", "", "write JSONL run events to this file")
	rankCmd.Flags().String("out", "", "also write the report to this file as TOML")
	rankCmd.Flags().Bool("watch", false, "re-rank when corpus files change")
	rankCmd.Flags().Bool("tui", false, "show live progress in a terminal UI")
	rankCmd.Flags().Bool("edges", false, `read the corpus as an edge list ("-" for stdin)`)
	rootCmd.AddCommand(rankCmd)
}

// ranker carries the per-invocation state of the rank command.
type ranker struct {
	req     engine.Request
	format  report.Format
	printer *ui.Printer
	emitter *telemetry.Emitter
	history *store.Store
	dbPath  string
	outPath string
	log     *logrus.Logger
	out     io.Writer
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	save, _ := cmd.Flags().GetBool("save")
	watching, _ := cmd.Flags().GetBool("watch")
	useTUI, _ := cmd.Flags().GetBool("tui")
	edges, _ := cmd.Flags().GetBool("edges")
	outPath, _ := cmd.Flags().GetString("out")

	src := newCorpusSource(args[0], edges, cmd.InOrStdin())
	if watching && src.path == stdinPath {
		return errWatchStdin
	}

	format, err := report.FormatByName(cfg.Format)
	if err != nil {
		return err
	}

	printer := ui.New()
	ctx, cancel := setupSignalContext(printer)
	defer cancel()

	r := &ranker{
		req:     engine.FromConfig(cfg),
		format:  format,
		printer: printer,
		dbPath:  cfg.Store.Path,
		outPath: outPath,
		log:     newLogger(cfg.Verbose),
		out:     cmd.OutOrStdout(),
	}

	if cfg.Telemetry != "" {
		r.emitter, err = telemetry.NewEmitter(cfg.Telemetry)
		if err != nil {
			return err
		}
		defer r.emitter.Close()
	}
	if save {
		r.history, err = store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer r.history.Close()
	}

	if useTUI {
		return r.interactive(ctx, src, watching)
	}
	return r.plain(ctx, src, watching)
}

// run ranks g once, recording telemetry and saving the report when a
// history store is open.
func (r *ranker) run(ctx context.Context, g *linkgraph.Graph, name string, hooks engine.Hooks) (*report.Report, error) {
	runID := uuid.NewString()
	r.emitter.Record(telemetry.KindRunStart, runID, "", map[string]any{
		"corpus": name,
		"pages":  g.Len(),
		"links":  g.LinkCount(),
		"method": r.req.Method,
	})

	rep, err := engine.Run(ctx, g, name, r.req, engine.Chain(telemetryHooks(r.emitter, runID), hooks))
	if err != nil {
		r.emitter.Record(telemetry.KindRunFailed, runID, "", map[string]any{"error": err.Error()})
		return nil, err
	}
	rep.RunID = runID
	r.emitter.Record(telemetry.KindRunDone, runID, "", map[string]any{"sections": len(rep.Sections)})

	if r.history != nil {
		if err := r.history.Save(ctx, rep); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// write prints a finished report to the command's output and, with --out,
// saves it as TOML.
func (r *ranker) write(rep *report.Report) error {
	out, err := r.format.Render(rep)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(r.out, out); err != nil {
		return fmt.Errorf("rank: write report: %w", err)
	}
	if r.outPath != "" {
		if err := report.Save(r.outPath, rep); err != nil {
			return err
		}
		r.printer.Info(fmt.Sprintf("report written to %s", r.outPath))
	}
	if r.history != nil {
		r.printer.Saved(rep.RunID, r.dbPath)
	}
	return nil
}

func (r *ranker) once(ctx context.Context, src corpusSource) error {
	g, err := src.load()
	if err != nil {
		return err
	}
	r.printer.GraphLoaded(src.name(), g.Len(), g.LinkCount())
	rep, err := r.run(ctx, g, src.name(), printerHooks(r.printer))
	if err != nil {
		return err
	}
	return r.write(rep)
}

// plain ranks with line-oriented progress on stderr.
func (r *ranker) plain(ctx context.Context, src corpusSource, watching bool) error {
	if !watching {
		return r.once(ctx, src)
	}
	if err := r.once(ctx, src); err != nil {
		r.printer.Error(err.Error())
	}
	r.printer.Info(fmt.Sprintf("watching %s for changes (ctrl+c to stop)", src.path))
	return r.watch(ctx, src, func(files []string) {
		r.printer.CorpusChanged(files)
		if err := r.once(ctx, src); err != nil {
			r.printer.Error(err.Error())
		}
	})
}

// interactive ranks under the BubbleTea view. The report is printed once
// the view exits.
func (r *ranker) interactive(ctx context.Context, src corpusSource, watching bool) error {
	g, err := src.load()
	if err != nil {
		return err
	}
	methods, err := r.req.Methods()
	if err != nil {
		return err
	}

	model := tui.NewModel(src.name(), g.Len(), g.LinkCount(), methods)
	model.Watching = watching
	p := tui.NewProgram(model)
	bridge := tui.NewBridge(p)

	runCtx, stop := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		rep, err := r.run(runCtx, g, src.name(), bridge.Hooks())
		bridge.RunDone(rep, err)
		if !watching {
			return
		}
		err = r.watch(runCtx, src, func(files []string) {
			bridge.CorpusChanged(files)
			g, err := src.load()
			if err != nil {
				bridge.RunDone(nil, err)
				return
			}
			rep, err := r.run(runCtx, g, src.name(), bridge.Hooks())
			bridge.RunDone(rep, err)
		})
		if err != nil {
			bridge.WatchFailed(err)
		}
	}()
	go func() {
		<-runCtx.Done()
		p.Quit()
	}()

	final, err := p.Run()
	stop()
	<-finished
	if err != nil {
		return fmt.Errorf("rank: tui: %w", err)
	}

	model = final.(tui.Model)
	rep, runErr := model.Report()
	if runErr != nil {
		return runErr
	}
	if rep != nil {
		if err := r.write(rep); err != nil {
			return err
		}
	}
	if err := model.WatchErr(); err != nil {
		return fmt.Errorf("rank: watch: %w", err)
	}
	return nil
}

// watch calls onChange for every settled batch of corpus changes until ctx
// is canceled.
func (r *ranker) watch(ctx context.Context, src corpusSource, onChange func(files []string)) error {
	w, err := watch.New(src.path, r.log)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			r.emitter.Record(telemetry.KindCorpusChanged, "", "", map[string]any{"files": change.Files})
			onChange(change.Files)
		}
	}
}
