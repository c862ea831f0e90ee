package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-agent/internal/api"
	"github.com/insightdelivered/statement-agent/internal/artifact"
	"github.com/insightdelivered/statement-agent/internal/config"
	"github.com/insightdelivered/statement-agent/internal/generator"
	"github.com/insightdelivered/statement-agent/internal/history"
	"github.com/insightdelivered/statement-agent/internal/logging"
	"github.com/insightdelivered/statement-agent/internal/repair"
	"github.com/insightdelivered/statement-agent/internal/workspace"
	"github.com/insightdelivered/statement-agent/internal/writer"
)

const version = api.Version

// exitFatal is used for errors; an exhausted repair run exits with 1.
const exitFatal = 2

var (
	configPath string
	verbose    bool

	target   string
	maxIters int
	quiet    bool
	workbook bool
	output   string
	asCSV    bool
	addr     string

	exitCode int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFatal)
	}
	os.Exit(exitCode)
}

var rootCmd = &cobra.Command{
	Use:   "statement-agent",
	Short: "Turn bank statement PDFs into normalized transaction tables",
	Long: `statement-agent keeps one parser artifact per statement format and checks
it against a reference table. When the output differs it patches the artifact,
or writes a new one, until the tables match or the iteration budget runs out.

Workspace layout:
  data/<target>/*.pdf                sample statement
  data/<target>/result.csv           reference table
  custom_parsers/<target>_parser.yaml parser artifact
  debug/<target>_got.csv             output of the last failed comparison`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default statement-agent.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd.Flags().StringVar(&target, "target", "", "statement format to repair")
	runCmd.Flags().IntVar(&maxIters, "max-iters", 0, "iteration budget (default from config)")
	runCmd.Flags().BoolVar(&quiet, "quiet", false, "print only PASS or FAIL")
	runCmd.Flags().BoolVar(&workbook, "workbook", false, "also write an xlsx with differing cells highlighted")
	runCmd.MarkFlagRequired("target")

	parseCmd.Flags().StringVar(&target, "target", "", "statement format whose artifact to run")
	parseCmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path (default stdout)")
	parseCmd.MarkFlagRequired("target")

	generateCmd.Flags().StringVar(&target, "target", "", "statement format to write an artifact for")
	generateCmd.MarkFlagRequired("target")

	historyCmd.Flags().StringVar(&target, "target", "", "only runs of this format")
	historyCmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV to stdout")

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	rootCmd.AddCommand(runCmd, parseCmd, generateCmd, historyCmd, serveCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate and repair the parser artifact of a target",
	Long: `Run the target's parser artifact on its sample statement and compare the
result with data/<target>/result.csv, patching or regenerating the artifact
between iterations.

Exit status is 0 when the tables match and 1 when the budget runs out.

Examples:
  statement-agent run --target icici
  statement-agent run --target hdfc --max-iters 5 --workbook`,
	Args: cobra.NoArgs,
	RunE: runRepair,
}

var parseCmd = &cobra.Command{
	Use:   "parse <statement.pdf>",
	Short: "Parse a statement with a target's stored artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a fresh parser artifact for a target",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded repair iterations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve parse and repair over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// env is everything a command needs, built from the loaded config.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	layout workspace.Layout
	store  artifact.Store
	run    artifact.Env
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logging.New(verbose)
	return &env{
		cfg: cfg,
		log: log,
		layout: workspace.Layout{
			DataDir:  cfg.Paths.DataDir,
			DebugDir: cfg.Paths.DebugDir,
			Workbook: cfg.Debug.Workbook || workbook,
		},
		store: artifact.Store{Dir: cfg.Paths.ParsersDir},
		run:   artifact.DefaultEnv(log),
	}, nil
}

func (e *env) generator() repair.Generator {
	if e.cfg.Generator.Kind == config.GeneratorClaude {
		return generator.Claude{
			Layout: e.layout,
			Lines:  e.run.Lines,
			APIKey: e.cfg.Generator.APIKey,
			Model:  e.cfg.Generator.Model,
			Log:    e.log,
		}
	}
	return generator.Template{Layout: e.layout}
}

func (e *env) loop(rec repair.Recorder) *repair.Loop {
	return &repair.Loop{
		Layout:    e.layout,
		Store:     e.store,
		Env:       e.run,
		Generator: e.generator(),
		Recorder:  rec,
		Log:       e.log,
	}
}

func runRepair(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	hist, err := history.Open(e.cfg.Paths.History)
	if err != nil {
		return err
	}
	defer hist.Close()

	iters := maxIters
	if iters == 0 {
		iters = e.cfg.Loop.MaxIters
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := e.loop(hist).Run(ctx, repair.Config{Target: target, MaxIters: iters, MaxDiffs: e.cfg.Loop.MaxDiffs})
	if err != nil {
		return err
	}

	if res.Status == repair.Success {
		color.New(color.BgGreen, color.FgBlack).Printf(" PASS ")
		fmt.Printf(" %s after %d iteration(s)\n", target, res.Iterations)
		return nil
	}
	color.New(color.BgRed, color.FgWhite).Printf(" FAIL ")
	fmt.Printf(" %s after %d iteration(s)\n", target, res.Iterations)
	if !quiet {
		fmt.Print(res.Diff)
		got, exp, _ := e.layout.DebugPaths(target)
		fmt.Printf("Debug tables: %s, %s\n", got, exp)
	}
	exitCode = res.ExitCode()
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	path := args[0]
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return errors.Errorf("expected a .pdf file, got %q", path)
	}
	a, err := e.store.Load(target)
	if err != nil {
		return err
	}
	t, err := a.Run(e.run, path)
	if err != nil {
		return err
	}

	w := &writer.CSVWriter{}
	if output == "" {
		return w.Write(cmd.OutOrStdout(), t)
	}
	if err := w.WriteToFile(output, t); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d row(s) written to %s\n", t.Len(), output)
	return nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	a, err := e.generator().Generate(cmd.Context(), target)
	if err != nil {
		return err
	}
	if err := e.store.Save(a); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (revision %d)\n", e.store.Path(target), a.Revision)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	hist, err := history.Open(e.cfg.Paths.History)
	if err != nil {
		return err
	}
	defer hist.Close()

	entries, err := hist.List(target)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if asCSV {
		return history.ExportCSV(out, entries)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tTARGET\tRUN\tITER\tOUTCOME\tCATEGORIES\tPATCHES")
	for _, en := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			en.At.Format("2006-01-02 15:04:05"), en.Target, shortID(en.RunID), en.Iteration,
			en.Outcome, strings.Join(en.Categories, ","), strings.Join(en.Patches, ","))
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	hist, err := history.Open(e.cfg.Paths.History)
	if err != nil {
		return err
	}
	defer hist.Close()

	listen := addr
	if listen == "" {
		listen = e.cfg.Server.Addr
	}
	app := api.NewApp(&api.Handler{
		Store:    e.store,
		Env:      e.run,
		Loop:     e.loop(hist),
		MaxIters: e.cfg.Loop.MaxIters,
		MaxDiffs: e.cfg.Loop.MaxDiffs,
		Log:      e.log,
	})

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		<-ch
		app.Shutdown()
	}()

	e.log.Info("listening", zap.String("addr", listen))
	fmt.Fprintf(cmd.OutOrStdout(), "statement-agent %s listening on %s\n", version, listen)
	return app.Listen(listen)
}
