package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshharrison/cpmsim/internal/cpm"
	"github.com/joshharrison/cpmsim/internal/ctxlog"
	"github.com/joshharrison/cpmsim/internal/graph"
	"github.com/joshharrison/cpmsim/internal/ingest"
	"github.com/joshharrison/cpmsim/internal/planner"
	"github.com/joshharrison/cpmsim/internal/reporter"
	"github.com/joshharrison/cpmsim/internal/simulation"
	"github.com/joshharrison/cpmsim/internal/state"
	"github.com/joshharrison/cpmsim/internal/ui"
	"github.com/joshharrison/cpmsim/internal/viewer"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagJSON      bool
	flagStart     string
	flagNoColor   bool
	flagTemplate  string
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// inputError marks failures caused by the project file rather than the run.
func inputError(err error) error {
	return &exitError{code: 2, err: err}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Red("error:"), err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cpmsim",
		Short: "Critical path scheduling and Monte Carlo schedule risk",
		Long: `cpmsim reads a task table (CSV, JSON, JSONL or HCL), computes early and late
dates, slack and the critical path, and simulates uncertain durations to
estimate finish-date percentiles and how often each task is critical.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagNoColor {
				ui.SetColor(false)
			}
			logger := ctxlog.New(flagLogLevel, flagLogFormat, os.Stderr)
			cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagStart, "start", "", "Project start date (YYYY-MM-DD), overrides the file")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&flagTemplate, "template", "", "Custom summary template path")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cleanCmd())

	return rootCmd
}

// schedule bundles everything derived from one project file.
type schedule struct {
	project *ingest.Project
	net     *graph.Network
	result  *cpm.Result
	plan    *planner.SchedulePlan
}

// buildSchedule is shared logic for every command that reads a project.
func buildSchedule(ctx context.Context, path string) (*schedule, error) {
	project, err := ingest.Load(ctx, path)
	if err != nil {
		return nil, inputError(err)
	}
	if flagStart != "" {
		start, err := ingest.ParseStart(flagStart)
		if err != nil {
			return nil, inputError(err)
		}
		project.Start = start
	}

	net, err := project.Network()
	if err != nil {
		return nil, inputError(err)
	}

	result, err := cpm.Analyze(net)
	if err != nil {
		return nil, fmt.Errorf("CPM analysis: %w", err)
	}

	plan, err := planner.Generate(net, result, planner.PlanConfig{
		Project:             project.Name,
		SummaryTemplatePath: flagTemplate,
	})
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	ctxlog.FromContext(ctx).Info("schedule computed",
		"project", project.Name, "tasks", net.Len(), "duration", result.TotalDuration,
		"critical_path", joinIDs(result.CriticalPath, ","))
	return &schedule{project: project, net: net, result: result, plan: plan}, nil
}

func scheduleCmd() *cobra.Command {
	var flagFormat string

	cmd := &cobra.Command{
		Use:   "schedule <project-file>",
		Short: "Compute early/late dates, slack and the critical path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rep := reporter.New(s.plan)
			out := cmd.OutOrStdout()

			if flagJSON {
				return outputJSON(cmd, rep)
			}
			switch flagFormat {
			case "table":
				rep.PrintSchedule(out)
				if s.plan.Summary != "" {
					fmt.Fprintf(out, "\n%s\n", s.plan.Summary)
				}
			case "tasks":
				rep.PrintTasks(out)
			case "csv":
				return rep.WriteCSV(out)
			case "json":
				return outputJSON(cmd, rep)
			default:
				return &exitError{code: 2, err: fmt.Errorf("unknown format %q (use table, tasks, csv or json)", flagFormat)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "table", "Output format (table, tasks, csv, json)")
	return cmd
}

func simulateCmd() *cobra.Command {
	var (
		flagTrials     int
		flagWorkers    int
		flagSeed       uint64
		flagMode       string
		flagNoCritical bool
		flagBins       int
		flagTop        int
	)

	cmd := &cobra.Command{
		Use:   "simulate <project-file>",
		Short: "Run a Monte Carlo simulation over uncertain task durations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !flagJSON {
				ui.PrintBanner(cmd.OutOrStdout())
			}

			s, err := buildSchedule(ctx, args[0])
			if err != nil {
				return err
			}

			mode, err := simulation.ParseMode(flagMode)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			seed := flagSeed
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			cfg := simulation.Config{
				Trials:       flagTrials,
				Mode:         mode,
				Workers:      flagWorkers,
				Seed:         seed,
				SkipCritical: flagNoCritical,
			}

			res, st, runErr := runSimulation(ctx, s, args[0], cfg, flagTop)
			if res == nil {
				return runErr
			}
			status := st.Status

			rep := reporter.New(s.plan).WithSimulation(res)
			if flagJSON {
				if err := outputJSON(cmd, rep); err != nil {
					return err
				}
			} else {
				rep.PrintSimulation(cmd.OutOrStdout(), flagBins, flagTop)
			}

			if runErr != nil {
				return &exitError{code: 130, err: runErr}
			}
			if status == state.StatusFailed {
				return fmt.Errorf("all %d trials failed", len(res.Failures))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&flagTrials, "trials", simulation.DefaultTrials, "Number of Monte Carlo trials")
	cmd.Flags().IntVar(&flagWorkers, "workers", runtime.GOMAXPROCS(0), "Concurrent trial workers")
	cmd.Flags().Uint64Var(&flagSeed, "seed", 0, "Random seed (0 picks one from the clock)")
	cmd.Flags().StringVar(&flagMode, "mode", "stochastic", "Duration mode (stochastic, mean)")
	cmd.Flags().BoolVar(&flagNoCritical, "no-critical", false, "Skip the backward pass and critical paths per trial")
	cmd.Flags().IntVar(&flagBins, "bins", 12, "Histogram bins")
	cmd.Flags().IntVar(&flagTop, "top", 5, "Number of distinct critical paths to show")

	return cmd
}

// runSimulation runs the trials and records the run under .cpmsim. The
// stored config is the runner's, with defaults applied. A nil result means
// the run never started.
func runSimulation(ctx context.Context, s *schedule, source string, cfg simulation.Config, top int) (*simulation.Result, *state.RunState, error) {
	logger := ctxlog.FromContext(ctx)

	var (
		st   *state.RunState
		step = 1
	)
	cfg.OnTrial = func(done, total int) {
		if done%step != 0 && done != total {
			return
		}
		logger.Info("simulation progress", "done", done, "total", total)
		if err := st.SetProgress(done); err != nil {
			logger.Warn("could not save progress", "error", err)
		}
	}

	runner, err := simulation.New(s.net, cfg)
	if err != nil {
		return nil, nil, &exitError{code: 2, err: err}
	}
	cfg = runner.Config()
	step = max(cfg.Trials/10, 1)

	runID := "sim-" + time.Now().Format("20060102-150405")
	st, err = state.New(runID, s.project.Name, source, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := state.SavePlan(s.plan); err != nil {
		logger.Warn("could not save plan", "error", err)
	}

	res, runErr := runner.Run(ctx)
	if res == nil {
		_ = st.SetStatus(state.StatusFailed)
		return nil, st, runErr
	}

	status := state.StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = state.StatusCancelled
	case len(res.Trials) == 0:
		status = state.StatusFailed
	}
	if err := st.Finish(status, res, top); err != nil {
		logger.Warn("could not save run state", "error", err)
	}
	if err := state.Archive(); err != nil {
		logger.Warn("could not archive run", "error", err)
	}
	return res, st, runErr
}

func statusCmd() *cobra.Command {
	var (
		flagRun  string
		flagList bool
		flagPlan bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last (or an archived) simulation run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if flagList {
				runs, err := state.ListArchived()
				if err != nil {
					return err
				}
				if flagJSON {
					return outputJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, ui.Dim("no archived runs"))
				}
				for _, id := range runs {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			var (
				st   *state.RunState
				plan *planner.SchedulePlan
				err  error
			)
			if flagRun != "" {
				st, plan, err = state.LoadArchived(flagRun)
				if err != nil {
					return fmt.Errorf("load archived run %s: %w", flagRun, err)
				}
			} else {
				if !state.Exists() {
					return fmt.Errorf("no simulation run found (no .cpmsim/state.json)")
				}
				st, err = state.Load()
				if err != nil {
					return err
				}
				if flagPlan && state.PlanExists() {
					plan, err = state.LoadPlan()
					if err != nil {
						return err
					}
				}
			}
			if flagPlan && plan == nil {
				return fmt.Errorf("no saved schedule for run %s", st.RunID)
			}

			if flagJSON {
				if flagPlan {
					return outputJSON(cmd, struct {
						Run  *state.RunState       `json:"run"`
						Plan *planner.SchedulePlan `json:"plan"`
					}{st, plan})
				}
				return outputJSON(cmd, st)
			}
			reporter.PrintStatus(out, st)
			if flagPlan {
				fmt.Fprintln(out)
				reporter.New(plan).PrintSchedule(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagRun, "run", "", "Show an archived run by id")
	cmd.Flags().BoolVar(&flagList, "list", false, "List archived runs")
	cmd.Flags().BoolVar(&flagPlan, "plan", false, "Also show the schedule saved with the run")
	return cmd
}

func vizCmd() *cobra.Command {
	var flagFormat string

	cmd := &cobra.Command{
		Use:   "viz <project-file>",
		Short: "Print the task network as ASCII or Graphviz DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch flagFormat {
			case "ascii":
				printASCIIDAG(cmd.OutOrStdout(), s.plan)
			case "dot":
				printDOT(cmd.OutOrStdout(), s.plan)
			default:
				return &exitError{code: 2, err: fmt.Errorf("unknown format %q (use ascii or dot)", flagFormat)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "ascii", "Output format (ascii, dot)")
	return cmd
}

func exportCmd() *cobra.Command {
	var flagFormat, flagOutput string

	cmd := &cobra.Command{
		Use:   "export <project-file>",
		Short: "Write the schedule table to CSV or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rep := reporter.New(s.plan)

			out := cmd.OutOrStdout()
			if flagOutput != "" {
				f, err := os.Create(flagOutput)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch flagFormat {
			case "csv":
				err = rep.WriteCSV(out)
			case "json":
				var data []byte
				data, err = rep.JSON()
				if err == nil {
					_, err = fmt.Fprintln(out, string(data))
				}
			default:
				return &exitError{code: 2, err: fmt.Errorf("unknown format %q (use csv or json)", flagFormat)}
			}
			if err != nil {
				return fmt.Errorf("export %s: %w", flagFormat, err)
			}
			if flagOutput != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s wrote %s\n", ui.Green("✓"), flagOutput)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "csv", "Export format (csv, json)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func serveCmd() *cobra.Command {
	var (
		flagPort   int
		flagTrials int
		flagSeed   uint64
		flagPush   string
	)

	cmd := &cobra.Command{
		Use:   "serve <project-file>",
		Short: "Serve the schedule graph and simulation results over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := buildSchedule(ctx, args[0])
			if err != nil {
				return err
			}

			if flagPush != "" {
				if err := viewer.PostPlan(flagPush, s.plan); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s pushed %s to %s\n", ui.Green("✓"), ui.Bold(s.project.Name), flagPush)
				return nil
			}

			srv := viewer.NewServer()
			srv.SetPlan(s.plan)

			if flagTrials > 0 {
				runner, err := simulation.New(s.net, simulation.Config{Trials: flagTrials, Seed: flagSeed})
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				res, err := runner.Run(ctx)
				if err != nil {
					return err
				}
				srv.SetSimulation(viewer.ToSimulationView(res, 20))
			}

			if viewer.IsPortOpen(fmt.Sprintf("localhost:%d", flagPort)) {
				return fmt.Errorf("port %d is already in use", flagPort)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🌐 Serving %s on http://localhost:%d (GET /graph, GET /simulation)\n",
				ui.Bold(s.project.Name), flagPort)
			return srv.Serve(ctx, flagPort)
		},
	}

	cmd.Flags().IntVar(&flagPort, "port", 7171, "HTTP port")
	cmd.Flags().IntVar(&flagTrials, "trials", 0, "Run a simulation of this many trials before serving")
	cmd.Flags().Uint64Var(&flagSeed, "seed", 1, "Random seed for --trials")
	cmd.Flags().StringVar(&flagPush, "push", "", "Send the graph to a running viewer (e.g. http://localhost:7171) instead of serving")
	return cmd
}

func cleanCmd() *cobra.Command {
	var flagAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the saved run state and schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clean, what := state.CleanCurrent, "current run"
			if flagAll {
				clean, what = state.Clean, "all runs and history"
			}
			if err := clean(); err != nil {
				return fmt.Errorf("clean: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed %s\n", ui.Green("✓"), what)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagAll, "all", false, "Also remove archived runs")
	return cmd
}

// --- Output helpers ---

func outputJSON(cmd *cobra.Command, v any) error {
	var (
		data []byte
		err  error
	)
	if rep, ok := v.(*reporter.Reporter); ok {
		data, err = rep.JSON()
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func joinIDs(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, sep)
}
