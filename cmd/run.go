package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwilab/seistep/internal/optimize"
	"github.com/fwilab/seistep/internal/search"
	"github.com/fwilab/seistep/internal/store"
)

var (
	runJobID     string
	runProblem   string
	runDim       int
	runStrategy  string
	runIters     int
	runMaxTrials int
	runMaxStep   float64
	runSeed      int64
	runDataDir   string
	runNoEarly   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an inversion against a built-in objective",
	Long: `Runs a steepest-descent inversion driven by the line search engine.
The objective stands in for the external wave-propagation solver; every
evaluation is appended to the job's logbook and trace, and a checkpoint is
written after each accepted iteration so the run can be resumed.`,
	RunE: runInversion,
}

func init() {
	runCmd.Flags().StringVar(&runJobID, "job-id", "", "Job identifier (default: run-<timestamp>)")
	runCmd.Flags().StringVar(&runProblem, "problem", "", "Objective: quadratic, rosenbrock")
	runCmd.Flags().IntVar(&runDim, "dim", 0, "Model dimension")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Line search strategy: bracket, bounded")
	runCmd.Flags().IntVar(&runIters, "iters", 0, "Max outer iterations")
	runCmd.Flags().IntVar(&runMaxTrials, "max-trials", 0, "Trial budget per line search")
	runCmd.Flags().Float64Var(&runMaxStep, "max-step", -1, "Max step length (0 = unbounded)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Random seed for the starting model")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Base directory for job data")
	runCmd.Flags().BoolVar(&runNoEarly, "no-early-stop", false, "Disable convergence-based early stopping")
	rootCmd.AddCommand(runCmd)
}

func runInversion(cmd *cobra.Command, args []string) error {
	runCfg := store.RunConfig{
		Problem:   pickString(runProblem, cfg.Driver.Problem),
		Dim:       pickInt(runDim, cfg.Driver.Dim),
		Strategy:  pickString(runStrategy, cfg.Search.Strategy),
		Iters:     pickInt(runIters, cfg.Driver.Iters),
		MaxTrials: pickInt(runMaxTrials, cfg.Search.MaxTrials),
		MaxStep:   cfg.Search.MaxStep,
		Seed:      cfg.Driver.Seed,
	}
	if runMaxStep >= 0 {
		runCfg.MaxStep = runMaxStep
	}
	if runSeed != 0 {
		runCfg.Seed = runSeed
	}
	dataDir := pickString(runDataDir, cfg.DataDir)

	jobID := runJobID
	if jobID == "" {
		jobID = fmt.Sprintf("run-%d", time.Now().Unix())
	}

	slog.Info("Starting inversion",
		"job_id", jobID,
		"problem", runCfg.Problem,
		"dim", runCfg.Dim,
		"strategy", runCfg.Strategy,
		"iters", runCfg.Iters,
	)

	drv, trace, err := buildDriver(runCfg, dataDir, jobID, false)
	if err != nil {
		return err
	}
	defer trace.Close()

	problem, _ := optimize.NewProblem(runCfg.Problem, runCfg.Dim)
	drv.SetModel(optimize.InitialModel(problem, runCfg.Seed))

	result, err := drv.Run(runCfg.Iters)
	if errors.Is(err, optimize.ErrLineSearchFailed) {
		fmt.Printf("Line search failed at iteration %d; history was rewound. "+
			"Retry with --max-trials or --max-step adjusted: seistep resume %s\n",
			result.Iterations+1, jobID)
		return err
	}
	if err != nil {
		return err
	}

	printResult(jobID, result)
	return nil
}

// buildDriver wires the search engine, logbook, trace and checkpoint store
// into a driver. Shared by run and resume; resume opens logbook and trace in
// append mode.
func buildDriver(runCfg store.RunConfig, dataDir, jobID string, appendMode bool) (*optimize.Driver, *store.TraceWriter, error) {
	problem, err := optimize.NewProblem(runCfg.Problem, runCfg.Dim)
	if err != nil {
		return nil, nil, err
	}
	strategy, err := search.NewStrategy(runCfg.Strategy)
	if err != nil {
		return nil, nil, err
	}

	eng := search.New(strategy, search.Config{
		MaxTrials: runCfg.MaxTrials,
		MaxStep:   runCfg.MaxStep,
	})

	checkpoints, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	logPath := store.JobLogbookPath(dataDir, jobID)
	var logbook *store.Logbook
	if appendMode {
		logbook, err = store.OpenLogbook(logPath)
	} else {
		logbook, err = store.NewLogbook(logPath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open logbook: %w", err)
	}
	eng.SetRecorder(logbook)

	trace, err := store.NewTraceWriter(dataDir, jobID, appendMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trace: %w", err)
	}

	drv := optimize.NewDriver(problem, eng, runCfg)
	drv.SetStore(checkpoints, jobID)
	drv.SetTrace(trace)
	if !runNoEarly {
		drv.SetTracker(optimize.NewConvergenceTracker(optimize.ConvergenceConfig{
			Enabled:   true,
			Patience:  cfg.Driver.ConvergencePatience,
			Threshold: cfg.Driver.ConvergenceThreshold,
		}))
	}
	return drv, trace, nil
}

func printResult(jobID string, result *optimize.Result) {
	improvement := result.InitialMisfit - result.Misfit
	pct := 0.0
	if result.InitialMisfit != 0 {
		pct = improvement / result.InitialMisfit * 100
	}
	fmt.Printf("Job %s: %d iterations, %d evaluations, misfit %.3e -> %.3e (%.1f%%)\n",
		jobID, result.Iterations, result.Evaluations,
		result.InitialMisfit, result.Misfit, pct)
	if result.Converged {
		fmt.Println("Stopped early: misfit improvement below threshold.")
	}
}

func pickString(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func pickInt(flag, fallback int) int {
	if flag > 0 {
		return flag
	}
	return fallback
}
