package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fwilab/seistep/internal/optimize"
	"github.com/fwilab/seistep/internal/store"
)

var (
	resumeIters     int
	resumeMaxTrials int
	resumeMaxStep   float64
	resumeDataDir   string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume an inversion from its checkpoint",
	Long: `Restores the model and the full line-search history from the job's
checkpoint and continues the inversion. The search budgets (--iters,
--max-trials, --max-step) may be adjusted, which is the intended recovery
path after a failed line search; objective, dimension and strategy must
match the checkpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Additional outer iterations (default: checkpoint setting)")
	resumeCmd.Flags().IntVar(&resumeMaxTrials, "max-trials", 0, "Trial budget per line search (default: checkpoint setting)")
	resumeCmd.Flags().Float64Var(&resumeMaxStep, "max-step", -1, "Max step length, 0 = unbounded (default: checkpoint setting)")
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "", "Base directory for job data")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	dataDir := pickString(resumeDataDir, cfg.DataDir)

	checkpoints, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	ckpt, err := checkpoints.LoadCheckpoint(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no checkpoint for job %s in %s", jobID, dataDir)
		}
		return err
	}
	if err := ckpt.Validate(); err != nil {
		return fmt.Errorf("checkpoint for %s is unusable: %w", jobID, err)
	}

	// Budgets may be adjusted on resume; identity fields come from the
	// checkpoint and IsCompatible holds by construction.
	runCfg := ckpt.Config
	runCfg.Iters = pickInt(resumeIters, runCfg.Iters)
	runCfg.MaxTrials = pickInt(resumeMaxTrials, runCfg.MaxTrials)
	if resumeMaxStep >= 0 {
		runCfg.MaxStep = resumeMaxStep
	}

	drv, trace, err := buildDriver(runCfg, dataDir, jobID, true)
	if err != nil {
		return err
	}
	defer trace.Close()

	if err := drv.ResumeFrom(ckpt); err != nil {
		return err
	}

	result, err := drv.Run(runCfg.Iters)
	if errors.Is(err, optimize.ErrLineSearchFailed) {
		fmt.Printf("Line search failed again at iteration %d; history was rewound.\n",
			result.Iterations+1)
		return err
	}
	if err != nil {
		return err
	}

	printResult(jobID, result)
	return nil
}
