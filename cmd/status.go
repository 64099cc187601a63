package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fwilab/seistep/internal/store"
)

var (
	statusDataDir string
	statusTail    int
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show inversion job status",
	Long: `Shows job status from the on-disk checkpoints.
If no job-id is provided, lists all jobs.
If a job-id is provided, shows its configuration, progress and the tail of
its line search logbook.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDataDir, "data-dir", "", "Base directory for job data")
	statusCmd.Flags().IntVar(&statusTail, "tail", 8, "Logbook rows to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	dataDir := pickString(statusDataDir, cfg.DataDir)

	checkpoints, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	if len(args) == 0 {
		return listJobs(checkpoints)
	}
	return showJob(checkpoints, dataDir, args[0])
}

func listJobs(checkpoints *store.FSStore) error {
	infos, err := checkpoints.ListCheckpoints()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tPROBLEM\tSTRATEGY\tITERATION\tMISFIT")
	fmt.Fprintln(w, "------\t-------\t--------\t---------\t------")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3e\n",
			info.JobID, info.Problem, info.Strategy, info.Iteration, info.Misfit)
	}
	w.Flush()

	fmt.Printf("\nTotal jobs: %d\n", len(infos))
	return nil
}

func showJob(checkpoints *store.FSStore, dataDir, jobID string) error {
	ckpt, err := checkpoints.LoadCheckpoint(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("job not found: %s", jobID)
		}
		return err
	}

	fmt.Printf("Job: %s\n", ckpt.JobID)
	fmt.Printf("Checkpointed: %s\n", ckpt.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Problem:    %s (dim %d)\n", ckpt.Config.Problem, ckpt.Config.Dim)
	fmt.Printf("  Strategy:   %s\n", ckpt.Config.Strategy)
	fmt.Printf("  Iterations: %d\n", ckpt.Config.Iters)
	fmt.Printf("  Max trials: %d\n", ckpt.Config.MaxTrials)
	if ckpt.Config.MaxStep > 0 {
		fmt.Printf("  Max step:   %.3e\n", ckpt.Config.MaxStep)
	} else {
		fmt.Printf("  Max step:   unbounded\n")
	}
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Iteration:      %d\n", ckpt.Iteration)
	fmt.Printf("  Evaluations:    %d\n", len(ckpt.History.StepLens))
	fmt.Printf("  Initial misfit: %.3e\n", ckpt.InitialMisfit)
	fmt.Printf("  Misfit:         %.3e\n", ckpt.Misfit)
	if ckpt.InitialMisfit > 0 {
		improvement := ckpt.InitialMisfit - ckpt.Misfit
		fmt.Printf("  Improvement:    %.3e (%.1f%%)\n",
			improvement, improvement/ckpt.InitialMisfit*100)
	}

	logbook, err := store.OpenLogbook(store.JobLogbookPath(dataDir, jobID))
	if err != nil {
		return nil // no logbook is fine, checkpoint is authoritative
	}
	rows, err := logbook.Tail(statusTail)
	if err != nil || len(rows) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Printf("Last %d evaluations:\n", len(rows))
	for _, row := range rows {
		fmt.Println("  " + row)
	}
	return nil
}
