package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/fwilab/seistep/internal/store"
)

var (
	plotDataDir string
	plotOut     string
	plotSteps   bool
)

var plotCmd = &cobra.Command{
	Use:   "plot <job-id>",
	Short: "Plot the misfit history of a job",
	Long: `Renders the per-evaluation misfit curve of a job from its trace file
to a PNG. With --steps, the trial step lengths are plotted as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlot,
}

func init() {
	plotCmd.Flags().StringVar(&plotDataDir, "data-dir", "", "Base directory for job data")
	plotCmd.Flags().StringVar(&plotOut, "out", "", "Output PNG path (default: <job-dir>/misfit.png)")
	plotCmd.Flags().BoolVar(&plotSteps, "steps", false, "Also plot step lengths to <job-dir>/steps.png")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	dataDir := pickString(plotDataDir, cfg.DataDir)

	reader, err := store.NewTraceReader(dataDir, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no trace for job %s in %s", jobID, dataDir)
		}
		return err
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("trace for job %s is empty", jobID)
	}

	jobDir := filepath.Join(dataDir, "jobs", jobID)

	misfits := make(plotter.XYs, len(entries))
	for i, e := range entries {
		misfits[i].X = float64(i)
		misfits[i].Y = e.Misfit
	}
	out := plotOut
	if out == "" {
		out = filepath.Join(jobDir, "misfit.png")
	}
	if err := savePlot(out, "Misfit history: "+jobID, "evaluation", "misfit", misfits); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d evaluations)\n", out, len(entries))

	if plotSteps {
		steps := make(plotter.XYs, len(entries))
		for i, e := range entries {
			steps[i].X = float64(i)
			steps[i].Y = e.StepLen
		}
		stepsOut := filepath.Join(jobDir, "steps.png")
		if err := savePlot(stepsOut, "Step lengths: "+jobID, "evaluation", "step length", steps); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", stepsOut)
	}

	return nil
}

func savePlot(path, title, xlabel, ylabel string, xys plotter.XYs) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("failed to build plot series: %w", err)
	}
	p.Add(line, points)
	p.Add(plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
