// Command ocpsim is a thin CLI entry point wiring a structured TOML config
// into a Reservoir, stepping it with the configured method.Driver and
// appending SUMMARY.out/FastReview.out rows (§B). Parsing the legacy
// keyword deck itself is a named out-of-scope external collaborator (§1);
// this command only consumes the already-decoded config.Simulation.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reservoirsim/ocpcore/config"
	"github.com/reservoirsim/ocpcore/core/control"
	"github.com/reservoirsim/ocpcore/core/linsys"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/diagnostics"
	"github.com/reservoirsim/ocpcore/method"
	_ "github.com/reservoirsim/ocpcore/method/aim"
	_ "github.com/reservoirsim/ocpcore/method/fim"
	_ "github.com/reservoirsim/ocpcore/method/impes"
	"github.com/reservoirsim/ocpcore/ocperr"
	"github.com/reservoirsim/ocpcore/out"
	"github.com/reservoirsim/ocpcore/reservoir"
)

var (
	configPath string
	outDir     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ocpsim",
	Short: "Run a reservoir simulation case from a structured config file.",
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the TOML simulation config (required)")
	runCmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write SUMMARY.out/FastReview.out into")
	runCmd.MarkFlagRequired("config")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured simulation to its end time.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath, outDir)
	},
}

func run(configPath, outDir string) (err error) {
	defer ocperr.Recover(&err)

	log := diagnostics.New(logrus.InfoLevel)
	sim, err := config.Load(configPath)
	if err != nil {
		return err
	}

	cells, conns, wells, err := buildReservoir(sim)
	if err != nil {
		return err
	}

	ctrl, err := control.New([]float64{0, endTime(sim)}, sim.Tuning)
	if err != nil {
		return err
	}
	ctrl.ApplyStage(0)
	if err := ctrl.InitTime(0); err != nil {
		return err
	}

	rs, err := reservoir.New(cells, conns, wells, ctrl, log)
	if err != nil {
		return err
	}

	driverName := map[string]string{"IMPEC": "impes", "FIM": "fim", "AIM": "aim"}[sim.Method]
	driver, err := method.New(driverName)
	if err != nil {
		return err
	}
	if err := driver.Setup(rs); err != nil {
		return err
	}

	ls := linsys.New(len(cells), 6)
	defer ls.Free()

	summary, err := out.NewSummaryWriter(filepath.Join(outDir, "SUMMARY.out"), sim.Summary.Well, wellNames(wells), []string{}, nil)
	if err != nil {
		return err
	}
	defer summary.Close()

	fastReview, err := out.NewFastReview(filepath.Join(outDir, "FastReview.out"))
	if err != nil {
		return err
	}
	defer fastReview.Close()

	for ctrl.CurrentTime < ctrl.EndTime {
		if err := driver.GoOneStep(rs, ctrl, ls); err != nil {
			return err
		}
		if err := summary.AppendRow(ctrl.CurrentTime, rs); err != nil {
			return err
		}
		if err := fastReview.AppendRow(ctrl.CurrentTime, ctrl.LastDt, 0, rs.FieldVolumeError(), 0, 0, rs.MaxCFL(ctrl.LastDt)); err != nil {
			return err
		}
		log.With(logrus.Fields{"step": ctrl.NumTstep, "dt": ctrl.LastDt}).Info("step accepted")
	}
	return nil
}

func endTime(sim *config.Simulation) float64 {
	end := 0.0
	for _, c := range sim.Controls {
		if float64(c.Day) > end {
			end = float64(c.Day)
		}
	}
	if end == 0 {
		end = 365
	}
	return end
}

func wellNames(wells []*well.Well) []string {
	names := make([]string, len(wells))
	for i, w := range wells {
		names[i] = w.Name
	}
	return names
}
