package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kfloy/apron/sim"
)

var (
	simSeed        int64
	simStands      int
	simFlights     int
	simMaintenance int
	simInvalidRate float64
	simDayFlag     string
	simOutDir      string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic snapshot, schedule and maintenance plan",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "random seed")
	simulateCmd.Flags().IntVar(&simStands, "stands", 20, "number of stands")
	simulateCmd.Flags().IntVar(&simFlights, "flights", 120, "number of flights")
	simulateCmd.Flags().IntVar(&simMaintenance, "maintenance", 5, "number of maintenance requests")
	simulateCmd.Flags().Float64Var(&simInvalidRate, "invalid-rate", 0, "fraction of defective rows")
	simulateCmd.Flags().StringVar(&simDayFlag, "day", "", "operating day (YYYY-MM-DD, default today)")
	simulateCmd.Flags().StringVar(&simOutDir, "out", ".", "output directory")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	if simDayFlag != "" {
		var err error
		day, err = time.Parse("2006-01-02", simDayFlag)
		if err != nil {
			return fmt.Errorf("invalid day %q: %w", simDayFlag, err)
		}
	}
	gen := sim.New(sim.Config{
		Seed:        simSeed,
		Stands:      simStands,
		Flights:     simFlights,
		Maintenance: simMaintenance,
		Day:         day,
		InvalidRate: simInvalidRate,
	})
	snap := gen.Snapshot()
	if err := writeJSON(filepath.Join(simOutDir, "snapshot.json"), snap); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(simOutDir, "flights.json"), gen.Rows(snap)); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(simOutDir, "maintenance.json"), gen.MaintenancePlan(snap)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote snapshot.json, flights.json, maintenance.json to %s\n", simOutDir)
	return nil
}
