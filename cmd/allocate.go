package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kfloy/apron/app"
	"github.com/kfloy/apron/config"
	"github.com/kfloy/apron/core/engine"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/infra/logger"
)

var (
	snapshotPath    string
	flightsPath     string
	maintenancePath string
	scheduleID      string
	dayFlag         string
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Run a full scheduling pass over a flight schedule",
	RunE:  runAllocate,
}

func init() {
	allocateCmd.Flags().StringVar(&snapshotPath, "snapshot", "snapshot.json", "reference snapshot file")
	allocateCmd.Flags().StringVar(&flightsPath, "flights", "flights.json", "raw flight rows file")
	allocateCmd.Flags().StringVar(&maintenancePath, "maintenance", "", "maintenance requests file")
	allocateCmd.Flags().StringVar(&scheduleID, "schedule", "default", "schedule identifier")
	allocateCmd.Flags().StringVar(&dayFlag, "day", "", "operating day (YYYY-MM-DD, derived from flights when empty)")
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	svc.Start(ctx)

	var snap model.Snapshot
	if err := loadJSON(snapshotPath, &snap); err != nil {
		return err
	}
	snap.Settings = cfg.Settings
	var rows []model.RawFlight
	if err := loadJSON(flightsPath, &rows); err != nil {
		return err
	}
	var reqs []model.MaintenanceRequest
	if maintenancePath != "" {
		if err := loadJSON(maintenancePath, &reqs); err != nil {
			return err
		}
	}
	var day time.Time
	if dayFlag != "" {
		day, err = time.Parse("2006-01-02", dayFlag)
		if err != nil {
			return fmt.Errorf("invalid day %q: %w", dayFlag, err)
		}
	}

	res, err := svc.Engine.RunAllocation(ctx, engine.RunRequest{
		ScheduleID:  scheduleID,
		Day:         day,
		Snapshot:    &snap,
		Rows:        rows,
		Maintenance: reqs,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s\n", res.RunID, res.State)
	fmt.Fprintf(out, "allocated: %d, unallocated: %d\n", len(res.Allocation.Allocated), len(res.Allocation.Unallocated))
	for _, u := range res.Allocation.Unallocated {
		fmt.Fprintf(out, "  %s: %s %s\n", u.FlightID, u.Reason, u.Detail)
	}
	if res.Utilisation != nil {
		fmt.Fprintf(out, "mean utilisation: %.2f\n", res.Utilisation.Summary.MeanUtilisation)
	}
	return nil
}
