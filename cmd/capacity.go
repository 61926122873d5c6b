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
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/infra/logger"
)

var (
	capSnapshotPath    string
	capMaintenancePath string
	capDayFlag         string
)

var capacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Compute a best/worst case capacity forecast for one day",
	RunE:  runCapacity,
}

func init() {
	capacityCmd.Flags().StringVar(&capSnapshotPath, "snapshot", "snapshot.json", "reference snapshot file")
	capacityCmd.Flags().StringVar(&capMaintenancePath, "maintenance", "", "maintenance requests file")
	capacityCmd.Flags().StringVar(&capDayFlag, "day", "", "forecast day (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(capacityCmd)
}

func runCapacity(cmd *cobra.Command, args []string) error {
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

	var snap model.Snapshot
	if err := loadJSON(capSnapshotPath, &snap); err != nil {
		return err
	}
	snap.Settings = cfg.Settings
	var reqs []model.MaintenanceRequest
	if capMaintenancePath != "" {
		if err := loadJSON(capMaintenancePath, &reqs); err != nil {
			return err
		}
	}
	day := time.Now().UTC().Truncate(24 * time.Hour)
	if capDayFlag != "" {
		day, err = time.Parse("2006-01-02", capDayFlag)
		if err != nil {
			return fmt.Errorf("invalid day %q: %w", capDayFlag, err)
		}
	}

	report, err := svc.Engine.ComputeCapacity(ctx, &snap, reqs, day)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "capacity forecast for %s\n", day.Format("2006-01-02"))
	for _, slotID := range report.SlotIDs {
		body := report.BodyType[slotID]
		fmt.Fprintf(out, "%s: narrow %d/%d wide %d/%d\n",
			slotID, body.NarrowWorst, body.NarrowBest, body.WideWorst, body.WideBest)
		for _, tc := range report.TypeCodes {
			fmt.Fprintf(out, "  %s: best %d worst %d\n", tc, report.BestCase[slotID][tc], report.WorstCase[slotID][tc])
		}
	}
	return nil
}
