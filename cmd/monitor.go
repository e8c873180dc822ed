package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/monitoring"
)

var (
	monitorJobIDs []string
	monitorOnce   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check job progress for milestones and alert rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "monitor")
		if err != nil {
			return err
		}
		defer env.Close()

		checker := monitoring.NewChecker(env.Monitor, env.Store, env.Dispatcher, cfg.Monitoring)
		if monitorOnce {
			checker.CheckOnce(ctx, zap.L(), monitorJobIDs...)
			return nil
		}
		checker.Run(ctx, monitorJobIDs...)
		return nil
	},
}

func init() {
	monitorCmd.Flags().StringSliceVar(&monitorJobIDs, "job", nil, "job ids to watch (default: all running jobs)")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single check and exit")
	rootCmd.AddCommand(monitorCmd)
}
