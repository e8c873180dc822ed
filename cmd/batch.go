package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/batch"
)

var batchJobID string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the worker for one job until it completes, pauses or errors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Run(ctx, batchJobID)
		if err != nil {
			return err
		}
		zap.L().Info("batch worker finished",
			zap.String("job_id", res.JobID),
			zap.String("status", string(res.Status)),
			zap.Int("batches", res.Batches),
			zap.Int("processed", res.Processed),
			zap.Int("failed", res.Failed),
			zap.Float64("cost_usd", res.CostUSD),
		)
		return nil
	},
}

var superviseCmd = &cobra.Command{
	Use:   "supervise",
	Short: "Poll job rows and run a worker for every running job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "supervise")
		if err != nil {
			return err
		}
		defer env.Close()

		interval := time.Duration(cfg.Batch.PollIntervalSecs) * time.Second
		batch.NewSupervisor(env.Orchestrator, env.Store, interval).Run(ctx)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchJobID, "job", "", "job id (required)")
	_ = batchCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(superviseCmd)
}
