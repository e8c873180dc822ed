package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runClientID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run enrichment for a single client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		result, runErr := env.Pipeline.Run(ctx, runClientID)
		env.Dispatcher.Dispatch(ctx, result.Events...)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			zap.L().Warn("failed to print result", zap.Error(err))
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runClientID, "client", "", "client id (required)")
	_ = runCmd.MarkFlagRequired("client")
	rootCmd.AddCommand(runCmd)
}
