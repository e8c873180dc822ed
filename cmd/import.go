package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/seed"
)

var (
	importProject   string
	importFile      string
	importCreateJob bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import seed clients from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := seed.NewImporter(env.Store, "import").ImportFile(ctx, importProject, importFile)
		if err != nil {
			return eris.Wrap(err, "import seeds")
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.Int("created", sum.Created),
			zap.Int("updated", sum.Updated),
			zap.Int("skipped", sum.Skipped),
		)

		if !importCreateJob || len(sum.ClientIDs) == 0 {
			return nil
		}
		job := &model.Job{ProjectID: importProject}
		if err := env.Orchestrator.NewJob(ctx, job, sum.ClientIDs); err != nil {
			return eris.Wrap(err, "create job")
		}
		zap.L().Info("job created", zap.String("job_id", job.ID), zap.Int("clients", job.TotalClients))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importProject, "project", "", "project id (required)")
	importCmd.Flags().StringVar(&importFile, "file", "", "path to .csv or .xlsx file (required)")
	importCmd.Flags().BoolVar(&importCreateJob, "create-job", false, "create a pending job over the imported clients")
	_ = importCmd.MarkFlagRequired("project")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
