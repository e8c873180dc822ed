package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/store"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Create and control enrichment jobs",
	Long:  "Job control writes the desired status to the job row; workers started by supervise observe it before each batch.",
}

// -- job create --

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending job over a project's clients",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		project, _ := cmd.Flags().GetString("project")
		ids, _ := cmd.Flags().GetStringSlice("clients")
		if len(ids) == 0 {
			clients, err := env.Store.ListClients(ctx, store.ClientFilter{ProjectID: project, Limit: 100000})
			if err != nil {
				return eris.Wrap(err, "list clients")
			}
			for _, c := range clients {
				ids = append(ids, c.ID)
			}
		}

		job := &model.Job{ProjectID: project}
		job.BatchSize, _ = cmd.Flags().GetInt("batch-size")
		job.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		if err := env.Orchestrator.NewJob(ctx, job, ids); err != nil {
			return err
		}

		if start, _ := cmd.Flags().GetBool("start"); start {
			if err := env.Orchestrator.Start(ctx, job.ID); err != nil {
				return err
			}
		}
		fmt.Println(job.ID)
		return nil
	},
}

// -- job start|pause|resume --

func controlCmd(use, short string, fn func(e *appEnv) func(cmd *cobra.Command, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := initEnv(cmd.Context(), "status")
			if err != nil {
				return err
			}
			defer env.Close()
			if err := fn(env)(cmd, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "job %s: %s ok\n", args[0], use)
			return nil
		},
	}
}

var jobStartCmd = controlCmd("start", "Mark a pending job running", func(e *appEnv) func(*cobra.Command, string) error {
	return func(cmd *cobra.Command, id string) error { return e.Orchestrator.Start(cmd.Context(), id) }
})

var jobPauseCmd = controlCmd("pause", "Stop a job before its next batch", func(e *appEnv) func(*cobra.Command, string) error {
	return func(cmd *cobra.Command, id string) error { return e.Orchestrator.Pause(cmd.Context(), id) }
})

var jobResumeCmd = controlCmd("resume", "Make a paused or errored job runnable again", func(e *appEnv) func(*cobra.Command, string) error {
	return func(cmd *cobra.Command, id string) error { return e.Orchestrator.Resume(cmd.Context(), id) }
})

// -- job status --

var jobStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show one job, or list recent jobs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 0 {
			project, _ := cmd.Flags().GetString("project")
			jobs, err := env.Store.ListJobs(ctx, store.JobFilter{ProjectID: project})
			if err != nil {
				return eris.Wrap(err, "list jobs")
			}
			if len(jobs) == 0 {
				fmt.Fprintln(os.Stderr, "No jobs found.")
				return nil
			}
			formatJobsList(os.Stdout, jobs)
			return nil
		}

		job, err := env.Store.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		failures, err := env.Store.ListFailures(ctx, job.ID)
		if err != nil {
			return err
		}
		alerts, err := env.Store.ListAlertEvents(ctx, job.ID)
		if err != nil {
			return err
		}
		formatJobDetail(os.Stdout, job, failures, alerts)
		return nil
	},
}

// -- job retry-failed --

var jobRetryCmd = &cobra.Command{
	Use:   "retry-failed <job-id>",
	Short: "Create a new job over the failed clients of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Orchestrator.RetryFailed(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(job.ID)
		return nil
	},
}

func init() {
	jobCreateCmd.Flags().String("project", "", "project id (required)")
	jobCreateCmd.Flags().StringSlice("clients", nil, "client ids (default: every client of the project)")
	jobCreateCmd.Flags().Int("batch-size", 0, "clients per batch (default from config)")
	jobCreateCmd.Flags().Int("concurrency", 0, "concurrent pipelines per batch (default from config)")
	jobCreateCmd.Flags().Bool("start", false, "mark the job running right away")
	_ = jobCreateCmd.MarkFlagRequired("project")

	jobStatusCmd.Flags().String("project", "", "filter the job list by project")

	jobCmd.AddCommand(jobCreateCmd, jobStartCmd, jobPauseCmd, jobResumeCmd, jobStatusCmd, jobRetryCmd)
	rootCmd.AddCommand(jobCmd)
}
