package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

func formatJobsList(w io.Writer, jobs []model.Job) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROJECT\tSTATUS\tPROGRESS\tFAILED\tBATCH\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%d/%d\t%s\n",
			j.ID, j.ProjectID, j.Status,
			j.Processed, j.TotalClients, j.Failed,
			j.CurrentBatch, j.TotalBatches,
			j.CreatedAt.Format(time.DateTime))
	}
	_ = tw.Flush()
}

func formatJobDetail(w io.Writer, job *model.Job, failures []model.ItemFailure, alerts []model.AlertEvent) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Job:\t%s\n", job.ID)
	fmt.Fprintf(tw, "Project:\t%s\n", job.ProjectID)
	fmt.Fprintf(tw, "Status:\t%s\n", job.Status)
	if job.Message != "" {
		fmt.Fprintf(tw, "Message:\t%s\n", job.Message)
	}
	fmt.Fprintf(tw, "Progress:\t%d/%d (%.1f%%)\n", job.Processed, job.TotalClients, job.Percent())
	fmt.Fprintf(tw, "Succeeded:\t%d\n", job.Succeeded)
	fmt.Fprintf(tw, "Failed:\t%d\n", job.Failed)
	fmt.Fprintf(tw, "Batch:\t%d/%d (size %d, concurrency %d)\n",
		job.CurrentBatch, job.TotalBatches, job.BatchSize, job.Concurrency)
	if job.StartedAt != nil {
		fmt.Fprintf(tw, "Started:\t%s\n", job.StartedAt.Format(time.DateTime))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(tw, "Completed:\t%s\n", job.CompletedAt.Format(time.DateTime))
	}
	_ = tw.Flush()

	if len(failures) > 0 {
		fmt.Fprintf(w, "\nFailures (%d):\n", len(failures))
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CLIENT\tSTAGE\tKIND\tMESSAGE")
		for _, f := range failures {
			fmt.Fprintf(tw, "%s\t%d %s\t%s\t%s\n", f.ClientID, f.Stage, f.StageName, f.Kind, truncate(f.Message, 80))
		}
		_ = tw.Flush()
	}

	if len(alerts) > 0 {
		fmt.Fprintf(w, "\nAlerts (%d):\n", len(alerts))
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, a := range alerts {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.CreatedAt.Format(time.DateTime), a.Type, a.Message)
		}
		_ = tw.Flush()
	}
}

func formatHistory(w io.Writer, entries []model.HistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tFIELD\tOLD\tNEW\tACTOR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.DateTime), e.Kind, e.Field,
			deref(e.OldValue), deref(e.NewValue), e.Actor)
	}
	_ = tw.Flush()
}

func formatParties(w io.Writer, parties []model.Party) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCORE\tTIER\tSTATUS\tCITY\tSTATE\tWEBSITE")
	for _, p := range parties {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			truncate(p.Name, 40), p.QualityScore, p.QualityTier, p.ValidationStatus,
			p.City, p.State, p.Website)
	}
	_ = tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return truncate(*s, 40)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
