package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect ingestion job history",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingestion jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		venueID, _ := cmd.Flags().GetString("venue")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status:  model.JobStatus(status),
			VenueID: venueID,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVENUE\tSTATUS\tFAILED STAGE\tCREATED")
		for _, job := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				job.ID, job.VenueID, job.Status, failedStage(job),
				job.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

// failedStage names the first failed stage of a job, if any.
func failedStage(job model.Job) string {
	for _, stage := range model.StageOrder {
		if job.Stages[stage].Status == model.StageStatusFailed {
			return string(stage)
		}
	}
	return ""
}

// -- jobs get --

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show a single job with its per-stage results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs get")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		}
		printJob(job, false)
		return nil
	},
}

func init() {
	jobsListCmd.Flags().String("status", "", "filter by job status (running, completed, failed)")
	jobsListCmd.Flags().String("venue", "", "filter by venue ID")
	jobsListCmd.Flags().Int("limit", 50, "maximum jobs to list")
	jobsGetCmd.Flags().Bool("json", false, "print the job as JSON")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	rootCmd.AddCommand(jobsCmd)
}
