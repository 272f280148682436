package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagerock/ai-law-research/pkg/client"
)

// NewIngestCmd groups the bulk ingestion job commands.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run and inspect bulk ingestion jobs",
	}
	cmd.AddCommand(newIngestRunCmd(), newIngestStatusCmd(), newIngestListCmd(), newIngestCancelCmd(), newIngestDeleteCaseCmd())
	return cmd
}

func newIngestRunCmd() *cobra.Command {
	var retryOf, requester string
	var detach bool
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "run FEED_URI",
		Short: "Start a job over a JSONL feed (minio://, s3:// or file path known to the server)",
		Long: "Starts an ingestion job and waits for it to finish, polling its status.\n" +
			"With --retry-of the new job resumes the failed or partial job from its\n" +
			"committed offset; FEED_URI must match the original.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ing := cc.Client.Ingestion()
			job, err := ing.Submit(cmd.Context(), client.JobRequest{FeedURI: args[0], RetryOf: retryOf, Requester: requester})
			if err != nil {
				return err
			}
			if !detach {
				cc.Logger.Info(fmt.Sprintf("job %s submitted, waiting", job.ID))
				if job, err = ing.Wait(cmd.Context(), job.ID, poll); err != nil {
					return err
				}
			}
			return render(cmd, job, func(w io.Writer) { writeJob(w, job) })
		},
	}
	cmd.Flags().StringVar(&retryOf, "retry-of", "", "resume a failed or partial job")
	cmd.Flags().StringVar(&requester, "requester", "cli", "recorded in job metadata")
	cmd.Flags().BoolVar(&detach, "detach", false, "return after submitting instead of waiting")
	cmd.Flags().DurationVar(&poll, "poll", 2*time.Second, "status poll interval while waiting")
	return cmd
}

func newIngestStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the status and counters of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			job, err := cc.Client.Ingestion().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, job, func(w io.Writer) { writeJob(w, job) })
		},
	}
}

func newIngestListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			jobs, err := cc.Client.Ingestion().List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return render(cmd, jobs, func(w io.Writer) {
				t := newTable(w, "Job", "Status", "Feed", "Processed", "Skipped", "Errors", "Offset", "Created")
				for _, j := range jobs {
					t.Append([]string{
						j.ID, colorStatus(j.Status), truncate(j.FeedURI, 40),
						strconv.FormatInt(j.RecordsProcessed, 10), strconv.FormatInt(j.RecordsSkipped, 10),
						strconv.FormatInt(j.ErrorCount, 10), strconv.FormatInt(j.CommittedOffset, 10),
						j.CreatedAt.Format(time.RFC3339),
					})
				}
				t.Render()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum jobs")
	return cmd
}

func newIngestCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := cc.Client.Ingestion().Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancel requested for %s\n", args[0])
			return nil
		},
	}
}

func newIngestDeleteCaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-case CASE_ID",
		Short: "Remove a case, its outbound edges and its index entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := cc.Client.Ingestion().DeleteCase(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func writeJob(w io.Writer, j *client.Job) {
	t := newTable(w, "Field", "Value")
	t.AppendBulk([][]string{
		{"job", j.ID},
		{"status", colorStatus(j.Status)},
		{"feed", j.FeedURI},
		{"processed", strconv.FormatInt(j.RecordsProcessed, 10)},
		{"skipped", strconv.FormatInt(j.RecordsSkipped, 10)},
		{"errors", strconv.FormatInt(j.ErrorCount, 10)},
		{"edges written", strconv.FormatInt(j.EdgesWritten, 10)},
		{"committed offset", strconv.FormatInt(j.CommittedOffset, 10)},
	})
	if j.ParentJobID != "" {
		t.Append([]string{"retry of", j.ParentJobID})
	}
	if j.LastError != "" {
		t.Append([]string{"last error", truncate(j.LastError, 80)})
	}
	if j.FinishedAt != nil {
		t.Append([]string{"finished", j.FinishedAt.Format(time.RFC3339)})
	}
	t.Render()
}

//Personal.AI order the ending
