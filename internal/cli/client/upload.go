package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cloo-solutions/coursechat/internal/cli"
	"github.com/spf13/cobra"
)

const jobPollInterval = 2 * time.Second

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a course document (admin)",
		Long: `Uploads a course document for ingestion. Ingestion runs in the background;
use --wait to follow the job until it finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			resp, err := api.UploadDocument("/api/documents", args[0], func(current, total int64) {
				if !outputJSON && total > 0 {
					fmt.Fprintf(errOut, "\rUploading... %d%%", current*100/total)
				}
			})
			if !outputJSON {
				fmt.Fprintln(errOut)
			}
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			job, err := parseJob(resp)
			if err != nil {
				return err
			}

			if wait {
				job, err = waitForJob(api, job.ID, timeout)
				if err != nil {
					return err
				}
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), job)
			}
			renderJob(cmd.OutOrStdout(), job)
			if job.Status == "failed" {
				return fmt.Errorf("ingestion of %s failed", job.DocumentName)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for ingestion to finish")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long --wait waits")

	return cli.MarkAdmin(cmd)
}

// JobCmd creates the job command.
func JobCmd() *cobra.Command {
	return cli.MarkAdmin(&cobra.Command{
		Use:   "job <id>",
		Short: "Show an ingest job (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/api/jobs/" + args[0])
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}
			job, err := parseJob(resp)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), job)
			}
			renderJob(cmd.OutOrStdout(), job)
			return nil
		},
	})
}

// JobsCmd creates the jobs command.
func JobsCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List ingest jobs, newest first (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("limit", strconv.Itoa(limit))
			if cursor != "" {
				query.Set("cursor", cursor)
			}

			resp, err := api.Get("/api/jobs?" + query.Encode())
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}

			var page JobPageResponse
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return fmt.Errorf("failed to parse jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return printJSON(out, page)
			}

			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}
			for _, job := range page.Items {
				fmt.Fprintf(out, "%s  %-10s  %s", job.ID, job.Status, job.DocumentName)
				if job.CourseTitle != "" {
					dimColor.Fprintf(out, "  -> %s", job.CourseTitle)
				}
				fmt.Fprintln(out)
			}
			if page.HasMore {
				dimColor.Fprintf(out, "More: coursechat jobs --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue from a previous listing")

	return cli.MarkAdmin(cmd)
}

// ReindexCmd creates the reindex command.
func ReindexCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Ingest the server's docs folder (admin)",
		Long:  "Asks the server to ingest its configured docs folder. Existing courses are skipped unless --clear.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/api/ingest", map[string]bool{"clear": clear})
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}

			var report IngestResponse
			if err := json.Unmarshal(resp.Data, &report); err != nil {
				return fmt.Errorf("failed to parse report: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return printJSON(out, report)
			}

			for _, c := range report.Courses {
				sourceColor.Fprintf(out, "  + %s ", c.CourseTitle)
				dimColor.Fprintf(out, "(%d lessons, %d chunks)\n", c.Lessons, c.Chunks)
			}
			for _, s := range report.Skipped {
				dimColor.Fprintf(out, "  = %s (already ingested)\n", s)
			}
			for _, f := range report.Failed {
				errorColor.Fprintf(out, "  ! %s: %s\n", f.File, f.Error)
			}
			fmt.Fprintf(out, "%d courses, %d chunks\n", len(report.Courses), report.TotalChunks)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Delete all courses before ingesting")

	return cli.MarkAdmin(cmd)
}

func parseJob(resp *APIResponse) (*IngestJobResponse, error) {
	var job IngestJobResponse
	if err := json.Unmarshal(resp.Data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return &job, nil
}

func waitForJob(api *APIClient, id string, timeout time.Duration) (*IngestJobResponse, error) {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := api.Get("/api/jobs/" + id)
		if err != nil {
			return nil, fmt.Errorf("failed to get job: %w", err)
		}
		job, err := parseJob(resp)
		if err != nil {
			return nil, err
		}
		if job.Status == "completed" || job.Status == "failed" {
			return job, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("job %s still %s after %v", id, job.Status, timeout)
		}
		time.Sleep(jobPollInterval)
	}
}
