package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/coursechat/internal/config"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Ingest a folder of course documents",
		Long: `Parse, chunk and embed every course document in a folder (default: COURSECHAT_DOCS_DIR).
Courses already stored are skipped unless --clear is given, which removes every course first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().Bool("clear", false, "Delete all stored courses before ingesting")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	clearExisting, _ := cmd.Flags().GetBool("clear")
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dir := cfg.DocsDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no folder given and COURSECHAT_DOCS_DIR is empty")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	report, err := a.ingestion.IngestFolder(ctx, dir, clearExisting)
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(report, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
	} else {
		for _, c := range report.Courses {
			fmt.Fprintf(out, "  + %s (%d lessons, %d chunks)\n", c.CourseTitle, c.Lessons, c.Chunks)
		}
		for _, s := range report.Skipped {
			fmt.Fprintf(out, "  = %s (already ingested)\n", s)
		}
		for _, f := range report.Failed {
			fmt.Fprintf(out, "  ! %s: %s\n", f.File, f.Error)
		}
		fmt.Fprintf(out, "Ingested %d courses, %d chunks\n", len(report.Courses), report.TotalChunks())
	}

	if len(report.Failed) > 0 {
		return fmt.Errorf("%d documents failed to ingest", len(report.Failed))
	}
	return nil
}
