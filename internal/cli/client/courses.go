package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// CoursesCmd creates the courses command.
func CoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List the available courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/api/courses")
			if err != nil {
				return fmt.Errorf("failed to list courses: %w", err)
			}

			var stats CourseStatsResponse
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("failed to parse courses: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return printJSON(out, stats)
			}

			if stats.TotalCourses == 0 {
				fmt.Fprintln(out, "No courses yet.")
				return nil
			}
			headingColor.Fprintf(out, "%d courses\n", stats.TotalCourses)
			for _, title := range stats.CourseTitles {
				fmt.Fprintf(out, "  • %s\n", title)
			}
			return nil
		},
	}
}

// OutlineCmd creates the outline command.
func OutlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outline <course>",
		Short: "Show a course's lessons",
		Long:  "Shows a course outline. Partial course names are matched to the closest title.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			name := strings.Join(args, " ")
			resp, err := api.Get("/api/courses/" + url.PathEscape(name) + "/outline")
			if err != nil {
				return fmt.Errorf("failed to get outline: %w", err)
			}

			var outline OutlineResponse
			if err := json.Unmarshal(resp.Data, &outline); err != nil {
				return fmt.Errorf("failed to parse outline: %w", err)
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), outline)
			}
			renderOutline(cmd.OutOrStdout(), &outline)
			return nil
		},
	}
}
