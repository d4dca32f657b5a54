package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/coursechat/internal/config"
	"github.com/cloo-solutions/coursechat/internal/repository"
	"github.com/spf13/cobra"
)

// CoursesCmd returns the courses command
func CoursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List stored courses",
		Long:  "List every stored course with its lesson and chunk counts",
		Args:  cobra.NoArgs,
		RunE:  runCourses,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

type courseSummary struct {
	Title      string `json:"title"`
	Instructor string `json:"instructor,omitempty"`
	Lessons    int    `json:"lessons"`
	Chunks     int    `json:"chunks"`
}

func runCourses(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	courses := repository.NewCourseRepository(pool)
	chunks := repository.NewCourseChunkRepository(pool)

	titles, err := courses.ListTitles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list courses: %w", err)
	}

	summaries := make([]courseSummary, 0, len(titles))
	for _, title := range titles {
		course, err := courses.GetByTitle(ctx, title)
		if err != nil {
			return fmt.Errorf("failed to load course %q: %w", title, err)
		}
		n, err := chunks.CountByCourse(ctx, title)
		if err != nil {
			return fmt.Errorf("failed to count chunks for %q: %w", title, err)
		}
		summaries = append(summaries, courseSummary{
			Title:      course.Title,
			Instructor: course.Instructor,
			Lessons:    len(course.Lessons),
			Chunks:     n,
		})
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(summaries, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	if len(summaries) == 0 {
		fmt.Fprintln(out, "No courses found.")
		return nil
	}
	fmt.Fprintf(out, "Courses (%d):\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(out, "  %s: %d lessons, %d chunks\n", s.Title, s.Lessons, s.Chunks)
	}
	return nil
}
