package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/coursechat/internal/cli"
	"github.com/cloo-solutions/coursechat/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "coursechat",
		Short: "Course chat CLI - ask questions about course materials",
		Long: `Course chat CLI talks to a coursechatd server.

Environment variables:
  COURSECHAT_API_URL       API base URL (default: http://localhost:8000)
  COURSECHAT_ADMIN_TOKEN   Admin token for upload, job and reindex`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	rootCmd.PersistentFlags().String("admin-token", "", "Admin token (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ClearCmd())
	rootCmd.AddCommand(client.CoursesCmd())
	rootCmd.AddCommand(client.OutlineCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.JobCmd())
	rootCmd.AddCommand(client.JobsCmd())
	rootCmd.AddCommand(client.ReindexCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
