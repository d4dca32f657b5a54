package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		newSession bool
		sessionID  string
		stream     bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the course materials",
		Long: `Asks the assistant a question. Follow-up questions continue the same
conversation until "coursechat clear" or --new.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if sessionID == "" && !newSession {
				sessionID = SavedSessionID()
			}
			req := QueryRequest{
				Query:     strings.Join(args, " "),
				SessionID: sessionID,
			}

			var ans *QueryResponse
			if stream && !outputJSON {
				ans, err = askStream(api, req, cmd.ErrOrStderr())
			} else {
				ans, err = ask(api, req)
			}
			if err != nil {
				return err
			}

			if err := SaveSessionID(ans.SessionID); err != nil {
				warnColor.Fprintf(cmd.ErrOrStderr(), "could not remember session: %v\n", err)
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), ans)
			}
			renderAnswer(cmd.OutOrStdout(), ans)
			return nil
		},
	}

	cmd.Flags().BoolVar(&newSession, "new", false, "Start a new conversation")
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue a specific session")
	cmd.Flags().BoolVar(&stream, "stream", true, "Show progress while the answer is generated")

	return cmd
}

func ask(api *APIClient, req QueryRequest) (*QueryResponse, error) {
	resp, err := api.Post("/api/query", req)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var ans QueryResponse
	if err := json.Unmarshal(resp.Data, &ans); err != nil {
		return nil, fmt.Errorf("failed to parse answer: %w", err)
	}
	return &ans, nil
}

func askStream(api *APIClient, req QueryRequest, progress io.Writer) (*QueryResponse, error) {
	var ans *QueryResponse
	err := api.Stream("/api/query/stream", req, func(ev StreamEvent) error {
		switch ev.Event {
		case "transition":
			var t TransitionEvent
			if err := json.Unmarshal(ev.Data, &t); err != nil {
				return fmt.Errorf("failed to parse transition: %w", err)
			}
			renderTransition(progress, &t)
		case "answer":
			ans = &QueryResponse{}
			if err := json.Unmarshal(ev.Data, ans); err != nil {
				return fmt.Errorf("failed to parse answer: %w", err)
			}
		case "error":
			var apiResp APIResponse
			if err := json.Unmarshal(ev.Data, &apiResp); err != nil {
				return fmt.Errorf("failed to parse error: %w", err)
			}
			return fmt.Errorf("query failed: %s", apiResp.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ans == nil {
		return nil, errors.New("query failed: stream ended without an answer")
	}
	return ans, nil
}

// ClearCmd creates the clear command.
func ClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [session-id]",
		Short: "Clear the conversation history",
		Long:  "Clears the current session's history on the server and starts fresh next time.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := SavedSessionID()
			if len(args) == 1 {
				sessionID = args[0]
			}
			if sessionID == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No active session.")
				return nil
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var apiErr *APIError
			if _, err := api.Delete("/api/sessions/" + sessionID); err != nil {
				// An expired session is as good as a cleared one.
				if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
					return fmt.Errorf("clear failed: %w", err)
				}
			}

			if sessionID == SavedSessionID() {
				if err := SaveSessionID(""); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", sessionID)
			return nil
		},
	}
}
