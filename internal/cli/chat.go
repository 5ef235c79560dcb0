package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewChatCmd создаёт группу команд чата.
func NewChatCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send chat messages",
	}

	cmd.AddCommand(
		newChatSendCmd(clientFn, outputFn),
	)

	return cmd
}

func newChatSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var sessionID string
	var pipeline string

	cmd := &cobra.Command{
		Use:   "send MESSAGE...",
		Short: "Send a message (new session unless --session is given)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.SendChat(ChatRequest{
				SessionID: sessionID,
				Message:   strings.Join(args, " "),
				Pipeline:  pipeline,
			})
			if err != nil {
				return err
			}

			if result.NewSession {
				out.Success(fmt.Sprintf("Session created: %s", result.SessionID))
			}
			if result.Title != "" {
				out.Success(fmt.Sprintf("Title: %s", result.Title))
			}

			if out.jsonMode {
				out.JSON(result)
				return nil
			}
			fmt.Fprintln(out.w, result.Response)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to continue")
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Pipeline name (default: simple_chat)")

	return cmd
}
