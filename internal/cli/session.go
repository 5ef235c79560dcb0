package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

// NewSessionCmd создаёт группу команд для работы с сессиями.
func NewSessionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect chat sessions",
	}

	cmd.AddCommand(
		newSessionListCmd(clientFn, outputFn),
		newSessionShowCmd(clientFn, outputFn),
		newSessionHistoryCmd(clientFn, outputFn),
		newSessionDocumentsCmd(clientFn, outputFn),
		newSessionAttachCmd(clientFn, outputFn),
	)

	return cmd
}

func newSessionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sessions, err := client.ListSessions(limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "TITLE", "PIPELINE", "UPDATED"}
			rows := make([][]string, len(sessions))
			for i, s := range sessions {
				rows[i] = []string{s.ID, s.Title, s.Pipeline, s.UpdatedAt}
			}

			out.Print(headers, rows, sessions)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of sessions")

	return cmd
}

func newSessionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show session details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			session, err := client.GetSession(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TITLE", "PIPELINE", "CREATED", "UPDATED"},
				[][]string{{session.ID, session.Title, session.Pipeline, session.CreatedAt, session.UpdatedAt}},
				session,
			)
			return nil
		},
	}
}

func newSessionHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Show session message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			messages, err := client.ListMessages(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(messages)
				return nil
			}

			for _, m := range messages {
				fmt.Fprintf(out.w, "[%s] %s\n%s\n\n", m.CreatedAt, m.Role, m.Content)
			}
			return nil
		},
	}
}

func newSessionDocumentsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "documents ID",
		Short: "List documents attached to a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			documents, err := client.ListDocuments(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "FILENAME", "SIZE", "UPLOADED"}
			rows := make([][]string, len(documents))
			for i, d := range documents {
				rows[i] = []string{d.ID, d.Filename, strconv.Itoa(d.Size), d.UploadedAt}
			}

			out.Print(headers, rows, documents)
			return nil
		},
	}
}

func newSessionAttachCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach ID FILE",
		Short: "Attach a text file to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			content, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			doc, err := client.UploadDocument(args[0], UploadDocumentRequest{
				Filename: filepath.Base(args[1]),
				Content:  string(content),
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Document attached: %s", doc.ID))
			out.Print(
				[]string{"ID", "FILENAME", "SIZE", "UPLOADED"},
				[][]string{{doc.ID, doc.Filename, strconv.Itoa(doc.Size), doc.UploadedAt}},
				doc,
			)
			return nil
		},
	}

	return cmd
}
