package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/crdash/internal/client"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>...",
	Short: "Ask the session-aware assistant a question",
	Long: `Send a message to the backend assistant, which answers with the
session's code and analysis in context. With --history, print previous
exchanges instead.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("session", "", "backend session")
	chatCmd.Flags().Bool("history", false, "print previous exchanges")
	chatCmd.Flags().Int("limit", 0, "number of exchanges to print with --history")
}

func runChat(cmd *cobra.Command, args []string) error {
	sessionID, err := requireSession(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	c := newClient()

	if history, _ := cmd.Flags().GetBool("history"); history {
		limit, _ := cmd.Flags().GetInt("limit")
		h, err := c.ChatHistory(ctx, sessionID, limit)
		if err != nil {
			return fmt.Errorf("chat history: %s", client.UserMessage(err))
		}
		if len(h.Conversations) == 0 {
			fmt.Fprintln(out, "No conversations yet.")
			return nil
		}
		for _, conv := range h.Conversations {
			fmt.Fprintf(out, "[%s]\n> %s\n%s\n\n", conv.Timestamp, conv.Message, conv.Response)
		}
		return nil
	}

	msg := strings.TrimSpace(strings.Join(args, " "))
	if msg == "" {
		return fmt.Errorf("message is empty")
	}
	reply, err := c.Chat(ctx, sessionID, msg)
	if err != nil {
		return fmt.Errorf("chat: %s", client.UserMessage(err))
	}
	fmt.Fprintln(out, reply.Response)
	return nil
}
