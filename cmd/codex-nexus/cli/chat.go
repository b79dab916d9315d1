package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pysugar/codex-nexus/internal/client"
	"github.com/pysugar/codex-nexus/internal/proxy/mappers"
)

var (
	chatSystem   string
	chatModel    string
	chatTextOnly bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Send one prompt and stream the reply to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")

		messages := []mappers.ChatMessage{}
		if chatSystem != "" {
			messages = append(messages, mappers.NewTextMessage("system", chatSystem))
		}
		messages = append(messages, mappers.NewTextMessage("user", prompt))

		req := mappers.ChatRequest{
			Model:    chatModel,
			Messages: messages,
			Stream:   true,
		}

		start := time.Now()
		stream, err := client.New(cfg).StreamChatCompletions(cmd.Context(), req)
		if err != nil {
			return err
		}
		defer stream.Close()

		for {
			chunk, err := stream.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			for _, choice := range chunk.Choices {
				fmt.Print(choice.Delta.Content)
			}
		}
		fmt.Println()

		if !chatTextOnly {
			fmt.Fprintf(os.Stderr, "\n[%s]\n", time.Since(start).Round(time.Millisecond))
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "system prompt")
	chatCmd.Flags().StringVar(&chatModel, "model", "nexus/codex", "model name to request")
	chatCmd.Flags().BoolVar(&chatTextOnly, "text-only", false, "print only the reply text")
	rootCmd.AddCommand(chatCmd)
}
