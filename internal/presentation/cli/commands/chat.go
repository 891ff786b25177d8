package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/monetalabs/moneta/internal/application/chat"
	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/presentation/cli/output"
)

// NewChatCmd creates the chat command for the assistant REPL.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Talk to the AI assistant",
		Long: `Start an interactive session with the AI assistant, or ask a single
question and exit.

The assistant sees recent conversation history and answers questions
about your finances. When the primary provider fails repeatedly, the
fallback provider takes over automatically.

Special commands inside the session:
  /exit, /quit  - Exit the session
  /clear        - Clear conversation history
  /history      - Show recent conversation
  /status       - Show provider status
  /help         - Show help message`,
		Example: `  # Interactive session
  moneta chat

  # One-shot question
  moneta chat "How much did I spend on food this month?"`,
		Args: cobra.ArbitraryArgs,
		RunE: runChat,
	}

	return cmd
}

// runChat executes the assistant REPL or a one-shot question.
func runChat(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}

	svc := container.Chat()
	if svc == nil {
		return fmt.Errorf("no assistant provider configured - run 'moneta init' to set one up")
	}

	ctx := context.Background()

	// One-shot mode: join the args into a single question.
	if len(args) > 0 {
		answer, err := svc.Send(ctx, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("assistant request failed: %w", err)
		}
		formatter.Println("%s", answer)
		return nil
	}

	formatter.Header("Moneta Assistant")
	formatter.Println("")
	formatter.Info("Type your question and press Enter. Type /help for commands.")
	formatter.Println("")

	rl, err := readline.New("> ")
	if err != nil {
		return fmt.Errorf("could not create readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			shouldExit, err := handleChatCommand(ctx, line, svc, formatter)
			if err != nil {
				formatter.Error("Command error: %s", err.Error())
				continue
			}
			if shouldExit {
				break
			}
			continue
		}

		answer, err := svc.Send(ctx, line)
		if err != nil {
			formatter.Error("Error: %s", err.Error())
			continue
		}

		formatter.Println("")
		formatter.Println("%s", answer)
		formatter.Println("")
	}

	formatter.Info("Session ended. Goodbye!")
	return nil
}

// handleChatCommand handles special chat commands.
// Returns (shouldExit, error).
func handleChatCommand(ctx context.Context, cmd string, svc *chat.Service, formatter *output.Formatter) (bool, error) {
	switch strings.ToLower(strings.Fields(cmd)[0]) {
	case "/exit", "/quit":
		return true, nil

	case "/clear":
		if err := svc.Clear(ctx); err != nil {
			return false, err
		}
		formatter.Success("Conversation history cleared")
		return false, nil

	case "/history":
		history, err := svc.History(ctx, 20)
		if err != nil {
			return false, err
		}
		if len(history) == 0 {
			formatter.Info("No conversation yet")
			return false, nil
		}
		for _, msg := range history {
			printChatTurn(formatter, msg)
		}
		formatter.Println("")
		return false, nil

	case "/status":
		formatter.Header("Provider Status")
		if svc.BreakerState() == chat.StateTripped {
			formatter.Item("Primary", formatter.Colorize("tripped, routing to fallback", output.ColorYellow))
		} else {
			formatter.Item("Primary", formatter.Colorize("ok", output.ColorGreen))
		}
		formatter.Println("")
		return false, nil

	case "/help":
		formatter.Header("Chat Commands")
		formatter.Item("/exit, /quit", "Exit the session")
		formatter.Item("/clear", "Clear conversation history")
		formatter.Item("/history", "Show recent conversation")
		formatter.Item("/status", "Show provider status")
		formatter.Item("/help", "Show this help message")
		formatter.Println("")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type /help for help)", cmd)
	}
}

// printChatTurn renders one logged conversation turn.
func printChatTurn(formatter *output.Formatter, msg *ledger.ChatMessage) {
	stamp := time.UnixMilli(msg.Timestamp).Format("15:04")
	switch {
	case msg.IsError:
		formatter.Println("  %s %s", formatter.Dim(stamp), formatter.Colorize("(failed) "+msg.Content, output.ColorRed))
	case msg.Role == ledger.ChatRoleUser:
		formatter.Println("  %s %s %s", formatter.Dim(stamp), formatter.Bold("you:"), msg.Content)
	default:
		formatter.Println("  %s %s %s", formatter.Dim(stamp), formatter.Bold("assistant:"), msg.Content)
	}
}
