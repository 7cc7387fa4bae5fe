package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/ipcserver"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

// newPromptCmd creates the `skippy prompt` command: a thin IPC client
// that sends one "prompt" request per line. With an argument it runs
// once and prints the final answer; with none it starts an interactive
// REPL, grounded on cmd/copilot/commands/chat.go's dual single-shot/REPL
// shape but reading lines through chzyer/readline (history, line
// editing) instead of a plain bufio.Reader, and talking to the daemon
// over the control socket instead of calling the agent runner in-process.
func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Send a prompt to the running daemon",
		Long: `Sends a prompt to Skippy over its control socket and prints the final
answer. With no argument, starts an interactive REPL.

Examples:
  skippy prompt "what's on my calendar today"
  skippy prompt`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPrompt,
	}
	cmd.Flags().String("model", "", "override the daemon's default model for this request")
	return cmd
}

func runPrompt(cmd *cobra.Command, args []string) error {
	sockPath, err := socketPath(cmd)
	if err != nil {
		return err
	}
	model, _ := cmd.Flags().GetString("model")

	if len(args) > 0 {
		answer, err := sendPrompt(sockPath, args[0], model)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	return runPromptREPL(sockPath, model)
}

func sendPrompt(sockPath, text, model string) (string, error) {
	conn, err := dialDaemon(sockPath)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := sendRequest(conn, ipcserver.Request{Type: "prompt", Prompt: text, Model: model}); err != nil {
		return "", err
	}
	return streamResponses(conn, func(status string) {
		fmt.Printf("... %s\n", status)
	})
}

func runPromptREPL(sockPath, model string) error {
	rl, err := readline.New("skippy> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Skippy interactive prompt. Ctrl-D or /quit to exit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		answer, err := sendPrompt(sockPath, line, model)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
}
