package commands

import (
	"fmt"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/ipcserver"
	"github.com/spf13/cobra"
)

// newMessageCmd creates the `skippy message` command, the thin IPC
// client for the "message" request type: delivering raw text straight
// to a chat channel without going through the LLM.
func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message <channel> <text>",
		Short: "Send raw text to a chat channel, bypassing the LLM",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sockPath, err := socketPath(cmd)
			if err != nil {
				return err
			}

			conn, err := dialDaemon(sockPath)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := sendRequest(conn, ipcserver.Request{Type: "message", Channel: args[0], Message: args[1]}); err != nil {
				return err
			}
			id, err := streamResponses(conn, nil)
			if err != nil {
				return err
			}
			fmt.Printf("sent (id=%s)\n", id)
			return nil
		},
	}
	return cmd
}
