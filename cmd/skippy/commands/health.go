package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newHealthCmd creates the `skippy health` command, grounded on
// cmd/copilot/commands/health.go's Docker-HEALTHCHECK-friendly shape but
// adapted to actually dial the control socket rather than always
// reporting ok: a refused connection is the daemon's real health signal
// in a single-process, socket-gated design like this one. It only
// checks that the socket accepts a connection — it does not round-trip
// through the orchestrator, since a health probe shouldn't itself
// trigger an LLM call.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the Skippy daemon is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sockPath, err := socketPath(cmd)
			if err != nil {
				return err
			}

			conn, err := dialDaemon(sockPath)
			if err != nil {
				fmt.Println(`{"status":"down"}`)
				return err
			}
			conn.Close()

			fmt.Println(`{"status":"ok"}`)
			return nil
		},
	}
}
