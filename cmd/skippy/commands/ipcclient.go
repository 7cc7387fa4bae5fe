package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/config"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/ipcserver"
	"github.com/spf13/cobra"
)

// socketPath resolves the IPC socket path the CLI should dial: the
// --data-dir flag's data root (if set) or the default layout.
func socketPath(cmd *cobra.Command) (string, error) {
	root, _ := cmd.Root().PersistentFlags().GetString("data-dir")
	layout, err := config.ResolveLayout(root)
	if err != nil {
		return "", fmt.Errorf("resolving data layout: %w", err)
	}
	return layout.SocketPath, nil
}

// dialDaemon connects to the running daemon's control socket, wrapping
// the "is it even running" failure mode with an actionable hint.
func dialDaemon(sockPath string) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", sockPath, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w (is the daemon running? try 'skippy serve')", sockPath, err)
	}
	return conn, nil
}

// sendRequest writes one newline-delimited JSON request frame.
func sendRequest(conn net.Conn, req ipcserver.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	_, err = conn.Write(append(data, '\n'))
	return err
}

// streamResponses reads response frames until a done or error frame
// arrives, invoking onStatus for every intermediate status frame. It
// returns the done frame's content, or an error built from an error
// frame's message.
func streamResponses(conn net.Conn, onStatus func(string)) (string, error) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var resp ipcserver.Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			return "", fmt.Errorf("decoding response: %w", err)
		}
		switch resp.Type {
		case "status":
			if onStatus != nil {
				onStatus(resp.Status)
			}
		case "done":
			return resp.Content, nil
		case "error":
			return "", fmt.Errorf("%s", resp.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return "", fmt.Errorf("connection closed before a done or error frame arrived")
}
