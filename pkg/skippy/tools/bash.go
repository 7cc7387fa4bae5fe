package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// BashTool runs shell commands. It is intentionally unsandboxed, gated
// only by an "unsafe" config flag, and refuses to start as root unless
// that flag is set.
type BashTool struct {
	// Unsafe mirrors config.BashToolConfig.Unsafe.
	Unsafe bool
	// Timeout bounds a single command's wall-clock execution.
	Timeout time.Duration
}

func NewBashTool(unsafe bool) *BashTool {
	return &BashTool{Unsafe: unsafe, Timeout: 2 * time.Minute}
}

func (t *BashTool) Name() string { return "bash" }

// Init refuses to come up as root unless Unsafe is set, per the design
// note's explicit instruction.
func (t *BashTool) Init() error {
	if os.Geteuid() == 0 && !t.Unsafe {
		return fmt.Errorf("bash tool: refusing to run as root without tools.bash.unsafe=true")
	}
	return nil
}

func (t *BashTool) Run(ctx context.Context, args map[string]any) toolregistry.Result {
	command, _ := args["command"].(string)
	if command == "" {
		return toolregistry.Failf("bash: missing required argument 'command'")
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/bash", "-c", command)
	if cwd, ok := args["cwd"].(string); ok && cwd != "" {
		cmd.Dir = cwd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return toolregistry.Result{Success: false, Error: err.Error(), ExitCode: 1}
	}

	out := map[string]any{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	}
	if exitCode != 0 {
		return toolregistry.Result{Success: false, Output: out, Error: fmt.Sprintf("command exited with status %d", exitCode), ExitCode: exitCode}
	}
	return toolregistry.OK(out)
}

func (t *BashTool) Context() string {
	return "run(command: string, cwd?: string) -> {stdout, stderr, exit_code}. " +
		"Runs an arbitrary shell command via /bin/bash -c. Unsandboxed: has the same " +
		"privileges as the daemon process. Times out after 2 minutes."
}
