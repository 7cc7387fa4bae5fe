// Package toolregistry implements the uniform tool contract: a tool is a
// value satisfying init/run/context, dispatched by name, with its
// capability documents compiled and compressed once per process lifetime
// into the Condensed Tool Context injected into every prompt.
//
// Grounded on the registration/dispatch shape of
// pkg/devclaw/copilot/tool_executor.go's ToolExecutor, reshaped around a
// three-method author contract instead of the handler-func-plus-JSON-schema
// ToolDefinition it was built from.
package toolregistry

import (
	"context"
	"fmt"
)

// Result is what every tool invocation returns. Success is false and
// Error non-empty on failure; this forces the orchestrator to continue
// the loop so the model can react.
type Result struct {
	Success  bool   `json:"success"`
	Output   any    `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

// OK wraps a successful tool output.
func OK(output any) Result {
	return Result{Success: true, Output: output}
}

// Fail wraps a tool failure.
func Fail(err error) Result {
	return Result{Success: false, Error: err.Error(), ExitCode: 1}
}

// Failf is a convenience Fail(fmt.Errorf(...)).
func Failf(format string, args ...any) Result {
	return Fail(fmt.Errorf(format, args...))
}

// Tool is the contract every tool implementation satisfies.
type Tool interface {
	// Name is the tool's dispatch name, matched case-insensitively when
	// it originates from an LLM.
	Name() string

	// Init performs one-time setup (opening a client, checking
	// credentials). It is called lazily, on first dispatch, not at
	// registration time.
	Init() error

	// Run executes the tool against normalized arguments.
	Run(ctx context.Context, args map[string]any) Result

	// Context returns this tool's capability document: a human-readable
	// schema of operations, argument shapes and result shape, used to
	// build the Condensed Tool Context.
	Context() string
}

// ArgBuilder is the optional transformer a tool may additionally
// implement: either it defines a build_args_from_action transformer
// (recommended), or it accepts the flexible normalized form. When
// present, the registry calls BuildArgs instead of relying solely on
// the generic four-shape normalization in normalize.go.
type ArgBuilder interface {
	BuildArgs(action Action) (map[string]any, error)
}

// Action mirrors the orchestrator's Action shape closely enough for tools
// to inspect the raw call without importing the orchestrator package
// (which itself imports toolregistry, so the dependency would be
// circular).
type Action struct {
	Type      string         `json:"type"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Reasoning string         `json:"reasoning,omitempty"`
}
