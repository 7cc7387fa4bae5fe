// Package orchestrator implements the agentic tool loop tying the LLM
// client, tool registry and memory store together: context assembly,
// dual-channel JSON-plus-out-of-band-block response parsing, tool
// dispatch, and loop control (abort, continuation, fallback summary).
//
// Grounded on pkg/devclaw/copilot/agent.go's AgentRun architecture (a
// struct of dependencies plus a Run/RunWithUsage entry point, a
// run-level timeout, a logger scoped with component="agent", stream and
// tool-result callbacks) adapted to the exact dual-channel parsing and
// loop-control rules this daemon requires instead of the teacher's own
// native-tool-calling conversation loop.
package orchestrator

import (
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// Action is one entry in a parsed Response's actions list.
type Action struct {
	Type      string         `json:"type"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// Response is the single JSON object the model must emit each turn.
type Response struct {
	Reasoning   string   `json:"reasoning"`
	Actions     []Action `json:"actions"`
	FinalAnswer string   `json:"final_answer"`
	Continue    bool     `json:"continue"`
}

// FileBlock is one ===SKIPPY_FILE_START:<path>===...===SKIPPY_FILE_END===
// out-of-band payload.
type FileBlock struct {
	Path    string
	Content string
}

// PatchChange is one FIND/REPLACE pair within a patch block.
type PatchChange struct {
	Find    string
	Replace string
}

// PatchBlock is one ===SKIPPY_PATCH_START:<path>===...===SKIPPY_PATCH_END===
// out-of-band payload.
type PatchBlock struct {
	Path    string
	Changes []PatchChange
}

// ToolResult is one {tool, arguments, result} record appended to the
// conversation after an action executes.
type ToolResult struct {
	Tool      string              `json:"tool"`
	Arguments map[string]any      `json:"arguments"`
	Result    toolregistry.Result `json:"result"`
}

// ImageSource is a base64-attachable image: exactly one of URL or Path is
// set by the caller.
type ImageSource struct {
	URL  string
	Path string
}

// StatusSink receives streaming status bubbles during a run. Implementations
// are expected to track message handles so they can delete every status
// bubble once the final answer is delivered.
type StatusSink interface {
	Status(text string)
	Done()
}

// Request is one Orchestrator.Run invocation's inputs.
type Request struct {
	Prompt       string
	Model        string
	ExtraContext string
	Channel      string
	User         string
	Images       []ImageSource
	Status       StatusSink
}

// RunResult is what a completed (or aborted) run reports to its caller.
type RunResult struct {
	FinalAnswer string
	Aborted     bool
	ToolResults []ToolResult
	Err         error
}

// PendingContinuation is the saved loop state when a run hits loop_limit
// with work still outstanding. A subsequent affirmative prompt on the same
// channel resumes it instead of starting fresh.
type PendingContinuation struct {
	Channel        string
	Messages       []llmclient.Message
	IterationsUsed int
	SavedAt        time.Time
}

const (
	statusThinking = "thinking"
)
