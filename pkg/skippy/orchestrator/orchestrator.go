package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

const (
	fallbackSummaryTimeout = 3 * time.Minute
	fallbackApologyText    = "Sorry, I finished the work but couldn't put together a summary of it."
)

// Orchestrator ties the LLM client, tool registry and context assembler
// into the agentic loop described by the component design: context
// assembly, dual-channel parsing, tool dispatch, loop control.
//
// Grounded on pkg/devclaw/copilot/agent.go's AgentRun (a dependency
// struct with a Run entry point, a logger scoped to one component, and
// stream/tool-result callback hooks) but replacing the teacher's native
// tool-calling conversation loop with the exact JSON-envelope-plus-
// out-of-band-block response contract this daemon requires.
type Orchestrator struct {
	LLM           llmclient.Client
	Registry      *toolregistry.Registry
	Context       *ContextAssembler
	Abort         *AbortRegistry
	Continuations *ContinuationStore
	LoopLimit     int
	ContextWindow int
	Logger        *slog.Logger
}

// New constructs an Orchestrator with sane defaults for LoopLimit and
// ContextWindow; callers override from config after introspecting the
// model.
func New(llm llmclient.Client, registry *toolregistry.Registry, assembler *ContextAssembler, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		LLM:           llm,
		Registry:      registry,
		Context:       assembler,
		Abort:         NewAbortRegistry(),
		Continuations: NewContinuationStore(),
		LoopLimit:     25,
		ContextWindow: 1_000_000,
		Logger:        logger.With("component", "orchestrator"),
	}
}

// Run executes one full agentic loop for req, returning once the model
// reports continue=false with a final answer, the loop limit is hit (a
// continuation is saved), or the channel's abort flag is observed.
func (o *Orchestrator) Run(ctx context.Context, req Request) RunResult {
	channel := req.Channel
	status := req.Status
	if status == nil {
		status = noopStatus{}
	}

	messages, iterationsAlready, err := o.startingMessages(ctx, req)
	if err != nil {
		return RunResult{Err: err}
	}

	status.Status(statusThinking)
	defer status.Done()

	var allToolResults []ToolResult

	for iteration := iterationsAlready + 1; ; iteration++ {
		if channel != "" && o.Abort.Check(channel) {
			return RunResult{Aborted: true, ToolResults: allToolResults}
		}

		if iteration > iterationsAlready+1 {
			status.Status(fmt.Sprintf("processing step %d", iteration))
		}

		o.logTokenEstimate(messages, iteration)

		model := req.Model
		raw, err := o.callLLM(ctx, model, messages)
		if err != nil {
			return RunResult{Err: fmt.Errorf("llm call failed: %w", err), ToolResults: allToolResults}
		}

		if channel != "" && o.Abort.Check(channel) {
			return RunResult{Aborted: true, ToolResults: allToolResults}
		}

		jsonCandidate, files, patches := SplitBlocks(raw)
		resp, repaired, perr := ParseResponse(jsonCandidate)
		if perr != nil {
			allToolResults = append(allToolResults, systemToolResult(fmt.Sprintf("could not parse response as JSON: %v", perr)))
			messages = append(messages,
				llmclient.Message{Role: "assistant", Content: raw},
				llmclient.Message{Role: "user", Content: retryInstruction},
			)
			continue
		}

		messages = append(messages, llmclient.Message{Role: "assistant", Content: raw})

		var repairWarning *ToolResult
		if repaired {
			w := systemToolResult("response required JSON repair before it could be parsed; emit clean JSON next time")
			allToolResults = append(allToolResults, w)
			repairWarning = &w
		}

		if len(resp.Actions) == 0 && !resp.Continue {
			final := resp.FinalAnswer
			if final == "" && len(allToolResults) > 0 {
				final = o.fallbackSummary(ctx, allToolResults)
			}
			return RunResult{FinalAnswer: final, ToolResults: allToolResults}
		}

		anyFailed := false
		iterResults := make([]ToolResult, 0, len(resp.Actions)+1)
		if repairWarning != nil {
			iterResults = append(iterResults, *repairWarning)
		}
		for _, action := range resp.Actions {
			if channel != "" && o.Abort.Check(channel) {
				return RunResult{Aborted: true, ToolResults: allToolResults}
			}

			args := action.Arguments
			if args == nil {
				args = map[string]any{}
			}
			injectBlockPayload(args, action.Tool, files, patches)

			status.Status(fmt.Sprintf("running %s", action.Tool))
			result := o.Registry.Dispatch(ctx, toolregistry.Action{
				Type:      action.Type,
				Tool:      action.Tool,
				Arguments: args,
				Reasoning: action.Reasoning,
			})
			if !result.Success {
				anyFailed = true
			}

			tr := ToolResult{Tool: action.Tool, Arguments: args, Result: result}
			iterResults = append(iterResults, tr)
			allToolResults = append(allToolResults, tr)
		}

		messages = append(messages, llmclient.Message{Role: "user", Content: renderToolResults(iterResults)})

		if !resp.Continue && !anyFailed {
			final := resp.FinalAnswer
			if final == "" {
				final = o.fallbackSummary(ctx, allToolResults)
			}
			return RunResult{FinalAnswer: final, ToolResults: allToolResults}
		}

		if iteration >= o.LoopLimit {
			if channel != "" {
				o.Continuations.Save(&PendingContinuation{
					Channel:        channel,
					Messages:       messages,
					IterationsUsed: iteration,
					SavedAt:        time.Now(),
				})
			}
			return RunResult{
				FinalAnswer: fmt.Sprintf("I've hit my step limit (%d steps) and there's still work to do. Would you like me to continue?", o.LoopLimit),
				ToolResults: allToolResults,
			}
		}
	}
}

const retryInstruction = `Your previous response could not be parsed as the required JSON envelope. Respond again with exactly one JSON object of shape {reasoning, actions, final_answer, continue}, using the SKIPPY_FILE/SKIPPY_PATCH block grammar for any multi-line payload.`

// systemToolResult builds the synthetic {tool:"_system", ...} tool_result
// spec.md §7's "Parse failure" row and §4.4(d) require injecting into
// tool_results whenever a response couldn't be used as-is (unparseable,
// or only salvaged via repairJSON), so the model sees the same failure
// signal a real tool failure would produce.
func systemToolResult(reason string) ToolResult {
	return ToolResult{
		Tool:      "_system",
		Arguments: map[string]any{},
		Result:    toolregistry.Result{Success: false, Error: reason},
	}
}

// startingMessages resolves whether req resumes a saved continuation
// (an affirmative token on a channel with pending state) or starts a
// fresh conversation via context assembly.
func (o *Orchestrator) startingMessages(ctx context.Context, req Request) ([]llmclient.Message, int, error) {
	if req.Channel != "" && IsAffirmative(req.Prompt) {
		if pc, ok := o.Continuations.Take(req.Channel); ok {
			return pc.Messages, pc.IterationsUsed, nil
		}
	}
	if req.Channel != "" {
		o.Continuations.Discard(req.Channel)
	}

	systemCtx, contextImagePaths, err := o.Context.Assemble(ctx, req.Channel, req.User)
	if err != nil {
		return nil, 0, err
	}

	userContent := req.Prompt
	if req.ExtraContext != "" {
		userContent = fmt.Sprintf("<context>\n%s\n</context>\n\n%s", req.ExtraContext, req.Prompt)
	}

	images := collectImages(req.Images, contextImagePaths)

	return []llmclient.Message{
		{Role: "system", Content: systemCtx},
		{Role: "user", Content: userContent, Images: images},
	}, 0, nil
}

func collectImages(sources []ImageSource, extraPaths []string) []string {
	var out []string
	for _, src := range sources {
		if b, ok := loadImage(src); ok {
			out = append(out, b)
		}
	}
	for _, p := range extraPaths {
		if b, ok := loadImage(ImageSource{Path: p}); ok {
			out = append(out, b)
		}
	}
	return out
}

func loadImage(src ImageSource) (string, bool) {
	var data []byte
	var err error
	switch {
	case src.Path != "":
		data, err = os.ReadFile(src.Path)
	case src.URL != "":
		resp, getErr := http.Get(src.URL)
		if getErr != nil {
			return "", false
		}
		defer resp.Body.Close()
		buf := make([]byte, 0, 1<<20)
		chunk := make([]byte, 32*1024)
		for {
			n, readErr := resp.Body.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if readErr != nil {
				break
			}
		}
		data = buf
	default:
		return "", false
	}
	if err != nil || len(data) == 0 {
		return "", false
	}
	return base64.StdEncoding.EncodeToString(data), true
}

func (o *Orchestrator) callLLM(ctx context.Context, model string, messages []llmclient.Message) (string, error) {
	ch, err := o.LLM.Chat(ctx, llmclient.ChatOptions{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Kind == llmclient.ChunkText {
			sb.WriteString(chunk.Text)
		}
	}
	return sb.String(), nil
}

// fallbackSummary asks the model for a short user-facing wrap-up when the
// loop ends with tool calls but no final_answer. A hard timeout falls
// back to a fixed apology rather than hanging the run indefinitely.
func (o *Orchestrator) fallbackSummary(ctx context.Context, results []ToolResult) string {
	sumCtx, cancel := context.WithTimeout(ctx, fallbackSummaryTimeout)
	defer cancel()

	prompt := "Summarize the outcome of these tool calls in one or two short sentences for the user:\n" + renderToolResults(results)

	type summaryResult struct {
		text string
		err  error
	}
	done := make(chan summaryResult, 1)
	go func() {
		ch, err := o.LLM.Chat(sumCtx, llmclient.ChatOptions{
			Messages: []llmclient.Message{{Role: "user", Content: prompt}},
			Stream:   true,
		})
		if err != nil {
			done <- summaryResult{err: err}
			return
		}
		var sb strings.Builder
		for chunk := range ch {
			if chunk.Kind == llmclient.ChunkText {
				sb.WriteString(chunk.Text)
			}
		}
		done <- summaryResult{text: sb.String()}
	}()

	select {
	case r := <-done:
		if r.err != nil || strings.TrimSpace(r.text) == "" {
			return fallbackApologyText
		}
		return r.text
	case <-sumCtx.Done():
		return fallbackApologyText
	}
}

func (o *Orchestrator) logTokenEstimate(messages []llmclient.Message, iteration int) {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	estTokens := chars / 4
	window := o.ContextWindow
	if window <= 0 {
		window = 1_000_000
	}
	o.Logger.Debug("context utilization",
		"iteration", iteration,
		"estimated_tokens", estTokens,
		"context_window", window,
		"utilization_pct", float64(estTokens)/float64(window)*100,
	)
}

type noopStatus struct{}

func (noopStatus) Status(string) {}
func (noopStatus) Done()         {}
