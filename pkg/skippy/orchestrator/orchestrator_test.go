package orchestrator

import (
	"context"
	"testing"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// scriptedLLM returns one canned raw response per Chat call, in order,
// regardless of the messages it receives.
type scriptedLLM struct {
	responses []string
	calls     int
}

func (s *scriptedLLM) Chat(ctx context.Context, opts llmclient.ChatOptions) (<-chan llmclient.Chunk, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	text := s.responses[idx]

	ch := make(chan llmclient.Chunk, 2)
	ch <- llmclient.Chunk{Kind: llmclient.ChunkText, Text: text}
	ch <- llmclient.Chunk{Kind: llmclient.ChunkFinal}
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) Introspect(ctx context.Context, model string) (llmclient.ModelInfo, error) {
	return llmclient.ModelInfo{Name: model, ContextWindow: 100_000}, nil
}

func (s *scriptedLLM) ListModels(ctx context.Context) ([]llmclient.ModelInfo, error) {
	return nil, nil
}

var _ llmclient.Client = (*scriptedLLM)(nil)

// echoTool records every invocation and returns a scripted result.
type echoTool struct {
	name    string
	results []toolregistry.Result
	calls   int
}

func (t *echoTool) Name() string { return t.name }
func (t *echoTool) Init() error  { return nil }
func (t *echoTool) Context() string {
	return "echoes its arguments"
}
func (t *echoTool) Run(ctx context.Context, args map[string]any) toolregistry.Result {
	idx := t.calls
	if idx >= len(t.results) {
		idx = len(t.results) - 1
	}
	t.calls++
	return t.results[idx]
}

func newTestOrchestrator(t *testing.T, llm llmclient.Client, tool *echoTool) *Orchestrator {
	t.Helper()
	registry := toolregistry.New()
	if tool != nil {
		registry.Register(tool)
	}
	assembler := &ContextAssembler{Registry: registry}
	o := New(llm, registry, assembler, nil)
	return o
}

func TestRunCompletesOnFirstTurnWithNoActions(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"reasoning":"","actions":[],"final_answer":"done","continue":false}`,
	}}
	o := newTestOrchestrator(t, llm, nil)

	result := o.Run(context.Background(), Request{Prompt: "hello"})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.FinalAnswer != "done" {
		t.Fatalf("unexpected final answer %q", result.FinalAnswer)
	}
	if result.Aborted {
		t.Fatal("did not expect abort")
	}
}

func TestRunDispatchesToolThenCompletes(t *testing.T) {
	tool := &echoTool{name: "EchoTool", results: []toolregistry.Result{toolregistry.OK("ok")}}
	llm := &scriptedLLM{responses: []string{
		`{"actions":[{"tool":"EchoTool","arguments":{"x":1}}],"final_answer":"","continue":true}`,
		`{"actions":[],"final_answer":"all done","continue":false}`,
	}}
	o := newTestOrchestrator(t, llm, tool)

	result := o.Run(context.Background(), Request{Prompt: "do it"})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.FinalAnswer != "all done" {
		t.Fatalf("unexpected final answer %q", result.FinalAnswer)
	}
	if tool.calls != 1 {
		t.Fatalf("expected tool called once, got %d", tool.calls)
	}
	if len(result.ToolResults) != 1 {
		t.Fatalf("expected one recorded tool result, got %d", len(result.ToolResults))
	}
}

func TestRunForcesContinueOnToolFailure(t *testing.T) {
	tool := &echoTool{name: "EchoTool", results: []toolregistry.Result{
		toolregistry.Failf("boom"),
	}}
	llm := &scriptedLLM{responses: []string{
		// model claims continue=false despite a tool call, but the failure forces another turn
		`{"actions":[{"tool":"EchoTool","arguments":{}}],"final_answer":"looks done","continue":false}`,
		`{"actions":[],"final_answer":"recovered","continue":false}`,
	}}
	o := newTestOrchestrator(t, llm, tool)

	result := o.Run(context.Background(), Request{Prompt: "do it"})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.FinalAnswer != "recovered" {
		t.Fatalf("expected loop to continue past the tool failure, got %q", result.FinalAnswer)
	}
	if llm.calls != 2 {
		t.Fatalf("expected two LLM calls, got %d", llm.calls)
	}
}

func TestRunRecoversFromMalformedJSONOnRetry(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`this is not json at all`,
		`{"actions":[],"final_answer":"recovered","continue":false}`,
	}}
	o := newTestOrchestrator(t, llm, nil)

	result := o.Run(context.Background(), Request{Prompt: "hello"})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.FinalAnswer != "recovered" {
		t.Fatalf("expected recovery after retry instruction, got %q", result.FinalAnswer)
	}
	if llm.calls != 2 {
		t.Fatalf("expected two LLM calls (one malformed, one retry), got %d", llm.calls)
	}
	if len(result.ToolResults) != 1 || result.ToolResults[0].Tool != "_system" || result.ToolResults[0].Result.Success {
		t.Fatalf("expected a synthetic failed _system tool_result recording the parse failure, got %+v", result.ToolResults)
	}
}

func TestRunSurfacesRepairWarningAsSystemToolResult(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		// trailing comma forces a repairJSON pass before it parses
		`{"actions":[],"final_answer":"hi","continue":false,}`,
	}}
	o := newTestOrchestrator(t, llm, nil)

	result := o.Run(context.Background(), Request{Prompt: "hello"})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.FinalAnswer != "hi" {
		t.Fatalf("unexpected final answer %q", result.FinalAnswer)
	}
	if len(result.ToolResults) != 1 || result.ToolResults[0].Tool != "_system" || result.ToolResults[0].Result.Success {
		t.Fatalf("expected a synthetic failed _system tool_result warning about the repair, got %+v", result.ToolResults)
	}
}

func TestRunSavesContinuationAtLoopLimit(t *testing.T) {
	tool := &echoTool{name: "EchoTool", results: []toolregistry.Result{toolregistry.OK("ok")}}
	// Every turn keeps going, so the loop should hit LoopLimit.
	llm := &scriptedLLM{responses: []string{
		`{"actions":[{"tool":"EchoTool","arguments":{}}],"final_answer":"","continue":true}`,
	}}
	o := newTestOrchestrator(t, llm, tool)
	o.LoopLimit = 2

	result := o.Run(context.Background(), Request{Prompt: "keep going", Channel: "general"})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if _, ok := o.Continuations.Take("general"); !ok {
		t.Fatal("expected a pending continuation saved for channel general")
	}
}

func TestRunAbortsBeforeFirstLLMCall(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"actions":[],"final_answer":"should not happen","continue":false}`,
	}}
	o := newTestOrchestrator(t, llm, nil)
	o.Abort.Set("general")

	result := o.Run(context.Background(), Request{Prompt: "hello", Channel: "general"})
	if !result.Aborted {
		t.Fatal("expected run to report aborted")
	}
	if llm.calls != 0 {
		t.Fatalf("expected no LLM calls after pre-set abort, got %d", llm.calls)
	}
}

func TestRunResumesFromSavedContinuationOnAffirmative(t *testing.T) {
	tool := &echoTool{name: "EchoTool", results: []toolregistry.Result{toolregistry.OK("ok")}}
	llm := &scriptedLLM{responses: []string{
		`{"actions":[],"final_answer":"resumed","continue":false}`,
	}}
	o := newTestOrchestrator(t, llm, tool)
	o.Continuations.Save(&PendingContinuation{
		Channel: "general",
		Messages: []llmclient.Message{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "original request"},
		},
		IterationsUsed: 25,
	})

	result := o.Run(context.Background(), Request{Prompt: "yes", Channel: "general"})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.FinalAnswer != "resumed" {
		t.Fatalf("expected resumed run to complete, got %q", result.FinalAnswer)
	}
}
