package cronscheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/orchestrator"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

type scriptedLLM struct {
	mu       sync.Mutex
	response string
}

func (s *scriptedLLM) Chat(ctx context.Context, opts llmclient.ChatOptions) (<-chan llmclient.Chunk, error) {
	s.mu.Lock()
	text := s.response
	s.mu.Unlock()

	ch := make(chan llmclient.Chunk, 2)
	ch <- llmclient.Chunk{Kind: llmclient.ChunkText, Text: text}
	ch <- llmclient.Chunk{Kind: llmclient.ChunkFinal}
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) Introspect(ctx context.Context, model string) (llmclient.ModelInfo, error) {
	return llmclient.ModelInfo{Name: model}, nil
}

func (s *scriptedLLM) ListModels(ctx context.Context) ([]llmclient.ModelInfo, error) { return nil, nil }

var _ llmclient.Client = (*scriptedLLM)(nil)

func TestOrchestratorPromptHandlerRunsJobTextAsPrompt(t *testing.T) {
	llm := &scriptedLLM{response: `{"actions":[],"final_answer":"reminder delivered","continue":false}`}
	registry := toolregistry.New()
	assembler := &orchestrator.ContextAssembler{Registry: registry}
	orc := orchestrator.New(llm, registry, assembler, nil)

	handler := OrchestratorPromptHandler(orc, "llama3.2", nil)

	job := &Job{ID: "job-1", Type: JobOneTime, Action: Action{Kind: ActionPrompt, Text: "remind me to stretch"}}

	done := make(chan struct{})
	go func() {
		handler(context.Background(), job)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return in time")
	}
}

func TestNoopStatusSinkDiscardsUpdates(t *testing.T) {
	var sink noopStatusSink
	sink.Status("irrelevant")
	sink.Done()
}
