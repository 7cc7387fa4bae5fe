package ipcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/orchestrator"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

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
	ch := make(chan llmclient.Chunk, 2)
	ch <- llmclient.Chunk{Kind: llmclient.ChunkText, Text: s.responses[idx]}
	ch <- llmclient.Chunk{Kind: llmclient.ChunkFinal}
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) Introspect(ctx context.Context, model string) (llmclient.ModelInfo, error) {
	return llmclient.ModelInfo{Name: model}, nil
}

func (s *scriptedLLM) ListModels(ctx context.Context) ([]llmclient.ModelInfo, error) { return nil, nil }

var _ llmclient.Client = (*scriptedLLM)(nil)

type fakeChatSender struct {
	sent []string
}

func (f *fakeChatSender) SendMessage(ctx context.Context, channel, text string) (string, error) {
	f.sent = append(f.sent, channel+":"+text)
	return "sent-id", nil
}

func newTestServer(t *testing.T, llm llmclient.Client, sender ChatSender) (*Server, string) {
	t.Helper()
	registry := toolregistry.New()
	assembler := &orchestrator.ContextAssembler{Registry: registry}
	orc := orchestrator.New(llm, registry, assembler, nil)

	sockPath := filepath.Join(t.TempDir(), "skippy.sock")
	srv := New(Config{
		SocketPath:   sockPath,
		Orchestrator: orc,
		ChatSender:   sender,
		ConnTimeout:  2 * time.Second,
	})
	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("starting server: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv, sockPath
}

func dial(t *testing.T, sockPath string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dialing socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendLine(t *testing.T, conn net.Conn, req Request) {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		t.Fatalf("writing request: %v", err)
	}
}

func readResponses(t *testing.T, conn net.Conn, n int) []Response {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	scanner := bufio.NewScanner(conn)
	var out []Response
	for i := 0; i < n; i++ {
		if !scanner.Scan() {
			t.Fatalf("expected %d responses, got %d (err=%v)", n, len(out), scanner.Err())
		}
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshaling response: %v", err)
		}
		out = append(out, resp)
	}
	return out
}

func TestPromptRequestReturnsDoneWithFinalAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"actions":[],"final_answer":"hello there","continue":false}`,
	}}
	_, sockPath := newTestServer(t, llm, nil)
	conn := dial(t, sockPath)

	sendLine(t, conn, Request{Type: "prompt", Prompt: "hi"})
	resps := readResponses(t, conn, 1)

	if resps[0].Type != "done" || resps[0].Content != "hello there" {
		t.Fatalf("unexpected response %+v", resps[0])
	}
}

func TestPromptRequestMissingPromptReturnsError(t *testing.T) {
	llm := &scriptedLLM{}
	_, sockPath := newTestServer(t, llm, nil)
	conn := dial(t, sockPath)

	sendLine(t, conn, Request{Type: "prompt"})
	resps := readResponses(t, conn, 1)

	if resps[0].Type != "error" {
		t.Fatalf("expected error response, got %+v", resps[0])
	}
}

func TestMessageRequestDeliversViaChatSender(t *testing.T) {
	llm := &scriptedLLM{}
	sender := &fakeChatSender{}
	_, sockPath := newTestServer(t, llm, sender)
	conn := dial(t, sockPath)

	sendLine(t, conn, Request{Type: "message", Message: "raw text", Channel: "general"})
	resps := readResponses(t, conn, 1)

	if resps[0].Type != "done" {
		t.Fatalf("unexpected response %+v", resps[0])
	}
	if len(sender.sent) != 1 || sender.sent[0] != "general:raw text" {
		t.Fatalf("unexpected sent messages %v", sender.sent)
	}
}

func TestMessageRequestWithoutChatSenderReturnsError(t *testing.T) {
	llm := &scriptedLLM{}
	_, sockPath := newTestServer(t, llm, nil)
	conn := dial(t, sockPath)

	sendLine(t, conn, Request{Type: "message", Message: "hi"})
	resps := readResponses(t, conn, 1)

	if resps[0].Type != "error" {
		t.Fatalf("expected error response, got %+v", resps[0])
	}
}

func TestUnknownRequestTypeReturnsError(t *testing.T) {
	llm := &scriptedLLM{}
	_, sockPath := newTestServer(t, llm, nil)
	conn := dial(t, sockPath)

	sendLine(t, conn, Request{Type: "bogus"})
	resps := readResponses(t, conn, 1)

	if resps[0].Type != "error" {
		t.Fatalf("expected error response, got %+v", resps[0])
	}
}

func TestConnectionClosesAfterDone(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"actions":[],"final_answer":"bye","continue":false}`,
	}}
	_, sockPath := newTestServer(t, llm, nil)
	conn := dial(t, sockPath)

	sendLine(t, conn, Request{Type: "prompt", Prompt: "hi"})
	readResponses(t, conn, 1)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	_, err := conn.Read(buf)
	if err == nil {
		t.Fatal("expected connection to be closed by server after done frame")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatal("expected connection closed, not a read timeout")
	}
}

func TestStaleSocketIsRemovedOnStart(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "skippy.sock")

	stale, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("creating stale socket: %v", err)
	}
	stale.Close()

	llm := &scriptedLLM{}
	registry := toolregistry.New()
	assembler := &orchestrator.ContextAssembler{Registry: registry}
	orc := orchestrator.New(llm, registry, assembler, nil)
	srv := New(Config{SocketPath: sockPath, Orchestrator: orc})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("expected Start to remove the stale socket and bind fresh, got %v", err)
	}
	defer srv.Stop()
}
