// Package ipcserver implements the daemon's local control surface: a
// Unix-domain socket speaking newline-delimited JSON, grounded on
// pkg/devclaw/gateway/gateway.go's Start/Stop lifecycle and
// writeJSON/writeError idioms, adapted from that file's net/http+TCP
// listener to spec's AF_UNIX framing.
package ipcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/orchestrator"
)

const (
	defaultConnTimeout = 5 * time.Minute
	maxLineSize        = 1 << 20
)

// ChatSender sends text directly to a chat platform, bypassing the
// LLM — the "message" request type's delivery mechanism.
type ChatSender interface {
	SendMessage(ctx context.Context, channel, text string) (string, error)
}

// Config configures a Server.
type Config struct {
	SocketPath   string
	Orchestrator *orchestrator.Orchestrator
	ChatSender   ChatSender
	DefaultModel string
	ConnTimeout  time.Duration
	Logger       *slog.Logger
}

// Server accepts connections on a Unix-domain socket and serves the
// prompt/message request protocol.
type Server struct {
	cfg      Config
	listener net.Listener

	wg sync.WaitGroup
}

// New constructs a Server from cfg, filling in sane defaults.
func New(cfg Config) *Server {
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = defaultConnTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger = cfg.Logger.With("component", "ipcserver")
	return &Server{cfg: cfg}
}

// Start removes any stale socket at cfg.SocketPath, binds a fresh one
// with 0600 permissions, and begins accepting connections in the
// background until ctx is canceled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ipcserver: removing stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("ipcserver: binding socket: %w", err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("ipcserver: setting socket permissions: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	s.cfg.Logger.Info("ipcserver: listening", "socket", s.cfg.SocketPath)
	return nil
}

// Stop closes the listener and waits for in-flight connections to
// finish their current request before returning.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.wg.Wait()
	os.Remove(s.cfg.SocketPath)
	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.cfg.Logger.Warn("ipcserver: accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(s.cfg.ConnTimeout))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(Response{Type: "error", Message: fmt.Sprintf("malformed request: %v", err)})
			return
		}

		closeAfter := s.handleRequest(ctx, enc, req)
		if closeAfter {
			return
		}
	}
}

// handleRequest dispatches one decoded request, writing its response
// frame(s) to enc, and reports whether the connection should close
// (true after any done or error frame, per the protocol).
func (s *Server) handleRequest(ctx context.Context, enc *json.Encoder, req Request) bool {
	switch req.Type {
	case "prompt":
		return s.handlePrompt(ctx, enc, req)
	case "message":
		return s.handleMessage(ctx, enc, req)
	default:
		_ = enc.Encode(Response{Type: "error", Message: fmt.Sprintf("unknown request type %q", req.Type)})
		return true
	}
}

func (s *Server) handlePrompt(ctx context.Context, enc *json.Encoder, req Request) bool {
	if req.Prompt == "" {
		_ = enc.Encode(Response{Type: "error", Message: "prompt is required"})
		return true
	}
	if s.cfg.Orchestrator == nil {
		_ = enc.Encode(Response{Type: "error", Message: "orchestrator not available"})
		return true
	}

	model := req.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}

	sink := &statusStreamer{enc: enc}
	result := s.cfg.Orchestrator.Run(ctx, orchestrator.Request{
		Prompt:       req.Prompt,
		Model:        model,
		ExtraContext: req.Context,
		Channel:      req.Channel,
		User:         req.User,
		Status:       sink,
	})

	if result.Err != nil {
		_ = enc.Encode(Response{Type: "error", Message: result.Err.Error()})
		return true
	}
	if result.Aborted {
		_ = enc.Encode(Response{Type: "done", Content: "aborted"})
		return true
	}

	if req.Output == "chat" && s.cfg.ChatSender != nil && req.Channel != "" {
		if _, err := s.cfg.ChatSender.SendMessage(ctx, req.Channel, result.FinalAnswer); err != nil {
			s.cfg.Logger.Warn("ipcserver: delivering prompt result to chat failed", "error", err)
		}
	}

	_ = enc.Encode(Response{Type: "done", Content: result.FinalAnswer})
	return true
}

func (s *Server) handleMessage(ctx context.Context, enc *json.Encoder, req Request) bool {
	if req.Message == "" {
		_ = enc.Encode(Response{Type: "error", Message: "message is required"})
		return true
	}
	if s.cfg.ChatSender == nil {
		_ = enc.Encode(Response{Type: "error", Message: "chat sender not configured"})
		return true
	}
	id, err := s.cfg.ChatSender.SendMessage(ctx, req.Channel, req.Message)
	if err != nil {
		_ = enc.Encode(Response{Type: "error", Message: err.Error()})
		return true
	}
	_ = enc.Encode(Response{Type: "done", Content: id})
	return true
}

// statusStreamer adapts the newline-delimited JSON connection to
// orchestrator.StatusSink, emitting one "status" frame per update.
type statusStreamer struct {
	enc *json.Encoder
}

func (s *statusStreamer) Status(text string) {
	_ = s.enc.Encode(Response{Type: "status", Status: text})
}

func (s *statusStreamer) Done() {}

var _ orchestrator.StatusSink = (*statusStreamer)(nil)
