package chatgateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/config"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/orchestrator"
)

var _ orchestrator.StatusSink = (*ChatStatusSink)(nil)

// ConfigStore wraps the process config with the small set of runtime
// mutations the chat gateway's command surface needs to persist
// (model, loop_limit), writing the whole record back through config.Save
// on every change.
type ConfigStore struct {
	mu   sync.Mutex
	cfg  config.Config
	path string
}

// NewConfigStore wraps cfg, persisted at path on every mutation.
func NewConfigStore(cfg config.Config, path string) *ConfigStore {
	return &ConfigStore{cfg: cfg, path: path}
}

// Get returns a snapshot of the current config.
func (s *ConfigStore) Get() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetModel persists a new default model.
func (s *ConfigStore) SetModel(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Ollama.Model = model
	return s.cfg.Save(s.path)
}

// SetLoopLimit persists a new loop_limit.
func (s *ConfigStore) SetLoopLimit(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Prompt.LoopLimit = n
	return s.cfg.Save(s.path)
}

// Gateway wires one or more Channel backends to the Orchestrator,
// applying the ingress gate, history retrieval, typing/status egress,
// and the text command surface uniformly across platforms.
type Gateway struct {
	Channels       map[string]Channel
	Orchestrator   *orchestrator.Orchestrator
	LLM            llmclient.Client
	Config         *ConfigStore
	ContextItems   *orchestrator.ContextItemStore
	HistoryLimit   int
	TypingInterval time.Duration
	Logger         *slog.Logger

	modelMu sync.Mutex
	model   string
}

// New constructs a Gateway. model is the initial default model name
// (from config.Ollama.Model); it is overridden at runtime by the
// "model set" command.
func New(orc *orchestrator.Orchestrator, llm llmclient.Client, cfgStore *ConfigStore, contextItems *orchestrator.ContextItemStore, model string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		Channels:       map[string]Channel{},
		Orchestrator:   orc,
		LLM:            llm,
		Config:         cfgStore,
		ContextItems:   contextItems,
		HistoryLimit:   20,
		TypingInterval: 8 * time.Second,
		Logger:         logger.With("component", "chatgateway"),
		model:          model,
	}
}

// AddChannel registers a connected or not-yet-connected channel backend.
func (g *Gateway) AddChannel(ch Channel) {
	g.Channels[ch.Name()] = ch
}

func (g *Gateway) currentModel() string {
	g.modelMu.Lock()
	defer g.modelMu.Unlock()
	return g.model
}

func (g *Gateway) setCurrentModel(m string) {
	g.modelMu.Lock()
	g.model = m
	g.modelMu.Unlock()
}

// SendMessage delivers text straight to a channel backend without
// invoking the orchestrator, satisfying ipcserver.ChatSender for the
// IPC server's "message" request type. With exactly one registered
// channel backend (the common single-platform deployment) it is used
// regardless of the channel identifier's platform; with more than one
// it is ambiguous which platform owns an opaque channel ID, so callers
// running multiple chat backends should route by a "platform:channelID"
// convention at a higher layer.
func (g *Gateway) SendMessage(ctx context.Context, channelID, text string) (string, error) {
	for _, ch := range g.Channels {
		return ch.SendText(ctx, channelID, text)
	}
	return "", fmt.Errorf("chatgateway: no channel backend registered")
}

// Run connects every registered channel and dispatches inbound messages
// until ctx is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	for name, ch := range g.Channels {
		if err := ch.Connect(ctx); err != nil {
			return fmt.Errorf("chatgateway: connecting %s: %w", name, err)
		}
		go g.consume(ctx, ch)
	}
	<-ctx.Done()
	for name, ch := range g.Channels {
		if err := ch.Disconnect(); err != nil {
			g.Logger.Warn("chatgateway: disconnect failed", "channel", name, "error", err)
		}
	}
	return nil
}

func (g *Gateway) consume(ctx context.Context, ch Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Receive():
			if !ok {
				return
			}
			go g.handleMessage(ctx, ch, msg)
		}
	}
}

func (g *Gateway) handleMessage(ctx context.Context, ch Channel, msg IncomingMessage) {
	if !ShouldRespond(msg) {
		return
	}

	if cmd, ok := ParseCommand(msg.Content); ok {
		g.handleCommand(ctx, ch, msg, cmd)
		return
	}

	prompt := msg.Content
	if history, err := ch.FetchHistory(ctx, msg.ChannelID, g.HistoryLimit); err == nil {
		prompt = FormatHistoryPrompt(history, msg.Content)
	} else {
		g.Logger.Warn("chatgateway: fetching history failed", "channel", msg.ChannelID, "error", err)
	}

	pump := StartTypingPump(ctx, ch, msg.ChannelID, g.TypingInterval)
	defer pump.Stop()

	sink := &ChatStatusSink{Channel: ch, ChannelID: msg.ChannelID, Logger: g.Logger}

	images := make([]orchestrator.ImageSource, 0, len(msg.ImagePaths)+len(msg.ImageURLs))
	for _, p := range msg.ImagePaths {
		images = append(images, orchestrator.ImageSource{Path: p})
	}
	for _, u := range msg.ImageURLs {
		images = append(images, orchestrator.ImageSource{URL: u})
	}

	result := g.Orchestrator.Run(ctx, orchestrator.Request{
		Prompt:  prompt,
		Model:   g.currentModel(),
		Channel: msg.ChannelID,
		User:    msg.From,
		Images:  images,
		Status:  sink,
	})

	if result.Err != nil {
		sink.DeleteActive(ctx)
		if _, err := ch.SendText(ctx, msg.ChannelID, fmt.Sprintf("Something went wrong: %v", result.Err)); err != nil {
			g.Logger.Warn("chatgateway: failed to send error reply", "error", err)
		}
		return
	}

	if result.Aborted {
		sink.DeleteActive(ctx)
		return
	}

	if result.FinalAnswer != "" {
		sink.DeleteActive(ctx)
		if _, err := ch.SendText(ctx, msg.ChannelID, result.FinalAnswer); err != nil {
			g.Logger.Warn("chatgateway: failed to send final answer", "error", err)
		}
	}
}

func (g *Gateway) handleCommand(ctx context.Context, ch Channel, msg IncomingMessage, cmd Command) {
	var reply string

	switch cmd.Name {
	case "stop":
		g.Orchestrator.Abort.Set(msg.ChannelID)
		reply = "Stopping."

	case "clear":
		cutoff := time.Now().Add(-14 * 24 * time.Hour)
		n, err := ch.DeleteHistory(ctx, msg.ChannelID, cutoff)
		if err != nil {
			reply = fmt.Sprintf("Failed to clear: %v", err)
		} else {
			reply = fmt.Sprintf("Cleared %d message(s).", n)
		}

	case "model_list":
		models, err := g.LLM.ListModels(ctx)
		if err != nil {
			reply = fmt.Sprintf("Failed to list models: %v", err)
			break
		}
		var sb strings.Builder
		for _, m := range models {
			fmt.Fprintf(&sb, "%s (context %d)\n", m.Name, m.ContextWindow)
		}
		reply = sb.String()
		if reply == "" {
			reply = "No models available."
		}

	case "model_set":
		name := cmd.Args[0]
		if _, err := g.LLM.Introspect(ctx, name); err != nil {
			reply = fmt.Sprintf("Model %q is not available: %v", name, err)
			break
		}
		if err := g.Config.SetModel(name); err != nil {
			reply = fmt.Sprintf("Model usable but failed to persist: %v", err)
			break
		}
		g.setCurrentModel(name)
		reply = fmt.Sprintf("Model set to %s.", name)

	case "loop_limit_get":
		reply = fmt.Sprintf("loop_limit = %d", g.Orchestrator.LoopLimit)

	case "loop_limit_set":
		n, err := strconv.Atoi(cmd.Args[0])
		if err != nil || n < 1 || n > 200 {
			reply = "loop_limit must be an integer in [1,200]."
			break
		}
		g.Orchestrator.LoopLimit = n
		if err := g.Config.SetLoopLimit(n); err != nil {
			reply = fmt.Sprintf("loop_limit updated but failed to persist: %v", err)
			break
		}
		reply = fmt.Sprintf("loop_limit set to %d.", n)

	case "context_add":
		kind, path := cmd.Args[0], cmd.Args[1]
		if kind != "file" && kind != "image" {
			reply = "context add kind must be file or image."
			break
		}
		if err := g.ContextItems.Add(kind, path); err != nil {
			reply = fmt.Sprintf("Failed to add: %v", err)
			break
		}
		reply = fmt.Sprintf("Added %s %s.", kind, path)

	case "context_remove":
		idx, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			reply = "context remove expects a 1-based index."
			break
		}
		if err := g.ContextItems.Remove(idx); err != nil {
			reply = fmt.Sprintf("Failed to remove: %v", err)
			break
		}
		reply = "Removed."

	case "context_list":
		items, err := g.ContextItems.List()
		if err != nil {
			reply = fmt.Sprintf("Failed to list context: %v", err)
			break
		}
		if len(items) == 0 {
			reply = "No persistent context items."
			break
		}
		var sb strings.Builder
		for i, it := range items {
			fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, it.Kind, it.Path)
		}
		reply = sb.String()

	case "context_status":
		items, err := g.ContextItems.List()
		if err != nil {
			reply = fmt.Sprintf("Failed to read context: %v", err)
			break
		}
		reply = fmt.Sprintf("%d context item(s) tracked; context window %d tokens.", len(items), g.Orchestrator.ContextWindow)

	case "context_clear":
		if err := g.ContextItems.Clear(); err != nil {
			reply = fmt.Sprintf("Failed to clear context: %v", err)
			break
		}
		reply = "Persistent context cleared."
	}

	if reply == "" {
		return
	}
	if _, err := ch.SendText(ctx, msg.ChannelID, reply); err != nil {
		g.Logger.Warn("chatgateway: failed to send command reply", "error", err)
	}
}
