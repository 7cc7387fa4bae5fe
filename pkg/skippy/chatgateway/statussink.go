package chatgateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ChatStatusSink posts the orchestrator's per-iteration status updates
// as a single message that is replaced (deleted and resent) on every
// call, so only one status bubble is ever visible per run. Wrapped in
// the isStatusBubble-recognized "_..._" shape so history retrieval
// filters it out of future prompts.
type ChatStatusSink struct {
	Channel   Channel
	ChannelID string
	Logger    *slog.Logger

	mu       sync.Mutex
	activeID string
}

// Status posts or replaces the visible status bubble.
func (s *ChatStatusSink) Status(text string) {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		_ = s.Channel.DeleteMessage(ctx, s.ChannelID, s.activeID)
		s.activeID = ""
	}

	id, err := s.Channel.SendText(ctx, s.ChannelID, fmt.Sprintf("_%s…_", text))
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("chatgateway: failed to post status bubble", "error", err)
		}
		return
	}
	s.activeID = id
}

// Done is a no-op here: whether the final status bubble is deleted
// depends on whether the run produced a non-empty final answer, a
// decision only the gateway's dispatch loop can make, so deletion is
// done via DeleteActive after Run returns rather than from Done.
func (s *ChatStatusSink) Done() {}

// DeleteActive removes the current status bubble, if any.
func (s *ChatStatusSink) DeleteActive(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return
	}
	_ = s.Channel.DeleteMessage(ctx, s.ChannelID, s.activeID)
	s.activeID = ""
}
