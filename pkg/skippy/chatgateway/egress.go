package chatgateway

import (
	"context"
	"strings"
	"time"
)

// ChunkText splits text into pieces no longer than maxLen, preferring to
// cut at the last newline past the halfway point so a chunk boundary
// doesn't land mid-sentence. Grounded on
// pkg/devclaw/channels/discord/discord.go's splitDiscordMessage,
// generalized to any platform's length limit.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

// TypingPump refreshes a channel's typing indicator on a fixed interval
// until Stop is called, since most platforms' typing state expires after
// a few seconds and a multi-minute LLM turn needs it kept alive.
type TypingPump struct {
	stop chan struct{}
	done chan struct{}
}

// StartTypingPump begins refreshing the typing indicator for channelID
// every interval until Stop is called or ctx is done.
func StartTypingPump(ctx context.Context, ch Channel, channelID string, interval time.Duration) *TypingPump {
	p := &TypingPump{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		_ = ch.SendTyping(ctx, channelID)
		for {
			select {
			case <-ticker.C:
				_ = ch.SendTyping(ctx, channelID)
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return p
}

// Stop halts the pump and waits for its goroutine to exit.
func (p *TypingPump) Stop() {
	close(p.stop)
	<-p.done
}
