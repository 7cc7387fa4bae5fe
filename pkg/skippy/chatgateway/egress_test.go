package chatgateway

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestChunkTextUnderLimit(t *testing.T) {
	chunks := ChunkText("hello", 2000)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("unexpected chunks %v", chunks)
	}
}

func TestChunkTextSplitsAtNewlineNearLimit(t *testing.T) {
	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	chunks := ChunkText(text, 10)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != strings.Repeat("a", 8)+"\n" {
		t.Fatalf("expected first chunk to end at newline, got %q", chunks[0])
	}
}

func TestChunkTextHardSplitWhenNoGoodNewline(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks := ChunkText(text, 10)
	total := ""
	for _, c := range chunks {
		total += c
	}
	if total != text {
		t.Fatalf("expected chunks to reconstruct original text, got %q", total)
	}
	for _, c := range chunks {
		if len(c) > 10 {
			t.Fatalf("chunk exceeds limit: %q", c)
		}
	}
}

type typingOnlyChannel struct {
	count atomic.Int32
}

func (c *typingOnlyChannel) Name() string                      { return "test" }
func (c *typingOnlyChannel) Connect(ctx context.Context) error { return nil }
func (c *typingOnlyChannel) Disconnect() error                 { return nil }
func (c *typingOnlyChannel) Receive() <-chan IncomingMessage   { return nil }
func (c *typingOnlyChannel) SendText(ctx context.Context, channelID, text string) (string, error) {
	return "", nil
}
func (c *typingOnlyChannel) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}
func (c *typingOnlyChannel) SendTyping(ctx context.Context, channelID string) error {
	c.count.Add(1)
	return nil
}
func (c *typingOnlyChannel) FetchHistory(ctx context.Context, channelID string, limit int) ([]HistoryMessage, error) {
	return nil, nil
}
func (c *typingOnlyChannel) DeleteHistory(ctx context.Context, channelID string, cutoff time.Time) (int, error) {
	return 0, nil
}
func (c *typingOnlyChannel) MaxMessageLength() int { return 2000 }

var _ Channel = (*typingOnlyChannel)(nil)

func TestTypingPumpRefreshesUntilStopped(t *testing.T) {
	ch := &typingOnlyChannel{}
	pump := StartTypingPump(context.Background(), ch, "c1", 10*time.Millisecond)
	time.Sleep(45 * time.Millisecond)
	pump.Stop()

	if n := ch.count.Load(); n < 2 {
		t.Fatalf("expected typing indicator refreshed more than once, got %d", n)
	}
}
