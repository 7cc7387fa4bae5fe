// Package chatgateway connects the Orchestrator to chat platforms: it
// gates which inbound messages the daemon reacts to, retrieves recent
// conversation history from the platform itself (there is no internal
// history store), streams typing/status indicators while a prompt runs,
// chunks the final answer to the platform's message-length limit, and
// exposes a small text command surface (stop/clear/model/loop_limit/
// context).
//
// Grounded on pkg/devclaw/channels/channel.go's Channel interface,
// trimmed to the subset of platform capabilities this daemon's gateway
// actually drives (no reactions, no interactive components, no
// location/contact message types — those are teacher features outside
// this scope).
package chatgateway

import (
	"context"
	"time"
)

// IncomingMessage is one inbound chat message, normalized across
// platforms.
type IncomingMessage struct {
	ID        string
	ChannelID string
	From      string
	FromName  string
	Content   string
	IsDM      bool
	Mentioned bool

	// HumanMemberCount is the number of non-bot members visible in the
	// channel, used by the ingress gate's "exactly one human" rule.
	// Always 1 for direct messages.
	HumanMemberCount int

	// ImagePaths/ImageURLs carry attachment references for vision models.
	ImagePaths []string
	ImageURLs  []string

	Timestamp time.Time
}

// HistoryMessage is one prior message as reported by FetchHistory,
// already filtered of bot status bubbles.
type HistoryMessage struct {
	Author  string
	Content string
}

// Channel is the contract every chat platform backend satisfies.
type Channel interface {
	// Name returns the channel kind identifier (e.g. "discord").
	Name() string

	Connect(ctx context.Context) error
	Disconnect() error

	// Receive returns the channel of normalized inbound messages.
	Receive() <-chan IncomingMessage

	// SendText posts text to channelID, internally chunked to
	// MaxMessageLength, returning the ID of the last chunk sent (the one
	// a caller would want to reference for deletion).
	SendText(ctx context.Context, channelID, text string) (string, error)

	// DeleteMessage removes a previously sent message (used to clear
	// status bubbles once a run completes).
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	SendTyping(ctx context.Context, channelID string) error

	// FetchHistory returns up to limit of the most recent messages in
	// channelID, oldest first, with bot status bubbles filtered out.
	FetchHistory(ctx context.Context, channelID string, limit int) ([]HistoryMessage, error)

	// DeleteHistory removes messages newer than the platform's retention
	// cutoff (e.g. Discord's 14-day bulk-delete limit), returning the
	// count removed. Used by the "clear" command.
	DeleteHistory(ctx context.Context, channelID string, cutoff time.Time) (int, error)

	MaxMessageLength() int
}
