// Package discord implements chatgateway.Channel over Discord using
// discordgo's gateway WebSocket.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/chatgateway"
)

// Config holds the Discord channel's connection and scoping settings.
type Config struct {
	Token           string
	AllowedGuilds   []string
	AllowedChannels []string
}

// Discord implements chatgateway.Channel over a discordgo session.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	messages  chan chatgateway.IncomingMessage
	connected atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Discord channel. Connect must be called before use.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		messages: make(chan chatgateway.IncomingMessage, 256),
	}
}

var _ chatgateway.Channel = (*Discord)(nil)

func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection and registers
// the message handler that feeds Receive.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.connected.Store(true)

	user := session.State.User
	d.logger.Info("discord: connected", "bot", user.Username+"#"+user.Discriminator, "id", user.ID)
	return nil
}

func (d *Discord) Disconnect() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.session != nil {
		if err := d.session.Close(); err != nil {
			return err
		}
	}
	d.connected.Store(false)
	return nil
}

func (d *Discord) Receive() <-chan chatgateway.IncomingMessage { return d.messages }

func (d *Discord) SendText(ctx context.Context, channelID, text string) (string, error) {
	if d.session == nil {
		return "", fmt.Errorf("discord: not connected")
	}
	var lastID string
	for _, part := range chatgateway.ChunkText(text, d.MaxMessageLength()) {
		msg, err := d.session.ChannelMessageSend(channelID, part)
		if err != nil {
			return "", err
		}
		lastID = msg.ID
	}
	return lastID, nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if d.session == nil {
		return fmt.Errorf("discord: not connected")
	}
	return d.session.ChannelMessageDelete(channelID, messageID)
}

func (d *Discord) SendTyping(ctx context.Context, channelID string) error {
	if d.session == nil {
		return nil
	}
	return d.session.ChannelTyping(channelID)
}

// FetchHistory pages backward through Discord's message list API, the
// most recent limit messages first, then reverses to chronological order
// for prompt assembly.
func (d *Discord) FetchHistory(ctx context.Context, channelID string, limit int) ([]chatgateway.HistoryMessage, error) {
	if d.session == nil {
		return nil, fmt.Errorf("discord: not connected")
	}
	msgs, err := d.session.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("discord: fetching history: %w", err)
	}
	out := make([]chatgateway.HistoryMessage, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = chatgateway.HistoryMessage{Author: m.Author.Username, Content: m.Content}
	}
	return out, nil
}

// DeleteHistory removes messages in channelID newer than cutoff, paging
// through ChannelMessages since Discord has no bulk delete by timestamp.
func (d *Discord) DeleteHistory(ctx context.Context, channelID string, cutoff time.Time) (int, error) {
	if d.session == nil {
		return 0, fmt.Errorf("discord: not connected")
	}
	deleted := 0
	before := ""
	for {
		msgs, err := d.session.ChannelMessages(channelID, 100, before, "", "")
		if err != nil {
			return deleted, fmt.Errorf("discord: listing for clear: %w", err)
		}
		if len(msgs) == 0 {
			break
		}
		for _, m := range msgs {
			if m.Timestamp.Before(cutoff) {
				continue
			}
			if err := d.session.ChannelMessageDelete(channelID, m.ID); err != nil {
				d.logger.Warn("discord: failed to delete message during clear", "id", m.ID, "error", err)
				continue
			}
			deleted++
		}
		before = msgs[len(msgs)-1].ID
		if len(msgs) < 100 {
			break
		}
	}
	return deleted, nil
}

func (d *Discord) MaxMessageLength() int { return 2000 }

func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	if len(d.cfg.AllowedGuilds) > 0 && m.GuildID != "" && !contains(d.cfg.AllowedGuilds, m.GuildID) {
		return
	}
	if len(d.cfg.AllowedChannels) > 0 && !contains(d.cfg.AllowedChannels, m.ChannelID) {
		return
	}

	isDM := m.GuildID == ""
	mentioned := false
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}

	humanCount := 0
	if !isDM {
		if guild, err := s.State.Guild(m.GuildID); err == nil {
			for _, mem := range guild.Members {
				if mem.User != nil && !mem.User.Bot {
					humanCount++
				}
			}
		}
		if humanCount == 0 {
			humanCount = 2 // conservative default: require a mention in an unresolved guild
		}
	} else {
		humanCount = 1
	}

	content := m.Content
	content = strings.TrimSpace(content)

	incoming := chatgateway.IncomingMessage{
		ID:               m.ID,
		ChannelID:        m.ChannelID,
		From:             m.Author.ID,
		FromName:         m.Author.Username,
		Content:          content,
		IsDM:             isDM,
		Mentioned:        mentioned,
		HumanMemberCount: humanCount,
		Timestamp:        m.Timestamp,
	}
	for _, att := range m.Attachments {
		incoming.ImageURLs = append(incoming.ImageURLs, att.URL)
	}

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
