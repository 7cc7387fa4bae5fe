// Package whatsapp implements chatgateway.Channel over WhatsApp using
// whatsmeow, a native Go WhatsApp Web client.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/chatgateway"
)

// Config holds the WhatsApp channel's session and scoping settings.
type Config struct {
	SessionDir      string
	RespondToGroups bool
	RespondToDMs    bool

	// HistoryCacheSize bounds the per-chat ring buffer used to answer
	// FetchHistory, since WhatsApp has no server-side "fetch last N
	// messages" API the way Discord does.
	HistoryCacheSize int
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{
		SessionDir:       "./data/whatsapp",
		RespondToGroups:  true,
		RespondToDMs:     true,
		HistoryCacheSize: 50,
	}
}

// WhatsApp implements chatgateway.Channel over a whatsmeow client.
//
// FetchHistory is served from an in-memory per-chat ring buffer
// (history) rather than a server call: whatsmeow exposes no endpoint to
// page backward through a chat's message history the way Discord's
// ChannelMessages does, so every inbound and outbound message is
// recorded locally as it is observed and DeleteHistory only ever
// forgets what this cache has seen since the process started.
type WhatsApp struct {
	cfg    Config
	client *whatsmeow.Client
	logger *slog.Logger

	messages  chan chatgateway.IncomingMessage
	connected atomic.Bool

	historyMu sync.Mutex
	history   map[string][]historyEntry

	ctx    context.Context
	cancel context.CancelFunc
}

type historyEntry struct {
	msg chatgateway.HistoryMessage
	at  time.Time
}

// New constructs a WhatsApp channel. Connect must be called before use.
func New(cfg Config, logger *slog.Logger) *WhatsApp {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryCacheSize <= 0 {
		cfg.HistoryCacheSize = 50
	}
	return &WhatsApp{
		cfg:      cfg,
		logger:   logger.With("component", "whatsapp"),
		messages: make(chan chatgateway.IncomingMessage, 256),
		history:  make(map[string][]historyEntry),
	}
}

var _ chatgateway.Channel = (*WhatsApp)(nil)

func (w *WhatsApp) Name() string { return "whatsapp" }

// Connect opens the whatsmeow session, reconnecting an existing
// linked device or starting a background QR login if none exists.
func (w *WhatsApp) Connect(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	dbPath := w.cfg.SessionDir + "/whatsapp.db"
	container, err := sqlstore.New(w.ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", dbPath),
		waLog.Noop)
	if err != nil {
		return fmt.Errorf("whatsapp: creating session store: %w", err)
	}

	device, err := w.getDevice(w.ctx, container)
	if err != nil {
		return fmt.Errorf("whatsapp: getting device: %w", err)
	}
	store.SetOSInfo("Skippy", [3]uint32{1, 0, 0})

	w.client = whatsmeow.NewClient(device, waLog.Noop)
	w.client.AddEventHandler(w.handleEvent)

	if w.client.Store.ID == nil {
		w.logger.Info("whatsapp: no existing session, QR login required")
		go func() {
			if err := w.loginWithQR(w.ctx); err != nil {
				w.logger.Warn("whatsapp: QR login failed", "error", err)
			}
		}()
		return nil
	}

	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connecting: %w", err)
	}
	w.connected.Store(true)
	w.logger.Info("whatsapp: connected (existing session)")
	return nil
}

func (w *WhatsApp) Disconnect() error {
	w.connected.Store(false)
	if w.cancel != nil {
		w.cancel()
	}
	if w.client != nil {
		w.client.Disconnect()
	}
	return nil
}

func (w *WhatsApp) Receive() <-chan chatgateway.IncomingMessage { return w.messages }

func (w *WhatsApp) SendText(ctx context.Context, channelID, text string) (string, error) {
	if !w.connected.Load() {
		return "", fmt.Errorf("whatsapp: not connected")
	}
	jid, err := parseJID(channelID)
	if err != nil {
		return "", fmt.Errorf("whatsapp: invalid JID %q: %w", channelID, err)
	}
	var lastID string
	for _, part := range chatgateway.ChunkText(text, w.MaxMessageLength()) {
		resp, err := w.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(part)})
		if err != nil {
			return "", fmt.Errorf("whatsapp: sending message: %w", err)
		}
		lastID = resp.ID
	}
	w.recordHistory(channelID, "skippy", text)
	return lastID, nil
}

// DeleteMessage is a no-op for WhatsApp: deleting another party's
// received copy of a message is not something this channel supports
// the way Discord's moderation API does, and revoking only this
// client's own sent messages would not serve the status-bubble
// deletion this method exists for.
func (w *WhatsApp) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (w *WhatsApp) SendTyping(ctx context.Context, channelID string) error {
	if !w.connected.Load() {
		return nil
	}
	jid, err := parseJID(channelID)
	if err != nil {
		return err
	}
	return w.client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

// FetchHistory returns up to limit most-recent messages from the local
// ring-buffer cache for channelID, oldest first.
func (w *WhatsApp) FetchHistory(ctx context.Context, channelID string, limit int) ([]chatgateway.HistoryMessage, error) {
	w.historyMu.Lock()
	defer w.historyMu.Unlock()

	entries := w.history[channelID]
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]chatgateway.HistoryMessage, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out, nil
}

// DeleteHistory discards cached entries newer than cutoff. It only
// affects this process's local cache, not the counterpart's device.
func (w *WhatsApp) DeleteHistory(ctx context.Context, channelID string, cutoff time.Time) (int, error) {
	w.historyMu.Lock()
	defer w.historyMu.Unlock()

	entries := w.history[channelID]
	kept := entries[:0]
	deleted := 0
	for _, e := range entries {
		if !e.at.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	w.history[channelID] = kept
	return deleted, nil
}

func (w *WhatsApp) MaxMessageLength() int { return 65536 }

func (w *WhatsApp) recordHistory(channelID, author, content string) {
	w.historyMu.Lock()
	defer w.historyMu.Unlock()

	entries := append(w.history[channelID], historyEntry{
		msg: chatgateway.HistoryMessage{Author: author, Content: content},
		at:  time.Now(),
	})
	if len(entries) > w.cfg.HistoryCacheSize {
		entries = entries[len(entries)-w.cfg.HistoryCacheSize:]
	}
	w.history[channelID] = entries
}

func (w *WhatsApp) getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

func (w *WhatsApp) loginWithQR(ctx context.Context) error {
	qrChan, _ := w.client.GetQRChannel(ctx)
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connecting for QR: %w", err)
	}
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			w.logger.Info("whatsapp: scan QR code to link device", "code", evt.Code)
		case "success":
			w.connected.Store(true)
			w.logger.Info("whatsapp: login successful")
			return nil
		case "timeout":
			return fmt.Errorf("whatsapp: QR code timed out")
		default:
			if evt.Error != nil {
				return fmt.Errorf("whatsapp: QR login error: %w", evt.Error)
			}
		}
	}
	return fmt.Errorf("whatsapp: QR channel closed unexpectedly")
}

func (w *WhatsApp) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		w.handleMessageEvt(evt)
	case *events.Connected:
		w.connected.Store(true)
	case *events.Disconnected:
		w.connected.Store(false)
	}
}

func (w *WhatsApp) handleMessageEvt(evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.Chat.Server == "broadcast" {
		return
	}
	isGroup := evt.Info.IsGroup
	if isGroup && !w.cfg.RespondToGroups {
		return
	}
	if !isGroup && !w.cfg.RespondToDMs {
		return
	}

	content := extractText(evt.Message)
	if content == "" {
		return
	}

	chatID := evt.Info.Chat.String()
	isDM := !isGroup

	humanCount := 1
	if isGroup {
		if info, err := w.client.GetGroupInfo(evt.Info.Chat); err == nil {
			// The linked account itself is one of the participants.
			count := len(info.Participants) - 1
			if count > 0 {
				humanCount = count
			} else {
				humanCount = 2
			}
		} else {
			humanCount = 2
		}
	}

	incoming := chatgateway.IncomingMessage{
		ID:               evt.Info.ID,
		ChannelID:        chatID,
		From:             evt.Info.Sender.String(),
		FromName:         evt.Info.PushName,
		Content:          strings.TrimSpace(content),
		IsDM:             isDM,
		Mentioned:        mentionsBot(evt.Message, w.client),
		HumanMemberCount: humanCount,
		Timestamp:        evt.Info.Timestamp,
	}

	w.recordHistory(chatID, incoming.FromName, incoming.Content)

	select {
	case w.messages <- incoming:
	case <-w.ctx.Done():
	default:
		w.logger.Warn("whatsapp: message buffer full, dropping message", "from", incoming.From)
	}
}

func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Conversation != nil {
		return msg.GetConversation()
	}
	if ext := msg.ExtendedTextMessage; ext != nil {
		return ext.GetText()
	}
	return ""
}

func mentionsBot(msg *waE2E.Message, client *whatsmeow.Client) bool {
	if msg == nil || client == nil || client.Store.ID == nil {
		return false
	}
	ext := msg.ExtendedTextMessage
	if ext == nil || ext.ContextInfo == nil {
		return false
	}
	self := client.Store.ID.String()
	for _, jid := range ext.ContextInfo.GetMentionedJID() {
		if jid == self {
			return true
		}
	}
	return false
}

func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}
	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 10 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}
