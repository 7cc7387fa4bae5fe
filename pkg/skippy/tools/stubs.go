package tools

import (
	"context"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// WebSearchTool, WeatherTool and TrelloTool carry only their registry
// contract and capability document: the actual backend integrations are
// explicitly out of scope. Run returns a not-implemented failure so the
// orchestrator's normal Tool-failure path (force continue, surface to
// the next LLM turn) exercises them exactly like a real backend that is
// temporarily down.

type WebSearchTool struct{}

func NewWebSearchTool() *WebSearchTool { return &WebSearchTool{} }
func (t *WebSearchTool) Name() string  { return "web_search" }
func (t *WebSearchTool) Init() error   { return nil }
func (t *WebSearchTool) Run(_ context.Context, _ map[string]any) toolregistry.Result {
	return toolregistry.Failf("web_search: not configured")
}
func (t *WebSearchTool) Context() string {
	return "run(query: string) -> [{title, url, snippet}]. Web search backend, contract only."
}

type WeatherTool struct{}

func NewWeatherTool() *WeatherTool  { return &WeatherTool{} }
func (t *WeatherTool) Name() string { return "weather" }
func (t *WeatherTool) Init() error  { return nil }
func (t *WeatherTool) Run(_ context.Context, _ map[string]any) toolregistry.Result {
	return toolregistry.Failf("weather: not configured")
}
func (t *WeatherTool) Context() string {
	return "run(location: string) -> {temp, conditions}. Weather backend, contract only."
}

type TrelloTool struct{}

func NewTrelloTool() *TrelloTool   { return &TrelloTool{} }
func (t *TrelloTool) Name() string { return "trello" }
func (t *TrelloTool) Init() error  { return nil }
func (t *TrelloTool) Run(_ context.Context, _ map[string]any) toolregistry.Result {
	return toolregistry.Failf("trello: not configured")
}
func (t *TrelloTool) Context() string {
	return "run(op: string, ...) -> varies. Trello board integration, contract only."
}

type DiscordSendTool struct {
	// Send, when set, delivers a message to a channel on the live
	// Discord connection. Wired by the chat gateway at startup; nil in
	// IPC-only or test contexts, in which case Run reports failure.
	Send func(channel, message string) error
}

func NewDiscordSendTool() *DiscordSendTool { return &DiscordSendTool{} }
func (t *DiscordSendTool) Name() string    { return "discord_send" }
func (t *DiscordSendTool) Init() error     { return nil }

func (t *DiscordSendTool) Run(_ context.Context, args map[string]any) toolregistry.Result {
	if t.Send == nil {
		return toolregistry.Failf("discord_send: no channel connection configured")
	}
	channel, _ := args["channel"].(string)
	message, _ := args["message"].(string)
	if channel == "" || message == "" {
		return toolregistry.Failf("discord_send: missing required argument 'channel' or 'message'")
	}
	if err := t.Send(channel, message); err != nil {
		return toolregistry.Fail(err)
	}
	return toolregistry.OK(map[string]any{"channel": channel})
}

func (t *DiscordSendTool) Context() string {
	return "run(channel: string, message: string) -> {channel}. Sends a message out-of-band to a Discord channel."
}
