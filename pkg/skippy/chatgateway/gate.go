package chatgateway

import "fmt"

// ShouldRespond applies the ingress gate: direct messages always elicit
// a response; in a multi-human channel the bot must be explicitly
// mentioned; in a channel whose visible human membership is exactly one
// (besides the bot), every message gets a response.
func ShouldRespond(msg IncomingMessage) bool {
	if msg.IsDM {
		return true
	}
	if msg.Mentioned {
		return true
	}
	return msg.HumanMemberCount == 1
}

const statusBubblePrefix = "_"

// isStatusBubble recognizes the small set of patterns the gateway's own
// status messages use, so history retrieval can filter them out rather
// than feeding the model its own "thinking..." chatter as conversation.
func isStatusBubble(content string) bool {
	if len(content) == 0 {
		return false
	}
	return content[0] == statusBubblePrefix[0] && len(content) > 1 && content[len(content)-1] == '_'
}

// FormatHistoryPrompt renders fetched history plus the current message
// into the user-visible prompt prefix the orchestrator receives.
func FormatHistoryPrompt(history []HistoryMessage, currentMessage string) string {
	if len(history) == 0 {
		return currentMessage
	}
	var lines string
	for _, h := range history {
		if isStatusBubble(h.Content) {
			continue
		}
		lines += fmt.Sprintf("%s: %s\n", h.Author, h.Content)
	}
	if lines == "" {
		return currentMessage
	}
	return fmt.Sprintf("Recent conversation:\n%s\nCurrent request: %s", lines, currentMessage)
}
