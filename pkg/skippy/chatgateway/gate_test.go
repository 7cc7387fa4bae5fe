package chatgateway

import "testing"

func TestShouldRespondDirectMessage(t *testing.T) {
	if !ShouldRespond(IncomingMessage{IsDM: true, HumanMemberCount: 5}) {
		t.Fatal("expected DM to always elicit a response")
	}
}

func TestShouldRespondMentioned(t *testing.T) {
	if !ShouldRespond(IncomingMessage{Mentioned: true, HumanMemberCount: 10}) {
		t.Fatal("expected explicit mention to elicit a response")
	}
}

func TestShouldRespondSoleHuman(t *testing.T) {
	if !ShouldRespond(IncomingMessage{HumanMemberCount: 1}) {
		t.Fatal("expected a channel with exactly one human to elicit a response")
	}
}

func TestShouldRespondMultiHumanNoMention(t *testing.T) {
	if ShouldRespond(IncomingMessage{HumanMemberCount: 3}) {
		t.Fatal("expected no response in a multi-human channel without a mention")
	}
}

func TestFormatHistoryPromptWithHistory(t *testing.T) {
	history := []HistoryMessage{
		{Author: "alice", Content: "hi"},
		{Author: "bob", Content: "hello"},
	}
	got := FormatHistoryPrompt(history, "what's up?")
	want := "Recent conversation:\nalice: hi\nbob: hello\n\nCurrent request: what's up?"
	if got != want {
		t.Fatalf("unexpected prompt:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatHistoryPromptFiltersStatusBubbles(t *testing.T) {
	history := []HistoryMessage{
		{Author: "skippy", Content: "_thinking…_"},
		{Author: "alice", Content: "hi"},
	}
	got := FormatHistoryPrompt(history, "current")
	if got != "Recent conversation:\nalice: hi\n\nCurrent request: current" {
		t.Fatalf("expected status bubble filtered out, got %q", got)
	}
}

func TestFormatHistoryPromptEmptyHistory(t *testing.T) {
	got := FormatHistoryPrompt(nil, "hello")
	if got != "hello" {
		t.Fatalf("expected prompt unchanged with no history, got %q", got)
	}
}

func TestFormatHistoryPromptAllStatusBubbles(t *testing.T) {
	history := []HistoryMessage{{Author: "skippy", Content: "_thinking…_"}}
	got := FormatHistoryPrompt(history, "hello")
	if got != "hello" {
		t.Fatalf("expected prompt unchanged when all history is status bubbles, got %q", got)
	}
}
