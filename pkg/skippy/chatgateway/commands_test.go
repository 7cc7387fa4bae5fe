package chatgateway

import (
	"reflect"
	"testing"
)

func TestParseCommandSimpleVerbs(t *testing.T) {
	for _, verb := range []string{"stop", "clear"} {
		cmd, ok := ParseCommand(verb)
		if !ok || cmd.Name != verb {
			t.Errorf("ParseCommand(%q) = %+v, ok=%v", verb, cmd, ok)
		}
	}
}

func TestParseCommandModel(t *testing.T) {
	cmd, ok := ParseCommand("model list")
	if !ok || cmd.Name != "model_list" {
		t.Fatalf("unexpected %+v ok=%v", cmd, ok)
	}

	cmd, ok = ParseCommand("model set llama3.2")
	if !ok || cmd.Name != "model_set" || !reflect.DeepEqual(cmd.Args, []string{"llama3.2"}) {
		t.Fatalf("unexpected %+v ok=%v", cmd, ok)
	}

	if _, ok := ParseCommand("model set"); ok {
		t.Fatal("expected model set with no name to be rejected")
	}
	if _, ok := ParseCommand("model frobnicate"); ok {
		t.Fatal("expected unknown model sub-verb to be rejected")
	}
}

func TestParseCommandLoopLimit(t *testing.T) {
	cmd, ok := ParseCommand("loop_limit get")
	if !ok || cmd.Name != "loop_limit_get" {
		t.Fatalf("unexpected %+v ok=%v", cmd, ok)
	}

	cmd, ok = ParseCommand("loop_limit set 40")
	if !ok || cmd.Name != "loop_limit_set" || !reflect.DeepEqual(cmd.Args, []string{"40"}) {
		t.Fatalf("unexpected %+v ok=%v", cmd, ok)
	}
}

func TestParseCommandContext(t *testing.T) {
	cmd, ok := ParseCommand("context add file /tmp/notes with spaces.txt")
	if !ok || cmd.Name != "context_add" {
		t.Fatalf("unexpected %+v ok=%v", cmd, ok)
	}
	if !reflect.DeepEqual(cmd.Args, []string{"file", "/tmp/notes with spaces.txt"}) {
		t.Fatalf("expected path with spaces preserved, got %+v", cmd.Args)
	}

	for _, sub := range []string{"list", "status", "clear"} {
		cmd, ok := ParseCommand("context " + sub)
		if !ok || cmd.Name != "context_"+sub {
			t.Errorf("unexpected %+v ok=%v for sub %q", cmd, ok, sub)
		}
	}

	cmd, ok = ParseCommand("context remove 2")
	if !ok || cmd.Name != "context_remove" || !reflect.DeepEqual(cmd.Args, []string{"2"}) {
		t.Fatalf("unexpected %+v ok=%v", cmd, ok)
	}
}

func TestParseCommandRejectsOrdinaryMessages(t *testing.T) {
	if _, ok := ParseCommand("what's the weather like"); ok {
		t.Fatal("expected an ordinary message not to parse as a command")
	}
	if _, ok := ParseCommand(""); ok {
		t.Fatal("expected empty message not to parse as a command")
	}
}
