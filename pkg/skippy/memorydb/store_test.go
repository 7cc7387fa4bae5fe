package memorydb

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetGlobalRoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := json.RawMessage(`{"n":42}`)
	if err := s.SetGlobal("answer", want, "facts", []string{"trivia"}); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	got, err := s.GetGlobal("answer")
	if err != nil {
		t.Fatalf("GetGlobal: %v", err)
	}
	if string(got.Value) != string(want) {
		t.Errorf("value mismatch: got %s want %s", got.Value, want)
	}
	if got.Category != "facts" {
		t.Errorf("category mismatch: got %s", got.Category)
	}
}

func TestChannelMemoryUsesSingleTable(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetChannel("general#1", "topic", json.RawMessage(`"go"`), "", nil); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	if err := s.SetChannel("random!", "topic", json.RawMessage(`"rust"`), "", nil); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	channels, err := s.ListKnownChannels()
	if err != nil {
		t.Fatalf("ListKnownChannels: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 sanitized channels, got %v", channels)
	}
}

func TestTokenizedSearchMatchesUnderscoreVariants(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetGlobal("device", json.RawMessage(`"mega furnace"`), "", nil); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	for _, q := range []string{"mega", "furnace", "mega_furnace", "FURNACE mega"} {
		results, err := s.Search(q, "")
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(results) != 1 {
			t.Errorf("Search(%q): expected 1 result, got %d", q, len(results))
		}
	}
}

func TestSearchEmptyQueryReturnsQueryEmpty(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Search("   ", "")
	if err != ErrQueryEmpty {
		t.Fatalf("expected ErrQueryEmpty, got %v", err)
	}
}

func TestSkillUpdateClearSentinel(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateSkill(SkillRecord{
		Name:         "weather",
		Description:  "tells the weather",
		Instructions: "always use celsius",
		SkillData:    json.RawMessage(`{"city":"nyc"}`),
	}); err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}

	if err := s.UpdateSkill("weather", SkillUpdate{SkillDataMode: SkillDataClear}); err != nil {
		t.Fatalf("UpdateSkill: %v", err)
	}

	got, err := s.GetSkill("weather")
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	if got.Description != "tells the weather" || got.Instructions != "always use celsius" {
		t.Errorf("description/instructions should survive a skill_data clear, got %+v", got)
	}
	if string(got.SkillData) != "{}" {
		t.Errorf("expected cleared skill_data to be {}, got %s", got.SkillData)
	}
}

func TestSkillUpdateDeepMergeThenDelete(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateSkill(SkillRecord{Name: "notes"}); err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}

	first, _ := json.Marshal(map[string]any{"a": map[string]any{"b": 1}})
	if err := s.UpdateSkill("notes", SkillUpdate{SkillData: first, SkillDataMode: SkillDataMerge}); err != nil {
		t.Fatalf("UpdateSkill 1: %v", err)
	}
	second, _ := json.Marshal(map[string]any{"a": map[string]any{"c": 2}})
	if err := s.UpdateSkill("notes", SkillUpdate{SkillData: second, SkillDataMode: SkillDataMerge}); err != nil {
		t.Fatalf("UpdateSkill 2: %v", err)
	}

	got, err := s.GetSkill("notes")
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	var data map[string]any
	json.Unmarshal(got.SkillData, &data)
	a := data["a"].(map[string]any)
	if a["b"] != float64(1) || a["c"] != float64(2) {
		t.Fatalf("expected merged {b:1,c:2}, got %+v", a)
	}

	third, _ := json.Marshal(map[string]any{"a": map[string]any{"b": nil}})
	if err := s.UpdateSkill("notes", SkillUpdate{SkillData: third, SkillDataMode: SkillDataMerge}); err != nil {
		t.Fatalf("UpdateSkill 3: %v", err)
	}
	got, _ = s.GetSkill("notes")
	data = nil
	json.Unmarshal(got.SkillData, &data)
	a = data["a"].(map[string]any)
	if _, has := a["b"]; has {
		t.Errorf("expected b to be deleted, got %+v", a)
	}
	if a["c"] != float64(2) {
		t.Errorf("expected c to survive, got %+v", a)
	}
}

func TestDeepMergeArraysReplace(t *testing.T) {
	base := map[string]any{"tags": []any{"x", "y"}}
	patch := map[string]any{"tags": []any{"z"}}
	merged := DeepMerge(base, patch)
	tags := merged["tags"].([]any)
	if len(tags) != 1 || tags[0] != "z" {
		t.Fatalf("expected array to be replaced wholesale, got %+v", tags)
	}
}
