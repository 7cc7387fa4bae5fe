package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileWriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.py")
	write := NewFileWriteTool()
	res := write.Run(context.Background(), map[string]any{
		"filepath": path,
		"content":  "def f():\n  return 1\n",
	})
	if !res.Success {
		t.Fatalf("write failed: %s", res.Error)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "def f():\n  return 1\n" {
		t.Errorf("unexpected content: %q", data)
	}

	read := NewFileReadTool()
	res = read.Run(context.Background(), map[string]any{"filepath": path})
	if !res.Success || res.Output != "def f():\n  return 1\n" {
		t.Errorf("read mismatch: %+v", res)
	}
}

func TestPatchFileFindTextNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	os.WriteFile(path, []byte("hello world"), 0o644)

	patch := NewPatchFileTool()
	res := patch.Run(context.Background(), map[string]any{
		"filepath": path,
		"changes": []any{
			map[string]any{"find": "nope", "replace": "x"},
		},
	})
	if res.Success {
		t.Fatal("expected failure for missing find text")
	}
	if res.Error != "find text not found" {
		t.Errorf("unexpected error message: %q", res.Error)
	}
}

func TestPatchFileAppliesSequentialChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	os.WriteFile(path, []byte("hello world"), 0o644)

	patch := NewPatchFileTool()
	res := patch.Run(context.Background(), map[string]any{
		"filepath": path,
		"changes": []any{
			map[string]any{"find": "hello", "replace": "goodbye"},
			map[string]any{"find": "goodbye", "replace": "farewell"},
		},
	})
	if !res.Success {
		t.Fatalf("patch failed: %s", res.Error)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "farewell world" {
		t.Errorf("unexpected content: %q", data)
	}
}
