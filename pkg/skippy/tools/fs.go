package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// FileReadTool reads a file fresh on every call; it never caches
// content across invocations.
type FileReadTool struct{}

func NewFileReadTool() *FileReadTool { return &FileReadTool{} }

func (t *FileReadTool) Name() string { return "FileReadTool" }
func (t *FileReadTool) Init() error  { return nil }

func (t *FileReadTool) Run(_ context.Context, args map[string]any) toolregistry.Result {
	path, _ := args["filepath"].(string)
	if path == "" {
		return toolregistry.Failf("FileReadTool: missing required argument 'filepath'")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return toolregistry.Fail(fmt.Errorf("reading %s: %w", path, err))
	}
	return toolregistry.OK(string(data))
}

func (t *FileReadTool) Context() string {
	return "run(filepath: string) -> file contents as text. Reads the file fresh on every call."
}

// FileWriteTool writes a file's full content. The orchestrator injects
// an out-of-band SKIPPY_FILE block's content into args["content"] before
// dispatch when the action omits it, so this tool never needs to know
// about the block grammar itself.
type FileWriteTool struct{}

func NewFileWriteTool() *FileWriteTool { return &FileWriteTool{} }

func (t *FileWriteTool) Name() string { return "FileWriteTool" }
func (t *FileWriteTool) Init() error  { return nil }

func (t *FileWriteTool) Run(_ context.Context, args map[string]any) toolregistry.Result {
	path, _ := args["filepath"].(string)
	if path == "" {
		return toolregistry.Failf("FileWriteTool: missing required argument 'filepath'")
	}
	content, _ := args["content"].(string)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return toolregistry.Fail(fmt.Errorf("writing %s: %w", path, err))
	}
	return toolregistry.OK(map[string]any{"filepath": path, "bytes_written": len(content)})
}

func (t *FileWriteTool) Context() string {
	return "run(filepath: string, content: string) -> {filepath, bytes_written}. " +
		"Writes content verbatim to filepath, overwriting it. content normally arrives " +
		"via an out-of-band SKIPPY_FILE block rather than the JSON argument itself."
}

// PatchChange is one find/replace pair from a SKIPPY_PATCH block.
type PatchChange struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// PatchFile applies an ordered list of find/replace pairs to a file,
// failing the whole patch with "find text not found" when a find text
// is not present in the current file content.
type PatchFile struct{}

func NewPatchFileTool() *PatchFile { return &PatchFile{} }

func (t *PatchFile) Name() string { return "PatchFile" }
func (t *PatchFile) Init() error  { return nil }

func (t *PatchFile) Run(_ context.Context, args map[string]any) toolregistry.Result {
	path, _ := args["filepath"].(string)
	if path == "" {
		return toolregistry.Failf("PatchFile: missing required argument 'filepath'")
	}

	changes, err := extractChanges(args["changes"])
	if err != nil {
		return toolregistry.Fail(err)
	}
	if len(changes) == 0 {
		return toolregistry.Failf("PatchFile: no changes supplied")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return toolregistry.Fail(fmt.Errorf("reading %s: %w", path, err))
	}
	content := string(data)

	applied := 0
	for _, c := range changes {
		if !strings.Contains(content, c.Find) {
			return toolregistry.Failf("find text not found")
		}
		content = strings.Replace(content, c.Find, c.Replace, 1)
		applied++
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return toolregistry.Fail(fmt.Errorf("writing %s: %w", path, err))
	}
	return toolregistry.OK(map[string]any{"filepath": path, "changes_applied": applied})
}

func (t *PatchFile) Context() string {
	return "run(filepath: string, changes: [{find, replace}]) -> {filepath, changes_applied}. " +
		"Applies find/replace pairs in order; fails the whole patch with 'find text not found' " +
		"if any find text is absent from the file's current content. changes normally arrives " +
		"via an out-of-band SKIPPY_PATCH block."
}

func extractChanges(raw any) ([]PatchChange, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("PatchFile: 'changes' must be an array")
	}
	out := make([]PatchChange, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("PatchFile: each change must be an object")
		}
		find, _ := m["find"].(string)
		replace, _ := m["replace"].(string)
		out = append(out, PatchChange{Find: find, Replace: replace})
	}
	return out, nil
}
