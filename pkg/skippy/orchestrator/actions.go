package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// injectBlockPayload fills args["content"] (file tools) or
// args["changes"] (patch tools) from the out-of-band blocks matching the
// action's "filepath" argument, so tool implementations never need to
// know about the SKIPPY_FILE/SKIPPY_PATCH grammar themselves.
func injectBlockPayload(args map[string]any, tool string, files []FileBlock, patches []PatchBlock) {
	path, _ := args["filepath"].(string)
	if path == "" {
		return
	}

	for _, f := range files {
		if f.Path == path {
			if _, has := args["content"]; !has {
				args["content"] = f.Content
			}
			return
		}
	}

	for _, p := range patches {
		if p.Path == path {
			if _, has := args["changes"]; !has {
				changes := make([]any, 0, len(p.Changes))
				for _, c := range p.Changes {
					changes = append(changes, map[string]any{"find": c.Find, "replace": c.Replace})
				}
				args["changes"] = changes
			}
			return
		}
	}
}

// renderToolResults formats a turn's tool results as the user-role
// message appended to the conversation before the next LLM call.
func renderToolResults(results []ToolResult) string {
	var sb strings.Builder
	sb.WriteString("Tool results:\n")
	for _, r := range results {
		data, err := json.Marshal(r.Result)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", r.Result))
		}
		fmt.Fprintf(&sb, "- %s: %s\n", r.Tool, string(data))
	}
	return sb.String()
}
