package toolregistry

import "fmt"

// NormalizeArgs accepts the four argument shapes the registry tolerates
// from an LLM and converts them into the flattened map[string]any shape
// every Tool.Run receives:
//
//  1. positional array:        ["read_file", "/tmp/a.txt"]  -> {"_positional": [...]}
//  2. single wrapping object:  {"filepath": "/tmp/a.txt"}   -> passed through
//  3. [op, object]:            ["read", {"filepath": "..."}] -> {"op": "read", ...object}
//  4. flattened meta-keys on the action itself: the action's Arguments IS
//     already flat — handled by the caller passing action.Arguments directly.
//
// This is the single typed normalization layer, replacing ad-hoc
// per-tool runtime checks.
func NormalizeArgs(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil

	case []any:
		return normalizeArray(v)

	case nil:
		return map[string]any{}, nil

	default:
		return nil, fmt.Errorf("toolregistry: cannot normalize argument shape %T", raw)
	}
}

func normalizeArray(arr []any) (map[string]any, error) {
	if len(arr) == 0 {
		return map[string]any{}, nil
	}

	// Shape 3: [op, object]
	if len(arr) == 2 {
		if op, ok := arr[0].(string); ok {
			if obj, ok := arr[1].(map[string]any); ok {
				out := map[string]any{"op": op}
				for k, v := range obj {
					out[k] = v
				}
				return out, nil
			}
		}
	}

	// Shape 1: fully positional — preserved under a reserved key so a
	// tool's ArgBuilder (or a bespoke Run) can interpret positional
	// order itself.
	return map[string]any{"_positional": arr}, nil
}

// PromoteFlattenedMeta builds an argument map from the raw action object
// itself, for an LLM that flattened argument keys directly onto the
// action instead of nesting them under "arguments": every key other than
// "type"/"tool"/"reasoning"/"arguments" is copied, and the keys of an
// "arguments" object, if one is present, are merged over them. The
// orchestrator calls it in place of NormalizeArgs for an action that has
// no "arguments" key.
func PromoteFlattenedMeta(action map[string]any) map[string]any {
	out := map[string]any{}
	reserved := map[string]bool{"type": true, "tool": true, "reasoning": true, "arguments": true}
	for k, v := range action {
		if reserved[k] {
			continue
		}
		out[k] = v
	}
	if args, ok := action["arguments"].(map[string]any); ok {
		for k, v := range args {
			out[k] = v
		}
	}
	return out
}
