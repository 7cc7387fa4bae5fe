package orchestrator

import "github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"

// normalizeResponse applies the shape-tolerance rules: a bare array of
// actions is wrapped, a single flat {tool, arguments} object is wrapped
// as a one-action response, actions missing "type" default to
// "tool_call", flattened meta-level keys on an action are promoted under
// arguments, and a response with actions but continue=false and an empty
// final_answer is forced to continue=true so the model isn't stuck
// reporting work it hasn't actually finished.
func normalizeResponse(raw any) (Response, error) {
	obj, hasActionsField, hasFinalAnswerField, hasContinueField := asResponseObject(raw)

	actionsRaw, _ := obj["actions"].([]any)
	actions := normalizeActions(actionsRaw)

	finalAnswer, _ := obj["final_answer"].(string)
	reasoning, _ := obj["reasoning"].(string)
	cont, _ := obj["continue"].(bool)

	if !hasActionsField && !hasFinalAnswerField && !hasContinueField {
		return Response{}, errInvalidResponse
	}

	if len(actions) > 0 && !cont && finalAnswer == "" {
		cont = true
	}

	return Response{
		Reasoning:   reasoning,
		Actions:     actions,
		FinalAnswer: finalAnswer,
		Continue:    cont,
	}, nil
}

// asResponseObject normalizes the top-level decoded JSON value into a
// {actions, final_answer, continue, reasoning} shaped map, reporting
// which of the three load-bearing keys were present in the ORIGINAL
// input (before wrapping), since that distinction is what determines
// whether the response is structurally invalid.
func asResponseObject(raw any) (obj map[string]any, hasActions, hasFinalAnswer, hasContinue bool) {
	switch v := raw.(type) {
	case []any:
		// A bare JSON array is the actions list itself.
		return map[string]any{"actions": v}, true, false, false

	case map[string]any:
		_, hasActions = v["actions"]
		_, hasFinalAnswer = v["final_answer"]
		_, hasContinue = v["continue"]

		if !hasActions {
			if _, ok := v["tool"]; ok {
				// Single flat {tool, arguments, reasoning} object.
				wrapped := map[string]any{"actions": []any{v}}
				if fa, ok := v["final_answer"]; ok {
					wrapped["final_answer"] = fa
				}
				if c, ok := v["continue"]; ok {
					wrapped["continue"] = c
				}
				return wrapped, true, hasFinalAnswer, hasContinue
			}
		}
		return v, hasActions, hasFinalAnswer, hasContinue

	default:
		return map[string]any{}, false, false, false
	}
}

func normalizeActions(raw []any) []Action {
	actions := make([]Action, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}

		typ, _ := m["type"].(string)
		if typ == "" {
			typ = "tool_call"
		}
		tool, _ := m["tool"].(string)
		reasoning, _ := m["reasoning"].(string)

		var args map[string]any
		if a, hasArgs := m["arguments"]; hasArgs {
			// toolregistry.NormalizeArgs handles the single-object shape
			// (pass-through) and the positional-array / [op, object]
			// shapes; it only errors on a shape neither tolerates, in
			// which case we fall back to an empty argument set rather
			// than drop the action entirely.
			normalized, err := toolregistry.NormalizeArgs(a)
			if err != nil {
				normalized = map[string]any{}
			}
			args = normalized
		} else {
			args = toolregistry.PromoteFlattenedMeta(m)
		}

		actions = append(actions, Action{Type: typ, Tool: tool, Arguments: args, Reasoning: reasoning})
	}
	return actions
}
