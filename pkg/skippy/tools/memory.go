package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/memorydb"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// MemoryTool exposes the memory store's scoped operations to the LLM.
// Dispatch is by an "op" argument (set_global, get_global, search,
// update_skill, ...) since the store itself exposes many operations
// behind one tool name, matching the registry's four accepted argument
// shapes (an ["op", {...}] array normalizes to {"op": "...", ...} by
// toolregistry.NormalizeArgs).
type MemoryTool struct {
	Store   *memorydb.Store
	Channel string // not set by NewMemoryTool nor read by Run; channel ops take "channel" from their arguments
}

func NewMemoryTool(store *memorydb.Store) *MemoryTool {
	return &MemoryTool{Store: store}
}

func (t *MemoryTool) Name() string { return "memory" }
func (t *MemoryTool) Init() error  { return nil }

func (t *MemoryTool) Run(_ context.Context, args map[string]any) toolregistry.Result {
	op, _ := args["op"].(string)
	switch op {
	case "set_global":
		return t.setGlobal(args)
	case "get_global":
		return t.getGlobal(args)
	case "delete_global":
		key, _ := args["key"].(string)
		if err := t.Store.DeleteGlobal(key); err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(map[string]any{"deleted": key})
	case "set_channel":
		return t.setChannel(args)
	case "get_channel":
		channel, _ := args["channel"].(string)
		key, _ := args["key"].(string)
		rec, err := t.Store.GetChannel(channel, key)
		if err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(rec)
	case "purge_channel":
		channel, _ := args["channel"].(string)
		if err := t.Store.PurgeChannel(channel); err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(map[string]any{"purged": channel})
	case "search":
		query, _ := args["query"].(string)
		channel, _ := args["channel"].(string)
		results, err := t.Store.Search(query, channel)
		if err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(results)
	case "create_skill":
		return t.createSkill(args)
	case "update_skill":
		return t.updateSkill(args)
	case "get_skill":
		name, _ := args["name"].(string)
		rec, err := t.Store.GetSkill(name)
		if err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(rec)
	case "delete_skill":
		name, _ := args["name"].(string)
		if err := t.Store.DeleteSkill(name); err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(map[string]any{"deleted": name})
	case "list_skills":
		user, _ := args["user"].(string)
		skills, err := t.Store.ListSkills(user)
		if err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(skills)
	default:
		return toolregistry.Failf("memory: unknown op %q", op)
	}
}

func (t *MemoryTool) setGlobal(args map[string]any) toolregistry.Result {
	key, _ := args["key"].(string)
	if key == "" {
		return toolregistry.Failf("memory.set_global: missing required argument 'key'")
	}
	category, _ := args["category"].(string)
	tags := stringSlice(args["tags"])
	value, err := json.Marshal(args["value"])
	if err != nil {
		return toolregistry.Fail(fmt.Errorf("encoding value: %w", err))
	}
	if err := t.Store.SetGlobal(key, value, category, tags); err != nil {
		return toolregistry.Fail(err)
	}
	return toolregistry.OK(map[string]any{"key": key})
}

func (t *MemoryTool) getGlobal(args map[string]any) toolregistry.Result {
	key, _ := args["key"].(string)
	rec, err := t.Store.GetGlobal(key)
	if err != nil {
		return toolregistry.Fail(err)
	}
	return toolregistry.OK(rec)
}

func (t *MemoryTool) setChannel(args map[string]any) toolregistry.Result {
	channel, _ := args["channel"].(string)
	key, _ := args["key"].(string)
	if channel == "" || key == "" {
		return toolregistry.Failf("memory.set_channel: missing required argument 'channel' or 'key'")
	}
	category, _ := args["category"].(string)
	tags := stringSlice(args["tags"])
	value, err := json.Marshal(args["value"])
	if err != nil {
		return toolregistry.Fail(fmt.Errorf("encoding value: %w", err))
	}
	if err := t.Store.SetChannel(channel, key, value, category, tags); err != nil {
		return toolregistry.Fail(err)
	}
	return toolregistry.OK(map[string]any{"channel": channel, "key": key})
}

func (t *MemoryTool) createSkill(args map[string]any) toolregistry.Result {
	name, _ := args["name"].(string)
	if name == "" {
		return toolregistry.Failf("memory.create_skill: missing required argument 'name'")
	}
	rec := memorydb.SkillRecord{
		Name:         name,
		Description:  stringArg(args, "description"),
		Instructions: stringArg(args, "instructions"),
		Owner:        stringArg(args, "owner"),
	}
	if err := t.Store.CreateSkill(rec); err != nil {
		return toolregistry.Fail(err)
	}
	return toolregistry.OK(map[string]any{"name": name})
}

func (t *MemoryTool) updateSkill(args map[string]any) toolregistry.Result {
	name, _ := args["name"].(string)
	if name == "" {
		return toolregistry.Failf("memory.update_skill: missing required argument 'name'")
	}
	update, err := memorydb.ParseSkillUpdate(args)
	if err != nil {
		return toolregistry.Fail(err)
	}
	if err := t.Store.UpdateSkill(name, update); err != nil {
		return toolregistry.Fail(err)
	}
	return toolregistry.OK(map[string]any{"name": name})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func stringSlice(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (t *MemoryTool) Context() string {
	return `run(op: string, ...) -> varies by op.
Ops: set_global{key,value,category?,tags?}, get_global{key}, delete_global{key},
set_channel{channel,key,value,category?,tags?}, get_channel{channel,key}, purge_channel{channel},
search{query,channel?}, create_skill{name,description?,instructions?,owner?},
update_skill{name,description?,instructions?,skill_data?}, get_skill{name}, delete_skill{name},
list_skills{user}.
update_skill deep-merges skill_data; {skill_data:null} clears it entirely.`
}
