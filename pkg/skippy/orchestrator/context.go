package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/memorydb"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

const systemRulesBlock = `You are Skippy, a personal-assistant daemon. Respond with exactly one
JSON object of shape:
{ "reasoning": str, "actions": [Action], "final_answer": str, "continue": bool }
Action = { "type": "tool_call", "tool": str, "arguments": object, "reasoning": str }

For any tool argument carrying a multi-line code or text payload (file
writers, file patchers), omit that payload from the JSON and instead
follow the closing JSON brace with one or more delimited blocks:

===SKIPPY_FILE_START:<path>===
<verbatim file content>
===SKIPPY_FILE_END===

===SKIPPY_PATCH_START:<path>===
===FIND===
<verbatim text to find>
===REPLACE===
<verbatim replacement>
===SKIPPY_PATCH_END===

Set "continue" to false only once "final_answer" is your complete reply
and no further actions are needed this turn.`

// ContextAssembler builds the single-pass system context string described
// by the component design: system rules, clock, identity, condensed tool
// context, known channels, memory, skills, working directory, and
// persistent context files.
type ContextAssembler struct {
	Registry         *toolregistry.Registry
	Summarizer       toolregistry.Summarizer
	Memory           *memorydb.Store
	MemoryCategories []string
	WorkDir          string
	ContextItems     *ContextItemStore
}

// Assemble runs the nine-step context-assembly pass and returns the
// rendered system block plus every image ContextItem's path, so the
// caller can base64-attach them alongside any request-supplied images.
func (a *ContextAssembler) Assemble(ctx context.Context, channel, user string) (string, []string, error) {
	var sb strings.Builder

	sb.WriteString(systemRulesBlock)
	sb.WriteString("\n\n")

	now := time.Now()
	fmt.Fprintf(&sb, "Current time: %s (%s)\n", now.Format(time.RFC1123), now.Location().String())

	if user != "" {
		fmt.Fprintf(&sb, "Current user: %s\n", user)
	}
	if channel != "" {
		fmt.Fprintf(&sb, "Current channel: %s\n", channel)
	}
	sb.WriteString("\n")

	toolCtx, err := a.Registry.CondensedContext(ctx, a.Summarizer)
	if err != nil {
		toolCtx = a.Registry.CompileCapabilities()
	}
	sb.WriteString("## Tools\n")
	sb.WriteString(toolCtx)
	sb.WriteString("\n")

	if a.Memory != nil {
		if channels, err := a.Memory.ListKnownChannels(); err == nil && len(channels) > 0 {
			sb.WriteString("## Known channels\n")
			sb.WriteString(strings.Join(channels, ", "))
			sb.WriteString("\n\n")
		}

		if len(a.MemoryCategories) > 0 {
			memByCat, err := a.Memory.GetContextMemories(a.MemoryCategories)
			if err == nil {
				for _, cat := range a.MemoryCategories {
					entries := memByCat[cat]
					if len(entries) == 0 {
						continue
					}
					fmt.Fprintf(&sb, "## Memory: %s\n", cat)
					for _, e := range entries {
						fmt.Fprintf(&sb, "%s: %s\n", e.Key, e.Value)
					}
					sb.WriteString("\n")
				}
			}
		}

		if skills, err := a.Memory.GetContextSkills(user); err == nil && len(skills) > 0 {
			sb.WriteString("## Skills\n")
			for _, s := range skills {
				fmt.Fprintf(&sb, "%s [%s]: %s\n", s.Name, s.Owner, s.Description)
				if s.Instructions != "" {
					fmt.Fprintf(&sb, "Instructions: %s\n", s.Instructions)
				}
			}
			sb.WriteString("\n")
		}
	}

	if a.WorkDir != "" {
		sb.WriteString("## Working directory\n")
		sb.WriteString(a.WorkDir)
		sb.WriteString("\n")
		if entries, err := os.ReadDir(a.WorkDir); err == nil {
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			sort.Strings(names)
			sb.WriteString(strings.Join(names, ", "))
			sb.WriteString("\n\n")
		}
	}

	var imagePaths []string
	if a.ContextItems != nil {
		items, err := a.ContextItems.List()
		if err == nil {
			for _, item := range items {
				switch item.Kind {
				case "file":
					content, err := os.ReadFile(item.Path)
					if err != nil {
						fmt.Fprintf(&sb, "<file path=%q error=%q></file>\n", item.Path, err.Error())
						continue
					}
					fmt.Fprintf(&sb, "<file path=%q>%s</file>\n", item.Path, string(content))
				case "image":
					imagePaths = append(imagePaths, item.Path)
				}
			}
		}
	}

	return sb.String(), imagePaths, nil
}

// WorkDirListing returns the full paths of dir's first-level entries,
// sorted and newline-joined. Nothing in this module calls it; Assemble
// builds its own comma-joined listing of bare entry names.
func WorkDirListing(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Join(dir, e.Name()))
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}
