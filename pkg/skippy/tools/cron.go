package tools

import (
	"context"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/cronscheduler"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// CronTool exposes schedule management to the LLM: add/remove/list jobs.
// Input normalization ("delay" -> "time", "message" -> "action.prompt")
// happens here at the tool boundary.
type CronTool struct {
	Scheduler *cronscheduler.Scheduler
}

func NewCronTool(s *cronscheduler.Scheduler) *CronTool {
	return &CronTool{Scheduler: s}
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Init() error  { return nil }

func (t *CronTool) Run(_ context.Context, args map[string]any) toolregistry.Result {
	op, _ := args["op"].(string)
	switch op {
	case "add":
		return t.add(args)
	case "remove":
		id, _ := args["id"].(string)
		if err := t.Scheduler.Remove(id); err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(map[string]any{"removed": id})
	case "list":
		jobs, err := t.Scheduler.List()
		if err != nil {
			return toolregistry.Fail(err)
		}
		return toolregistry.OK(jobs)
	default:
		return toolregistry.Failf("cron: unknown op %q", op)
	}
}

func (t *CronTool) add(args map[string]any) toolregistry.Result {
	job := &cronscheduler.Job{
		Type: cronscheduler.JobType(stringArg(args, "type")),
	}

	// "message" is promoted to action.prompt.
	if msg, ok := args["message"].(string); ok && msg != "" {
		job.Action = cronscheduler.Action{Kind: cronscheduler.ActionPrompt, Text: msg}
	} else if command, ok := args["command"].(string); ok && command != "" {
		job.Action = cronscheduler.Action{Kind: cronscheduler.ActionBash, Command: command}
	} else if actionMap, ok := args["action"].(map[string]any); ok {
		job.Action = cronscheduler.Action{
			Kind:    cronscheduler.ActionKind(stringArg(actionMap, "kind")),
			Command: stringArg(actionMap, "command"),
			Text:    stringArg(actionMap, "text"),
		}
	}

	// "delay" (seconds) is converted to a future absolute time.
	if delay, ok := args["delay"].(float64); ok {
		tm := cronscheduler.NormalizeOneTimeDelay(delay)
		job.Time = &tm
		if job.Type == "" {
			job.Type = cronscheduler.JobOneTime
		}
	}

	if intervalMS, ok := args["interval_ms"].(float64); ok {
		job.IntervalMS = int64(intervalMS)
	}

	if schedule, ok := args["schedule"].(map[string]any); ok {
		ws := &cronscheduler.WeeklySchedule{
			Hour:   intArg(schedule, "hour"),
			Minute: intArg(schedule, "minute"),
		}
		if days, ok := schedule["days"].([]any); ok {
			for _, d := range days {
				if f, ok := d.(float64); ok {
					ws.Days = append(ws.Days, int(f))
				}
			}
		}
		job.Schedule = ws
	}

	if err := t.Scheduler.Add(job); err != nil {
		return toolregistry.Fail(err)
	}
	return toolregistry.OK(map[string]any{"id": job.ID})
}

func intArg(args map[string]any, key string) int {
	f, _ := args[key].(float64)
	return int(f)
}

func (t *CronTool) Context() string {
	return `run(op: string, ...) -> varies.
Ops: add{type: one_time|interval|schedule, command?|message?|action?, delay?, interval_ms?, schedule?{days,hour,minute}},
remove{id}, list{}.
"delay" (seconds) becomes a one_time job's absolute fire time; "message" becomes a prompt action.`
}
