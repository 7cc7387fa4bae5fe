// Package cronscheduler implements a persistent cron-like scheduler: a
// per-minute tick evaluates one_time/interval/schedule jobs and fires a
// bash command or re-enters the Prompt Orchestrator with a prompt.
//
// Grounded on pkg/devclaw/scheduler/scheduler.go's Job/JobHandler shape
// and persisted-job-storage interface; the per-minute tick itself is
// driven by github.com/robfig/cron/v3 rather than a hand-rolled ticker.
package cronscheduler

import (
	"encoding/json"
	"time"
)

// JobType is one of the three schedule shapes a job can take.
type JobType string

const (
	JobOneTime  JobType = "one_time"
	JobInterval JobType = "interval"
	JobSchedule JobType = "schedule"
)

// ActionKind tags a Job's Action variant.
type ActionKind string

const (
	ActionBash   ActionKind = "bash"
	ActionPrompt ActionKind = "prompt"
)

// Action is the tagged variant {kind: bash, command} | {kind: prompt, text}.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Command string     `json:"command,omitempty"`
	Text    string     `json:"text,omitempty"`
}

// WeeklySchedule is {days: set<0..6>, hour: 0..23, minute: 0..59}, where
// day 0 is Sunday (time.Weekday convention).
type WeeklySchedule struct {
	Days   []int `json:"days"`
	Hour   int   `json:"hour"`
	Minute int   `json:"minute"`
}

func (w WeeklySchedule) hasDay(d time.Weekday) bool {
	for _, x := range w.Days {
		if x == int(d) {
			return true
		}
	}
	return false
}

// Job is the (id, type, action, schedule?, time?, interval_ms?, disabled,
// last_fired, created_at) record persisted by Store.
type Job struct {
	ID         string          `json:"id"`
	Type       JobType         `json:"type"`
	Action     Action          `json:"action"`
	Schedule   *WeeklySchedule `json:"schedule,omitempty"`
	Time       *time.Time      `json:"time,omitempty"`
	IntervalMS int64           `json:"interval_ms,omitempty"`
	Disabled   bool            `json:"disabled"`
	LastFired  *time.Time      `json:"last_fired,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToJSON serializes a job for logging/IPC responses.
func (j *Job) ToJSON() string {
	data, _ := json.Marshal(j)
	return string(data)
}

// Validate enforces the required fields for the job's type.
func (j *Job) Validate() error {
	switch j.Type {
	case JobOneTime:
		if j.Time == nil {
			return errRequiredField("time", j.Type)
		}
	case JobInterval:
		if j.IntervalMS <= 0 {
			return errRequiredField("interval_ms", j.Type)
		}
	case JobSchedule:
		if j.Schedule == nil {
			return errRequiredField("schedule", j.Type)
		}
	default:
		return errUnknownType(j.Type)
	}
	if j.Action.Kind != ActionBash && j.Action.Kind != ActionPrompt {
		return errUnknownAction(j.Action.Kind)
	}
	if j.Action.Kind == ActionBash && j.Action.Command == "" {
		return errRequiredField("action.command", j.Type)
	}
	if j.Action.Kind == ActionPrompt && j.Action.Text == "" {
		return errRequiredField("action.text", j.Type)
	}
	return nil
}
