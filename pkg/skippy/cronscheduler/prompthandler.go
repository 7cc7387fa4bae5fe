package cronscheduler

import (
	"context"
	"log/slog"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/orchestrator"
)

// noopStatusSink discards status bubbles. A scheduled prompt has no chat
// message to attach progress updates to, so it runs with status streaming
// disabled rather than wired to a channel.
type noopStatusSink struct{}

func (noopStatusSink) Status(string) {}
func (noopStatusSink) Done()         {}

var _ orchestrator.StatusSink = noopStatusSink{}

// OrchestratorPromptHandler builds a PromptHandler that re-enters orc with
// the job's action text as the prompt, grounded on
// pkg/devclaw/copilot/assistant.go's scheduler handler closure, which
// re-enters its agent runner with a delivery-focused prompt and a fresh,
// short-lived run. Unlike the teacher's handler, the result is not itself
// delivered to a channel here: the final answer is only logged, and a job
// wanting its answer in chat has to say so in job.Action.Text so the
// orchestrator's own tool calls route it, since PromptHandler's signature
// has no return value for the scheduler to forward.
func OrchestratorPromptHandler(orc *orchestrator.Orchestrator, defaultModel string, logger *slog.Logger) PromptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cronscheduler.prompthandler")

	return func(ctx context.Context, job *Job) {
		result := orc.Run(ctx, orchestrator.Request{
			Prompt:  job.Action.Text,
			Model:   defaultModel,
			Channel: job.ID,
			Status:  noopStatusSink{},
		})

		if result.Err != nil {
			logger.Error("scheduled prompt failed", "job", job.ID, "error", result.Err)
			return
		}
		if result.Aborted {
			logger.Warn("scheduled prompt aborted", "job", job.ID)
			return
		}
		logger.Info("scheduled prompt completed", "job", job.ID, "answer", result.FinalAnswer)
	}
}
