package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandlePublishPostTask runs one orchestration attempt. The result is
// always terminal and persisted by the orchestrator, so the task never
// needs asynq-level retries; a returned error would only re-run an
// attempt the state machine will reject anyway.
func (j *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	result := j.ps.PublishPost(ctx, payload.PostID)
	if !result.Success {
		slog.Info("publish attempt finished with error", "post_id", payload.PostID, "error", result.ErrorMessage)
	}

	return nil
}
