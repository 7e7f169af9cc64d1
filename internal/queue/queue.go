package queue

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueuePublish schedules one publish attempt for a post. A zero delay
// runs it as soon as a worker is free. TaskID keyed by post id makes
// re-enqueueing while a task is pending a no-op, which backstops the
// state machine's own per-post gate.
func EnqueuePublish(asynqClient *asynq.Client, payload PublishPostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay), asynq.TaskID("publish:"+payload.PostID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			log.Printf("Publish task already pending for post %s", payload.PostID)
			return nil
		}
		return err
	}

	log.Printf("Publish task scheduled: %+v", payload)
	return nil
}
