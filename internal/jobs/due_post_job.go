package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	config "postpilot/configs"
	"postpilot/internal/models"
	"postpilot/internal/queue"
	"postpilot/internal/repository"
	"postpilot/internal/service"
	"postpilot/internal/transfer"
)

// DuePostJob is the due-post detector. Each tick it scans every post
// still in scheduled status, classifies it against the due window and
// keeps a level-triggered snapshot of the actionable (due + overdue)
// set. It never publishes on its own; submission to the orchestrator is
// an explicit user action.
type DuePostJob struct {
	cfg         config.Config
	pr          repository.ScheduledPostRepository
	asynqClient *asynq.Client

	mu          sync.RWMutex
	latest      transfer.DueNotification
	actionable  []*models.ScheduledPost
	subscribers []func(transfer.DueNotification)

	now func() time.Time
}

func NewDuePostJob(cfg config.Config, pr repository.ScheduledPostRepository, asynqClient *asynq.Client) *DuePostJob {
	return &DuePostJob{
		cfg:         cfg,
		pr:          pr,
		asynqClient: asynqClient,
		now:         time.Now,
	}
}

// OnDueNotification registers a callback fired on every tick whose
// actionable set is non-empty. Re-notifying an unchanged set on the
// next tick is fine; consumers treat it as level-triggered.
func (j *DuePostJob) OnDueNotification(cb func(transfer.DueNotification)) {
	j.mu.Lock()
	j.subscribers = append(j.subscribers, cb)
	j.mu.Unlock()
}

// RunTick is the cron entry point. A read failure is logged and simply
// retried on the next tick; the detector never propagates errors.
func (j *DuePostJob) RunTick() {
	ctx := context.Background()

	posts, err := j.pr.ListByStatus(ctx, models.PostStatusScheduled)
	if err != nil {
		slog.Info("due detector: failed to list scheduled posts", "error", err.Error())
		return
	}

	now := j.now()
	var actionable []*models.ScheduledPost
	hasOverdue := false

	for _, post := range posts {
		switch service.ClassifyDue(post.ScheduledTimestamp, now, j.cfg.Scheduler.DueWindow) {
		case service.DueOverdue:
			hasOverdue = true
			actionable = append(actionable, post)
		case service.DueDue:
			actionable = append(actionable, post)
		}
	}

	notification := transfer.DueNotification{
		Count:      len(actionable),
		HasOverdue: hasOverdue,
	}
	for _, post := range actionable {
		notification.PostIDs = append(notification.PostIDs, post.ID)
	}

	j.mu.Lock()
	j.latest = notification
	j.actionable = actionable
	subscribers := j.subscribers
	j.mu.Unlock()

	if notification.Count == 0 {
		return
	}

	slog.Info("due posts detected", "count", notification.Count, "has_overdue", notification.HasOverdue)
	for _, cb := range subscribers {
		cb(notification)
	}
}

// Latest returns the snapshot from the most recent tick.
func (j *DuePostJob) Latest() transfer.DueNotification {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.latest
}

// PublishAllDue submits the user's actionable Instagram posts to the
// orchestrator, one by one, spaced by the submission delay to avoid
// bursting the remote quota. Ordering follows classification order.
func (j *DuePostJob) PublishAllDue(userID int64) (int, error) {
	j.mu.RLock()
	actionable := make([]*models.ScheduledPost, len(j.actionable))
	copy(actionable, j.actionable)
	j.mu.RUnlock()

	submitted := 0
	for _, post := range actionable {
		if post.UserID != userID || !post.TargetsInstagram() {
			continue
		}

		delay := time.Duration(submitted) * j.cfg.Scheduler.SubmissionDelay
		if err := queue.EnqueuePublish(j.asynqClient, queue.PublishPostPayload{PostID: post.ID}, delay); err != nil {
			return submitted, err
		}
		submitted++
	}

	return submitted, nil
}
