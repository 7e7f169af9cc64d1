package service

import (
	"sync"
	"time"

	"postpilot/internal/models"
)

// ProgressTracker holds the ephemeral per-post publish progress for UI
// polling. Entries live only for the duration of one orchestration run
// plus a short grace period after the terminal step, so the UI can show
// the final state before it disappears. In-process memory is fine for a
// single-instance deployment.
type ProgressTracker struct {
	mu    sync.RWMutex
	runs  map[string]models.PublishProgress
	grace time.Duration
}

func NewProgressTracker(grace time.Duration) *ProgressTracker {
	return &ProgressTracker{
		runs:  make(map[string]models.PublishProgress),
		grace: grace,
	}
}

func (t *ProgressTracker) Set(postID, step, message string, progress int) {
	t.mu.Lock()
	t.runs[postID] = models.PublishProgress{
		PostID:   postID,
		Step:     step,
		Message:  message,
		Progress: progress,
	}
	t.mu.Unlock()

	if step == models.StepCompleted || step == models.StepFailed {
		time.AfterFunc(t.grace, func() { t.clear(postID, step) })
	}
}

func (t *ProgressTracker) Get(postID string) (models.PublishProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.runs[postID]
	return p, ok
}

// clear only removes the entry if it still shows the terminal step it
// was scheduled for, so a retry that started during the grace period is
// not wiped out.
func (t *ProgressTracker) clear(postID, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.runs[postID]; ok && p.Step == step {
		delete(t.runs, postID)
	}
}
