package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"postpilot/internal/models"
)

func TestBeginPublishFromScheduled(t *testing.T) {
	repo := newFakePostRepo()
	repo.put(testPost("p1"))
	lc := NewLifecycleService(repo)

	post, err := lc.BeginPublish(context.Background(), "p1")
	if err != nil {
		t.Fatalf("BeginPublish: %v", err)
	}
	if post.Status != models.PostStatusPublishing {
		t.Fatalf("expected publishing, got %s", post.Status)
	}
	if post.PublishAttempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", post.PublishAttempts)
	}
}

func TestBeginPublishConcurrentSingleWinner(t *testing.T) {
	repo := newFakePostRepo()
	repo.put(testPost("p1"))
	lc := NewLifecycleService(repo)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lc.BeginPublish(context.Background(), "p1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			conflicts++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
	if conflicts != callers-1 {
		t.Fatalf("expected %d conflicts, got %d", callers-1, conflicts)
	}

	post, _ := repo.GetByID(context.Background(), "p1")
	if post.PublishAttempts != 1 {
		t.Fatalf("expected 1 attempt recorded, got %d", post.PublishAttempts)
	}
}

func TestBeginPublishFromTerminalStates(t *testing.T) {
	for _, status := range []string{models.PostStatusPublished, models.PostStatusCancelled, models.PostStatusPublishing} {
		repo := newFakePostRepo()
		p := testPost("p1")
		p.Status = status
		repo.put(p)
		lc := NewLifecycleService(repo)

		_, err := lc.BeginPublish(context.Background(), "p1")
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("status %s: expected ConflictError, got %v", status, err)
		}

		after, _ := repo.GetByID(context.Background(), "p1")
		if after.Status != status {
			t.Fatalf("status %s: status mutated to %s", status, after.Status)
		}
	}
}

func TestBeginPublishRetryFromFailed(t *testing.T) {
	repo := newFakePostRepo()
	p := testPost("p1")
	p.Status = models.PostStatusFailed
	p.PublishAttempts = 1
	p.ErrorMessage = "previous failure"
	repo.put(p)
	lc := NewLifecycleService(repo)

	post, err := lc.BeginPublish(context.Background(), "p1")
	if err != nil {
		t.Fatalf("BeginPublish: %v", err)
	}
	if post.Status != models.PostStatusPublishing {
		t.Fatalf("expected publishing, got %s", post.Status)
	}
	if post.PublishAttempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", post.PublishAttempts)
	}
}

func TestCompletePublishInvariants(t *testing.T) {
	repo := newFakePostRepo()
	repo.put(testPost("p1"))
	lc := NewLifecycleService(repo)
	ctx := context.Background()

	if _, err := lc.BeginPublish(ctx, "p1"); err != nil {
		t.Fatalf("BeginPublish: %v", err)
	}
	if err := lc.CompletePublish(ctx, "p1", "ig_media_42"); err != nil {
		t.Fatalf("CompletePublish: %v", err)
	}

	post, _ := repo.GetByID(ctx, "p1")
	if post.Status != models.PostStatusPublished {
		t.Fatalf("expected published, got %s", post.Status)
	}
	if post.PublishedAt == 0 || post.RemoteMediaID != "ig_media_42" {
		t.Fatalf("published post must carry publishedAt and remote media id: %+v", post)
	}
	if post.ErrorMessage != "" {
		t.Fatalf("published post must not carry an error message")
	}

	// published is terminal
	if err := lc.CompletePublish(ctx, "p1", "other"); err == nil {
		t.Fatal("expected conflict completing an already published post")
	}
}

func TestFailPublishInvariants(t *testing.T) {
	repo := newFakePostRepo()
	repo.put(testPost("p1"))
	lc := NewLifecycleService(repo)
	ctx := context.Background()

	if err := lc.FailPublish(ctx, "p1", "boom"); err == nil {
		t.Fatal("expected conflict failing a post that is not publishing")
	}

	if _, err := lc.BeginPublish(ctx, "p1"); err != nil {
		t.Fatalf("BeginPublish: %v", err)
	}
	if err := lc.FailPublish(ctx, "p1", "upload failed"); err != nil {
		t.Fatalf("FailPublish: %v", err)
	}

	post, _ := repo.GetByID(ctx, "p1")
	if post.Status != models.PostStatusFailed {
		t.Fatalf("expected failed, got %s", post.Status)
	}
	if post.ErrorMessage != "upload failed" {
		t.Fatalf("expected error message, got %q", post.ErrorMessage)
	}
	if post.PublishedAt != 0 || post.RemoteMediaID != "" {
		t.Fatal("failed post must not carry publish bookkeeping")
	}
}

func TestCancelWhilePublishingRejected(t *testing.T) {
	repo := newFakePostRepo()
	repo.put(testPost("p1"))
	lc := NewLifecycleService(repo)
	ctx := context.Background()

	if _, err := lc.BeginPublish(ctx, "p1"); err != nil {
		t.Fatalf("BeginPublish: %v", err)
	}

	err := lc.Cancel(ctx, "p1")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	post, _ := repo.GetByID(ctx, "p1")
	if post.Status != models.PostStatusPublishing {
		t.Fatalf("cancel must not change status, got %s", post.Status)
	}
}

func TestCancelFromScheduledAndFailed(t *testing.T) {
	for _, status := range []string{models.PostStatusScheduled, models.PostStatusFailed} {
		repo := newFakePostRepo()
		p := testPost("p1")
		p.Status = status
		repo.put(p)
		lc := NewLifecycleService(repo)

		if err := lc.Cancel(context.Background(), "p1"); err != nil {
			t.Fatalf("status %s: Cancel: %v", status, err)
		}
		post, _ := repo.GetByID(context.Background(), "p1")
		if post.Status != models.PostStatusCancelled {
			t.Fatalf("expected cancelled, got %s", post.Status)
		}
	}
}

func TestRescheduleRecomputesTimestamp(t *testing.T) {
	repo := newFakePostRepo()
	p := testPost("p1")
	p.Timezone = "Europe/Berlin"
	repo.put(p)
	lc := NewLifecycleService(repo)

	post, err := lc.Reschedule(context.Background(), "p1", "2026-12-24", "18:45")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}

	want, err := ComputeScheduledTimestamp("2026-12-24", "18:45", "Europe/Berlin")
	if err != nil {
		t.Fatalf("ComputeScheduledTimestamp: %v", err)
	}
	if post.ScheduledTimestamp != want {
		t.Fatalf("expected %d, got %d", want, post.ScheduledTimestamp)
	}

	stored, _ := repo.GetByID(context.Background(), "p1")
	if stored.ScheduledTimestamp != want {
		t.Fatalf("timestamp not persisted: %d", stored.ScheduledTimestamp)
	}
}

func TestRescheduleOnlyFromScheduled(t *testing.T) {
	repo := newFakePostRepo()
	p := testPost("p1")
	p.Status = models.PostStatusFailed
	repo.put(p)
	lc := NewLifecycleService(repo)

	_, err := lc.Reschedule(context.Background(), "p1", "2026-12-24", "18:45")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}
