package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"postpilot/internal/models"
	"postpilot/internal/repository"
)

// LifecycleService owns the post status field. Every transition is a
// guarded repository write; an attempt from a wrong source state leaves
// the row untouched and surfaces a ConflictError.
type LifecycleService interface {
	BeginPublish(ctx context.Context, postID string) (*models.ScheduledPost, error)
	CompletePublish(ctx context.Context, postID, remoteMediaID string) error
	FailPublish(ctx context.Context, postID, message string) error
	Cancel(ctx context.Context, postID string) error
	Reschedule(ctx context.Context, postID, newDate, newTime string) (*models.ScheduledPost, error)
}

type lifecycleService struct {
	pr repository.ScheduledPostRepository
}

func NewLifecycleService(pr repository.ScheduledPostRepository) LifecycleService {
	return &lifecycleService{pr: pr}
}

// BeginPublish moves a scheduled or failed post to publishing and
// increments the attempt counter. It doubles as the mutual exclusion
// gate: of two concurrent calls for the same post exactly one wins.
func (s *lifecycleService) BeginPublish(ctx context.Context, postID string) (*models.ScheduledPost, error) {
	moved, err := s.pr.BeginPublish(ctx, postID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("begin publish for post %s: %w", postID, err)
	}
	if !moved {
		post, err := s.pr.GetByID(ctx, postID)
		if err != nil {
			return nil, err
		}
		if post == nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("post %s does not exist", postID)}
		}
		return nil, &ConflictError{PostID: postID, Reason: fmt.Sprintf("cannot start publishing from status %q", post.Status)}
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *lifecycleService) CompletePublish(ctx context.Context, postID, remoteMediaID string) error {
	moved, err := s.pr.CompletePublish(ctx, postID, remoteMediaID, time.Now())
	if err != nil {
		return fmt.Errorf("complete publish for post %s: %w", postID, err)
	}
	if !moved {
		return &ConflictError{PostID: postID, Reason: "completePublish is only valid while publishing"}
	}
	slog.Info("post published", "post_id", postID, "remote_media_id", remoteMediaID)
	return nil
}

func (s *lifecycleService) FailPublish(ctx context.Context, postID, message string) error {
	moved, err := s.pr.FailPublish(ctx, postID, message, time.Now())
	if err != nil {
		return fmt.Errorf("fail publish for post %s: %w", postID, err)
	}
	if !moved {
		return &ConflictError{PostID: postID, Reason: "failPublish is only valid while publishing"}
	}
	slog.Info("post failed", "post_id", postID, "error", message)
	return nil
}

// Cancel is rejected while publishing: an in-flight attempt always runs
// to a terminal outcome because the remote side may already hold a
// created container.
func (s *lifecycleService) Cancel(ctx context.Context, postID string) error {
	moved, err := s.pr.Cancel(ctx, postID)
	if err != nil {
		return fmt.Errorf("cancel post %s: %w", postID, err)
	}
	if !moved {
		post, err := s.pr.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if post == nil {
			return &ValidationError{Reason: fmt.Sprintf("post %s does not exist", postID)}
		}
		return &ConflictError{PostID: postID, Reason: fmt.Sprintf("cannot cancel from status %q", post.Status)}
	}
	return nil
}

// Reschedule recomputes the authoritative timestamp from the new date
// and time in the post's stored timezone. Only scheduled posts can move.
func (s *lifecycleService) Reschedule(ctx context.Context, postID, newDate, newTime string) (*models.ScheduledPost, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("post %s does not exist", postID)}
	}
	if post.Status != models.PostStatusScheduled {
		return nil, &ConflictError{PostID: postID, Reason: fmt.Sprintf("cannot reschedule from status %q", post.Status)}
	}

	ts, err := ComputeScheduledTimestamp(newDate, newTime, post.Timezone)
	if err != nil {
		return nil, err
	}

	post.ScheduledDate = newDate
	post.ScheduledTime = newTime
	post.ScheduledTimestamp = ts

	if err := s.pr.UpdateContent(ctx, post); err != nil {
		return nil, fmt.Errorf("reschedule post %s: %w", postID, err)
	}
	return post, nil
}
