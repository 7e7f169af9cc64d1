package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	config "postpilot/configs"
	"postpilot/internal/models"
	"postpilot/internal/repository"
	"postpilot/internal/transfer"
)

type PostService interface {
	Schedule(ctx context.Context, userID, orgID int64, pc *transfer.PostCreation) (*models.ScheduledPost, bool, error)
	Update(ctx context.Context, userID int64, postID string, upd *transfer.PostUpdate) (*models.ScheduledPost, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	PostInfo(ctx context.Context, postID string, userID int64) (*models.ScheduledPost, error)
	Remove(ctx context.Context, userID int64, postID string) error
}

type postService struct {
	cfg config.Config
	pr  repository.ScheduledPostRepository
}

func NewPostService(cfg config.Config, pr repository.ScheduledPostRepository) PostService {
	return &postService{cfg: cfg, pr: pr}
}

// Schedule validates the creation payload and persists the post in
// scheduled status. The second return value reports whether the
// scheduled timestamp is already within the publish epsilon, meaning
// the caller should submit it to the orchestrator right away instead of
// waiting for the next detector tick.
func (s *postService) Schedule(ctx context.Context, userID, orgID int64, pc *transfer.PostCreation) (*models.ScheduledPost, bool, error) {
	if pc == nil {
		return nil, false, &ValidationError{Reason: "post creation data is nil"}
	}

	if err := validateCreation(pc); err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}

	timezone := pc.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	ts, err := ComputeScheduledTimestamp(pc.ScheduledDate, pc.ScheduledTime, timezone)
	if err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, false, err
	}

	post := &models.ScheduledPost{
		ID:                 id,
		UserID:             userID,
		OrgID:              orgID,
		ContentType:        pc.ContentType,
		ContentID:          pc.ContentID,
		ImageURL:           pc.ImageURL,
		CarouselImageURLs:  pc.CarouselImageURLs,
		Caption:            pc.Caption,
		Hashtags:           NormalizeHashtags(pc.Hashtags),
		PlatformSelection:  pc.PlatformSelection,
		RemoteContentType:  pc.RemoteContentType,
		Timezone:           timezone,
		ScheduledDate:      pc.ScheduledDate,
		ScheduledTime:      pc.ScheduledTime,
		ScheduledTimestamp: ts,
		Status:             models.PostStatusScheduled,
		CreatedFrom:        pc.CreatedFrom,
	}

	if err := s.pr.Create(ctx, nil, post); err != nil {
		return nil, false, fmt.Errorf("error creating post: %w", err)
	}

	publishNow := post.TargetsInstagram() && PublishImmediately(ts, time.Now(), s.cfg.Scheduler.PublishEpsilon)
	return post, publishNow, nil
}

func validateCreation(pc *transfer.PostCreation) error {
	if pc.ScheduledDate == "" || pc.ScheduledTime == "" {
		return &ValidationError{Reason: "scheduled date and time are required"}
	}
	if pc.PlatformSelection == "" {
		return &ValidationError{Reason: "platform selection is required"}
	}
	switch pc.PlatformSelection {
	case models.PlatformInstagram, models.PlatformFacebook, models.PlatformBoth:
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown platform selection %q", pc.PlatformSelection)}
	}

	if pc.RemoteContentType == models.RemoteTypeCarousel {
		if len(pc.CarouselImageURLs) < 2 {
			return &ValidationError{Reason: "a carousel needs at least 2 images"}
		}
		if pc.ImageURL != "" {
			return &ValidationError{Reason: "carousel posts use carousel_image_urls, not image_url"}
		}
		return nil
	}

	if len(pc.CarouselImageURLs) > 0 {
		return &ValidationError{Reason: "carousel_image_urls is only valid for carousel posts"}
	}
	if pc.ImageURL == "" {
		return &ValidationError{Reason: "image_url is required"}
	}
	return nil
}

// Update edits the user-editable fields of a still-scheduled post. Any
// change to date, time or timezone recomputes the authoritative
// timestamp before persisting.
func (s *postService) Update(ctx context.Context, userID int64, postID string, upd *transfer.PostUpdate) (*models.ScheduledPost, error) {
	post, err := s.owned(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusScheduled {
		return nil, &ConflictError{PostID: postID, Reason: fmt.Sprintf("cannot edit a post in status %q", post.Status)}
	}

	if upd.Caption != nil {
		post.Caption = *upd.Caption
	}
	if upd.Hashtags != nil {
		post.Hashtags = NormalizeHashtags(*upd.Hashtags)
	}
	if upd.PlatformSelection != nil {
		post.PlatformSelection = *upd.PlatformSelection
	}

	timingChanged := false
	if upd.ScheduledDate != nil {
		post.ScheduledDate = *upd.ScheduledDate
		timingChanged = true
	}
	if upd.ScheduledTime != nil {
		post.ScheduledTime = *upd.ScheduledTime
		timingChanged = true
	}
	if upd.Timezone != nil {
		post.Timezone = *upd.Timezone
		timingChanged = true
	}
	if timingChanged {
		ts, err := ComputeScheduledTimestamp(post.ScheduledDate, post.ScheduledTime, post.Timezone)
		if err != nil {
			return nil, err
		}
		post.ScheduledTimestamp = ts
	}

	if err := s.pr.UpdateContent(ctx, post); err != nil {
		return nil, fmt.Errorf("error updating post: %w", err)
	}
	return post, nil
}

func (s *postService) PostInfo(ctx context.Context, postID string, userID int64) (*models.ScheduledPost, error) {
	return s.owned(ctx, postID, userID)
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, userID int64, postID string) error {
	post, err := s.owned(ctx, postID, userID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPublishing {
		return &ConflictError{PostID: postID, Reason: "cannot delete a post while it is being published"}
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	return nil
}

func (s *postService) owned(ctx context.Context, postID string, userID int64) (*models.ScheduledPost, error) {
	if userID == 0 {
		return nil, &ValidationError{Reason: "user is not valid"}
	}
	if postID == "" {
		return nil, &ValidationError{Reason: "post id is not valid"}
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	return s.pr.GetByID(ctx, postID)
}
