package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	config "postpilot/configs"
	"postpilot/internal/models"
	"postpilot/internal/repository"
	"postpilot/internal/transfer"
)

// PublishService is the orchestrator: one call is exactly one publish
// attempt, running quota check, media upload, container creation,
// status polling and publication in order, and always leaving the post
// in a terminal status. It never retries on its own; a retry is a fresh
// BeginPublish initiated by the user.
type PublishService interface {
	PublishPost(ctx context.Context, postID string) *transfer.PublishResult
	Progress(postID string) (*models.PublishProgress, bool)
}

type publishService struct {
	cfg      config.Config
	pr       repository.ScheduledPostRepository
	sa       repository.SocialAccountRepository
	ph       repository.PostingHistoryRepository
	lc       LifecycleService
	quota    QuotaService
	media    MediaService
	client   InstagramClient
	progress *ProgressTracker
	sleep    func(time.Duration)
}

func NewPublishService(
	cfg config.Config,
	pr repository.ScheduledPostRepository,
	sa repository.SocialAccountRepository,
	ph repository.PostingHistoryRepository,
	lc LifecycleService,
	quota QuotaService,
	media MediaService,
	client InstagramClient) PublishService {
	return &publishService{
		cfg:      cfg,
		pr:       pr,
		sa:       sa,
		ph:       ph,
		lc:       lc,
		quota:    quota,
		media:    media,
		client:   client,
		progress: NewProgressTracker(cfg.Publisher.ProgressGrace),
		sleep:    time.Sleep,
	}
}

func (s *publishService) Progress(postID string) (*models.PublishProgress, bool) {
	p, ok := s.progress.Get(postID)
	if !ok {
		return nil, false
	}
	return &p, true
}

func (s *publishService) PublishPost(ctx context.Context, postID string) *transfer.PublishResult {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return &transfer.PublishResult{ErrorMessage: err.Error()}
	}
	if post == nil {
		return &transfer.PublishResult{ErrorMessage: fmt.Sprintf("post %s does not exist", postID)}
	}
	if !post.TargetsInstagram() {
		return &transfer.PublishResult{ErrorMessage: "post does not target Instagram"}
	}

	// Ownership gate. A ConflictError here means another run holds the
	// post (or it is already terminal); status is untouched and nothing
	// has happened remotely.
	post, err = s.lc.BeginPublish(ctx, postID)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			slog.Info("publish skipped", "post_id", postID, "reason", conflict.Reason)
		}
		return &transfer.PublishResult{ErrorMessage: err.Error()}
	}

	s.progress.Set(postID, models.StepQuotaCheck, "Checking publish quota", 5)

	account, err := s.sa.GetActiveByUser(ctx, post.UserID, post.OrgID)
	if err != nil {
		return s.fail(ctx, post, 0, err)
	}
	if account == nil {
		return s.fail(ctx, post, 0, &NotConfiguredError{})
	}

	acct := models.AccountContext{
		InstagramAccountID: account.AccountID,
		UserID:             post.UserID,
		OrganizationID:     post.OrgID,
	}

	usage, err := s.quota.Usage(ctx, acct)
	if err != nil {
		return s.fail(ctx, post, account.ID, err)
	}
	if usage.Remaining <= 0 {
		return s.fail(ctx, post, account.ID, &QuotaExceededError{Limit: usage.Limit})
	}

	mediaURLs, err := s.uploadMedia(ctx, post)
	if err != nil {
		return s.fail(ctx, post, account.ID, err)
	}

	s.progress.Set(postID, models.StepCreatingContainer, "Creating media container", 30)

	caption := buildCaption(post)
	var containerID string
	if post.IsCarousel() {
		containerID, err = s.client.CreateCarouselContainer(ctx, mediaURLs, caption, acct)
	} else {
		kind := post.RemoteContentType
		if kind == "" {
			kind = models.RemoteTypePhoto
		}
		containerID, err = s.client.CreateContainer(ctx, kind, mediaURLs[0], caption, acct)
	}
	if err != nil {
		return s.fail(ctx, post, account.ID, err)
	}

	if err := s.awaitContainer(ctx, containerID, acct, postID); err != nil {
		return s.fail(ctx, post, account.ID, err)
	}

	s.progress.Set(postID, models.StepPublishing, "Publishing", 80)

	var remoteMediaID string
	if post.IsCarousel() {
		remoteMediaID, err = s.client.PublishCarousel(ctx, containerID, acct)
	} else {
		remoteMediaID, err = s.client.Publish(ctx, containerID, acct)
	}
	if err != nil {
		return s.fail(ctx, post, account.ID, err)
	}

	if err := s.lc.CompletePublish(ctx, postID, remoteMediaID); err != nil {
		return s.fail(ctx, post, account.ID, err)
	}

	s.progress.Set(postID, models.StepCompleted, "Published", 100)
	s.recordHistory(ctx, post, account.ID, remoteMediaID, "")

	return &transfer.PublishResult{Success: true, RemoteMediaID: remoteMediaID}
}

// uploadMedia resolves every media reference to a public HTTP URL,
// advancing progress proportionally per carousel item.
func (s *publishService) uploadMedia(ctx context.Context, post *models.ScheduledPost) ([]string, error) {
	s.progress.Set(post.ID, models.StepUploadingImage, "Uploading media", 15)

	if !post.IsCarousel() {
		u, err := s.media.EnsurePublicURL(ctx, post.ImageURL)
		if err != nil {
			return nil, err
		}
		s.progress.Set(post.ID, models.StepUploadingImage, "Uploading media", 25)
		return []string{u}, nil
	}

	urls := make([]string, 0, len(post.CarouselImageURLs))
	for i, ref := range post.CarouselImageURLs {
		u, err := s.media.EnsurePublicURL(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("carousel item %d: %w", i+1, err)
		}
		urls = append(urls, u)
		pct := 15 + 10*(i+1)/len(post.CarouselImageURLs)
		s.progress.Set(post.ID, models.StepUploadingImage,
			fmt.Sprintf("Uploaded media %d of %d", i+1, len(post.CarouselImageURLs)), pct)
	}
	return urls, nil
}

// awaitContainer polls the container until it is ready. A transient
// poll failure keeps polling; a platform-reported error status aborts
// with MediaRejectedError; running out of attempts is a TimeoutError.
func (s *publishService) awaitContainer(ctx context.Context, containerID string, acct models.AccountContext, postID string) error {
	attempts := s.cfg.Publisher.PollAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := s.client.GetContainerStatus(ctx, containerID, acct)
		if err != nil {
			slog.Info("container status check failed, retrying", "post_id", postID, "attempt", attempt, "error", err.Error())
		} else {
			switch status {
			case transfer.ContainerFinished:
				return nil
			case transfer.ContainerError:
				return &MediaRejectedError{}
			}
		}

		pct := 45 + 25*attempt/attempts
		s.progress.Set(postID, models.StepCheckingStatus, "Waiting for media processing", pct)

		if attempt < attempts {
			s.sleep(s.cfg.Publisher.PollInterval)
		}
	}
	return &TimeoutError{Attempts: attempts}
}

func (s *publishService) fail(ctx context.Context, post *models.ScheduledPost, accountID int64, cause error) *transfer.PublishResult {
	message := cause.Error()

	if err := s.lc.FailPublish(ctx, post.ID, message); err != nil {
		slog.Error("failed to record publish failure", "post_id", post.ID, "error", err.Error())
	}

	s.progress.Set(post.ID, models.StepFailed, message, 100)
	s.recordHistory(ctx, post, accountID, "", message)

	return &transfer.PublishResult{Success: false, ErrorMessage: message}
}

func (s *publishService) recordHistory(ctx context.Context, post *models.ScheduledPost, accountID int64, remoteMediaID, errorMessage string) {
	history := &models.PostingHistory{
		UserID:        post.UserID,
		PostID:        post.ID,
		AccountID:     accountID,
		RemoteMediaID: remoteMediaID,
		ErrorMessage:  errorMessage,
	}
	if _, err := s.ph.Create(ctx, history); err != nil {
		slog.Error("error saving posting history", "post_id", post.ID, "error", err.Error())
	}
}

func buildCaption(post *models.ScheduledPost) string {
	caption := strings.TrimSpace(post.Caption)
	if len(post.Hashtags) == 0 {
		return caption
	}
	tags := strings.Join(post.Hashtags, " ")
	if caption == "" {
		return tags
	}
	return caption + "\n\n" + tags
}
