package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"postpilot/internal/models"
	"postpilot/internal/transfer"
)

// fakePostRepo mimics the guarded UPDATE semantics of the Postgres
// repository: transitions only happen when the current status matches.
type fakePostRepo struct {
	mu    sync.Mutex
	posts map[string]*models.ScheduledPost
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[string]*models.ScheduledPost)}
}

func (r *fakePostRepo) put(post *models.ScheduledPost) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *post
	r.posts[post.ID] = &cp
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *post
	cp.Status = models.PostStatusScheduled
	cp.CreatedAt = time.Now()
	r.posts[post.ID] = &cp
	return nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *post
	return &cp, nil
}

func (r *fakePostRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledPost
	for _, post := range r.posts {
		if post.UserID == userID {
			cp := *post
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListByStatus(ctx context.Context, status string) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledPost
	for _, post := range r.posts {
		if post.Status == status {
			cp := *post
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) CheckByUserID(ctx context.Context, id string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	return ok && post.UserID == userID, nil
}

func (r *fakePostRepo) UpdateContent(ctx context.Context, post *models.ScheduledPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.posts[post.ID]
	if !ok || existing.Status != models.PostStatusScheduled {
		return nil
	}
	existing.Caption = post.Caption
	existing.Hashtags = post.Hashtags
	existing.PlatformSelection = post.PlatformSelection
	existing.Timezone = post.Timezone
	existing.ScheduledDate = post.ScheduledDate
	existing.ScheduledTime = post.ScheduledTime
	existing.ScheduledTimestamp = post.ScheduledTimestamp
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *fakePostRepo) BeginPublish(ctx context.Context, id string, attemptAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return false, nil
	}
	if post.Status != models.PostStatusScheduled && post.Status != models.PostStatusFailed {
		return false, nil
	}
	post.Status = models.PostStatusPublishing
	post.PublishAttempts++
	post.LastPublishAttempt = attemptAt.UnixMilli()
	post.ErrorMessage = ""
	return true, nil
}

func (r *fakePostRepo) CompletePublish(ctx context.Context, id, remoteMediaID string, publishedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != models.PostStatusPublishing {
		return false, nil
	}
	post.Status = models.PostStatusPublished
	post.PublishedAt = publishedAt.UnixMilli()
	post.RemoteMediaID = remoteMediaID
	post.ErrorMessage = ""
	return true, nil
}

func (r *fakePostRepo) FailPublish(ctx context.Context, id, errorMessage string, attemptAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != models.PostStatusPublishing {
		return false, nil
	}
	post.Status = models.PostStatusFailed
	post.ErrorMessage = errorMessage
	post.LastPublishAttempt = attemptAt.UnixMilli()
	return true, nil
}

func (r *fakePostRepo) Cancel(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return false, nil
	}
	if post.Status != models.PostStatusScheduled && post.Status != models.PostStatusFailed {
		return false, nil
	}
	post.Status = models.PostStatusCancelled
	return true, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

type fakeAccountRepo struct {
	account *models.SocialAccount
}

func (r *fakeAccountRepo) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	r.account = sa
	return 1, nil
}

func (r *fakeAccountRepo) GetActiveByUser(ctx context.Context, userID, orgID int64) (*models.SocialAccount, error) {
	if r.account == nil || r.account.UserID != userID {
		return nil, nil
	}
	return r.account, nil
}

func (r *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	if r.account == nil {
		return nil, nil
	}
	return []*models.SocialAccount{r.account}, nil
}

func (r *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	return r.account != nil, nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	r.account = nil
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, ph)
	return int64(len(r.entries)), nil
}

func (r *fakeHistoryRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.PostingHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, nil
}

// fakeInstagramClient scripts protocol behavior per call.
type fakeInstagramClient struct {
	mu sync.Mutex

	quota    transfer.QuotaUsage
	quotaErr error

	containerID  string
	containerErr error

	statuses  []transfer.ContainerStatus
	statusIdx int
	statusErr error

	mediaID    string
	publishErr error

	createCalls  int
	statusCalls  int
	publishCalls int
}

func (c *fakeInstagramClient) CheckQuota(ctx context.Context, acct models.AccountContext) (*transfer.QuotaUsage, error) {
	if c.quotaErr != nil {
		return nil, c.quotaErr
	}
	usage := c.quota
	return &usage, nil
}

func (c *fakeInstagramClient) CreateContainer(ctx context.Context, kind, mediaURL, caption string, acct models.AccountContext) (string, error) {
	c.mu.Lock()
	c.createCalls++
	c.mu.Unlock()
	if c.containerErr != nil {
		return "", c.containerErr
	}
	return c.containerID, nil
}

func (c *fakeInstagramClient) CreateCarouselContainer(ctx context.Context, mediaURLs []string, caption string, acct models.AccountContext) (string, error) {
	c.mu.Lock()
	c.createCalls++
	c.mu.Unlock()
	if len(mediaURLs) < 2 {
		return "", &ValidationError{Reason: "a carousel needs at least 2 media items"}
	}
	if c.containerErr != nil {
		return "", c.containerErr
	}
	return c.containerID, nil
}

func (c *fakeInstagramClient) GetContainerStatus(ctx context.Context, containerID string, acct models.AccountContext) (transfer.ContainerStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if c.statusErr != nil {
		return "", c.statusErr
	}
	if c.statusIdx < len(c.statuses) {
		status := c.statuses[c.statusIdx]
		c.statusIdx++
		return status, nil
	}
	return transfer.ContainerInProgress, nil
}

func (c *fakeInstagramClient) Publish(ctx context.Context, containerID string, acct models.AccountContext) (string, error) {
	c.mu.Lock()
	c.publishCalls++
	c.mu.Unlock()
	if c.publishErr != nil {
		return "", c.publishErr
	}
	return c.mediaID, nil
}

func (c *fakeInstagramClient) PublishCarousel(ctx context.Context, containerID string, acct models.AccountContext) (string, error) {
	return c.Publish(ctx, containerID, acct)
}

// fakeMediaService returns references unchanged so tests control URLs.
type fakeMediaService struct {
	err error
}

func (m *fakeMediaService) EnsurePublicURL(ctx context.Context, mediaRef string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return mediaRef, nil
}

func testPost(id string) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:                 id,
		UserID:             7,
		OrgID:              3,
		ContentType:        models.ContentFromUpload,
		ImageURL:           "https://cdn.example.com/" + id + ".jpg",
		Caption:            "hello",
		Hashtags:           []string{"#go"},
		PlatformSelection:  models.PlatformInstagram,
		RemoteContentType:  models.RemoteTypePhoto,
		Timezone:           "UTC",
		ScheduledDate:      "2026-09-01",
		ScheduledTime:      "10:00",
		ScheduledTimestamp: time.Now().Add(-time.Minute).UnixMilli(),
		Status:             models.PostStatusScheduled,
	}
}
