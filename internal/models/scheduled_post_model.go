package models

import "time"

type ScheduledPost struct {
	ID                 string    `db:"id" json:"id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	OrgID              int64     `db:"org_id" json:"org_id"`
	ContentType        string    `db:"content_type" json:"content_type"`
	ContentID          string    `db:"content_id" json:"content_id,omitempty"`
	ImageURL           string    `db:"image_url" json:"image_url,omitempty"`
	CarouselImageURLs  []string  `db:"carousel_image_urls" json:"carousel_image_urls,omitempty"`
	Caption            string    `db:"caption" json:"caption"`
	Hashtags           []string  `db:"hashtags" json:"hashtags"`
	PlatformSelection  string    `db:"platform_selection" json:"platform_selection"`
	RemoteContentType  string    `db:"remote_content_type" json:"remote_content_type"`
	Timezone           string    `db:"timezone" json:"timezone"`
	ScheduledDate      string    `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime      string    `db:"scheduled_time" json:"scheduled_time"`
	ScheduledTimestamp int64     `db:"scheduled_at_ms" json:"scheduled_timestamp"`
	Status             string    `db:"status" json:"status"`
	PublishedAt        int64     `db:"published_at_ms" json:"published_at,omitempty"`
	ErrorMessage       string    `db:"error_message" json:"error_message,omitempty"`
	RemoteMediaID      string    `db:"remote_media_id" json:"remote_media_id,omitempty"`
	PublishAttempts    int       `db:"publish_attempts" json:"publish_attempts"`
	LastPublishAttempt int64     `db:"last_publish_attempt_ms" json:"last_publish_attempt,omitempty"`
	CreatedFrom        string    `db:"created_from" json:"created_from,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
	PostStatusCancelled  = "cancelled"
)

// Platform selection for a post. Only Instagram posts go through the
// publish orchestrator; Facebook-only posts are surfaced by the due
// detector but published elsewhere.
const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformBoth      = "both"
)

// Remote media kinds understood by the Instagram container protocol.
const (
	RemoteTypePhoto    = "photo"
	RemoteTypeVideo    = "video"
	RemoteTypeReel     = "reel"
	RemoteTypeStory    = "story"
	RemoteTypeCarousel = "carousel"
)

// Provenance of the post content.
const (
	ContentFromUpload    = "upload"
	ContentFromLibrary   = "library"
	ContentFromGenerated = "generated"
)

func (p *ScheduledPost) TargetsInstagram() bool {
	return p.PlatformSelection == PlatformInstagram || p.PlatformSelection == PlatformBoth
}

func (p *ScheduledPost) IsCarousel() bool {
	return p.RemoteContentType == RemoteTypeCarousel
}

// PublishProgress is the ephemeral per-run progress record surfaced to
// the UI while an orchestration run is in flight. It is never persisted.
type PublishProgress struct {
	PostID   string `json:"post_id"`
	Step     string `json:"step"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

const (
	StepQuotaCheck        = "quota_check"
	StepUploadingImage    = "uploading_image"
	StepCreatingContainer = "creating_container"
	StepCheckingStatus    = "checking_status"
	StepPublishing        = "publishing"
	StepCompleted         = "completed"
	StepFailed            = "failed"
)
