package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	jwt.RegisteredClaims
}

type PostCreation struct {
	ContentType       string   `json:"content_type"`
	ContentID         string   `json:"content_id"`
	ImageURL          string   `json:"image_url"`
	CarouselImageURLs []string `json:"carousel_image_urls"`
	Caption           string   `json:"caption"`
	Hashtags          []string `json:"hashtags"`
	PlatformSelection string   `json:"platform_selection"`
	RemoteContentType string   `json:"remote_content_type"`
	Timezone          string   `json:"timezone"`
	ScheduledDate     string   `json:"scheduled_date"`
	ScheduledTime     string   `json:"scheduled_time"`
	CreatedFrom       string   `json:"created_from"`
}

// PostUpdate carries the fields a user may edit while a post is still
// scheduled. Nil pointers mean "leave unchanged".
type PostUpdate struct {
	Caption           *string   `json:"caption"`
	Hashtags          *[]string `json:"hashtags"`
	ScheduledDate     *string   `json:"scheduled_date"`
	ScheduledTime     *string   `json:"scheduled_time"`
	Timezone          *string   `json:"timezone"`
	PlatformSelection *string   `json:"platform_selection"`
}

type PublishResult struct {
	Success       bool   `json:"success"`
	RemoteMediaID string `json:"remote_media_id,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

type DueNotification struct {
	Count      int      `json:"count"`
	HasOverdue bool     `json:"has_overdue"`
	PostIDs    []string `json:"post_ids"`
}
