package transfer

import "time"

type InstagramToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type InstagramUserInfo struct {
	UserID         string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture_url"`
}

// QuotaUsage is the platform-reported rolling publish usage for one
// account.
type QuotaUsage struct {
	Used      int `json:"quota_usage"`
	Limit     int `json:"quota_total"`
	Remaining int `json:"-"`
}

// ContainerStatus is the 3-way status set the client maps the
// platform's container status vocabulary onto.
type ContainerStatus string

const (
	ContainerInProgress ContainerStatus = "in_progress"
	ContainerFinished   ContainerStatus = "finished"
	ContainerError      ContainerStatus = "error"
)
