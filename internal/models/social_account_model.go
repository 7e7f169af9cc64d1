package models

import (
	"time"
)

type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	OrgID           int64     `db:"org_id" json:"org_id"`
	Platform        string    `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountName     string    `db:"account_name" json:"account_name"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	ProfilePicture  string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken     string    `db:"access_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	AccountStatus   string    `db:"account_status" json:"account_status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

const AccountStatusActive = "active"

// AccountContext identifies the tenant on every protocol call. The
// publish client refuses to operate without one; there is no ambient
// default account.
type AccountContext struct {
	InstagramAccountID string `json:"instagram_account_id"`
	UserID             int64  `json:"user_id"`
	OrganizationID     int64  `json:"organization_id"`
}

func (c AccountContext) Valid() bool {
	return c.InstagramAccountID != "" && c.UserID != 0
}
