package models

import "time"

type PostingHistory struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	PostID        string    `db:"post_id" json:"post_id"`
	AccountID     int64     `db:"account_id" json:"account_id"`
	RemoteMediaID string    `db:"remote_media_id" json:"remote_media_id"`
	ErrorMessage  string    `db:"error_message" json:"error_message"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
