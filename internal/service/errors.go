package service

import "fmt"

// ValidationError rejects bad input shape before any side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NotConfiguredError means no usable Instagram account context exists
// for the caller.
type NotConfiguredError struct {
	Reason string
}

func (e *NotConfiguredError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "Instagram account is not connected. Reconnect your account and try again."
}

// CredentialExpiredError means the stored token was rejected and the
// user has to reconnect the account.
type CredentialExpiredError struct{}

func (e *CredentialExpiredError) Error() string {
	return "Instagram session expired. Please reconnect your account."
}

// QuotaExceededError means the rolling publish quota is exhausted. The
// only remedy is waiting for the window to roll over.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("Instagram publish limit reached (%d posts per 24 hours). Try again later.", e.Limit)
}

// ConflictError is a state machine transition attempted from a state
// that does not allow it. Status is left unchanged.
type ConflictError struct {
	PostID string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("post %s: %s", e.PostID, e.Reason)
}

// MediaRejectedError means the platform refused the asset itself.
type MediaRejectedError struct {
	Detail string
}

func (e *MediaRejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("Instagram rejected the media: %s", e.Detail)
	}
	return "Instagram rejected the media. Check the image format and dimensions."
}

// TimeoutError means container processing never finished within the
// polling budget. Safe to retry.
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("media processing did not finish after %d checks", e.Attempts)
}

// ProtocolError carries the raw status and body of any otherwise
// unclassified wire failure for diagnosis.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected response from publish proxy (status %d): %s", e.StatusCode, e.Body)
}
