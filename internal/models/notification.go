package models

import "time"

// Notification kinds emitted by the enrollment workflow.
const (
	NotificationKRSSubmitted = "krs_submitted"
	NotificationKRSApproved  = "krs_approved"
	NotificationKRSRejected  = "krs_rejected"
	NotificationKRSReopened  = "krs_reopened"
)

// Notification is an in-app message for a user.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Kind      string    `db:"kind" json:"kind"`
	Link      *string   `db:"link" json:"link,omitempty"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
