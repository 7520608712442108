// internal/models/notification.go
package models

import "time"

// Notification delivery outcomes recorded in the audit table.
const (
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusSkipped = "skipped"
)

// Notification channels.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Notification types carried in push payloads.
const (
	NotificationTypeApplicationReviewed = "expert_application_reviewed"
	NotificationTypeAdminWelcome        = "admin_welcome"
	NotificationTypeDirect              = "direct"
)

type Notification struct {
	ID           string    `json:"id"`
	RecipientUID string    `json:"recipientUid"`
	Type         string    `json:"type"`
	Channel      string    `json:"channel"`
	Status       string    `json:"status"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
