// internal/api/notifications/send-push/models.go
package sendpush

import "kalikascan-admin/internal/notifier"

type Input struct {
	UID      string            `json:"uid"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority"`
	Data     map[string]string `json:"data"`
}

type Output struct {
	Success      bool            `json:"success"`
	UID          string          `json:"uid"`
	Notification notifier.Report `json:"notification"`
}
